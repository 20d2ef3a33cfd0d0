package alert

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/crisis/pkg/risk"
)

type Repository interface {
	Create(ctx context.Context, a *CrisisAlert) error
	GetByID(ctx context.Context, id uuid.UUID) (*CrisisAlert, error)
	UpdateLevel(ctx context.Context, id uuid.UUID, level risk.CrisisLevel, escalatedAt time.Time) error
	AppendIntervention(ctx context.Context, id uuid.UUID, t risk.InterventionType) error
	SetOverride(ctx context.Context, id uuid.UUID, active bool) error
	Resolve(ctx context.Context, id uuid.UUID, resolvedAt time.Time, resolvedBy, note string) error
	AppendTransition(ctx context.Context, tr *LevelTransition) error
	ListTransitions(ctx context.Context, alertID uuid.UUID) ([]*LevelTransition, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisAlert, int, error)
	ActiveForUser(ctx context.Context, userID uuid.UUID) (*CrisisAlert, error)
	ListActive(ctx context.Context) ([]*CrisisAlert, error)
	Counters(ctx context.Context) (*PlatformCounters, error)
}
