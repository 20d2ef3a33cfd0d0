package safetyplan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *SafetyPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*SafetyPlan, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*SafetyPlan, error)
	Update(ctx context.Context, p *SafetyPlan) error
	SupersedeActive(ctx context.Context, userID uuid.UUID) error
	RecordActivation(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*SafetyPlan, int, error)
}
