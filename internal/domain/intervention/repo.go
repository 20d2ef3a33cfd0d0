package intervention

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, iv *CrisisIntervention) error
	GetByID(ctx context.Context, id uuid.UUID) (*CrisisIntervention, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, outcome *string) error
	RecordResponse(ctx context.Context, id uuid.UUID, at time.Time, text string) error
	ListByAlert(ctx context.Context, alertID uuid.UUID) ([]*CrisisIntervention, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisIntervention, int, error)
}
