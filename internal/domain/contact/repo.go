package contact

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *EmergencyContact) error
	GetByID(ctx context.Context, id uuid.UUID) (*EmergencyContact, error)
	Update(ctx context.Context, c *EmergencyContact) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*EmergencyContact, error)
}
