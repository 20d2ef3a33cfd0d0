package counselor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *CrisisCounselor) error
	GetByID(ctx context.Context, id uuid.UUID) (*CrisisCounselor, error)
	Update(ctx context.Context, c *CrisisCounselor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*CrisisCounselor, int, error)
	ListAvailable(ctx context.Context) ([]*CrisisCounselor, error)
	UpdateLoad(ctx context.Context, id uuid.UUID, load int, status string) error
}
