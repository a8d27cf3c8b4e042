package treatment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	List(ctx context.Context, limit, offset int) ([]*Treatment, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
