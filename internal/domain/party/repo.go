package party

import (
	"context"

	"github.com/google/uuid"
)

type PersonRepository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	// ListByRole lists people ordered by last name, first name. An empty role
	// lists everyone.
	ListByRole(ctx context.Context, role Role, limit, offset int) ([]*Person, int, error)
}

type PetRepository interface {
	Create(ctx context.Context, p *Pet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pet, error)
	AddOwner(ctx context.Context, petID, ownerID uuid.UUID) error
}
