package visit

import (
	"context"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Repository stores visits. List methods return visits ordered by date, then
// time. Create and Update reject a visit that would overlap another visit of
// the same veterinarian with a Conflict.
type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByVeterinarianAndDate(ctx context.Context, vetID uuid.UUID, date clinictime.Date) ([]*Visit, error)
	// ListByVeterinarianInRange includes both bounds.
	ListByVeterinarianInRange(ctx context.Context, vetID uuid.UUID, start, end clinictime.Date) ([]*Visit, error)
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Visit, error)
}

// HistoryRepository is append-only.
type HistoryRepository interface {
	Append(ctx context.Context, h *History) error
	// ListByVisit returns entries oldest first.
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*History, error)
}
