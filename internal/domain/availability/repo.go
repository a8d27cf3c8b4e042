package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/pkg/clinictime"
)

type WindowRepository interface {
	Create(ctx context.Context, w *Window) error
	GetByID(ctx context.Context, id uuid.UUID) (*Window, error)
	Update(ctx context.Context, w *Window) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByVeterinarian returns the windows ordered by day of week, then
	// start time.
	ListByVeterinarian(ctx context.Context, vetID uuid.UUID) ([]*Window, error)
	// ListOccurringOn returns the windows of every veterinarian that have an
	// instance on date.
	ListOccurringOn(ctx context.Context, date clinictime.Date) ([]*Window, error)
	DeleteByVeterinarian(ctx context.Context, vetID uuid.UUID) error
}

type ExceptionRepository interface {
	Create(ctx context.Context, e *Exception) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exception, error)
	Update(ctx context.Context, e *Exception) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByWindow(ctx context.Context, windowID uuid.UUID) ([]*Exception, error)
	ListByWindows(ctx context.Context, windowIDs []uuid.UUID) ([]*Exception, error)
	DeleteByWindow(ctx context.Context, windowID uuid.UUID) error
}
