package visit

import (
	"context"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Coverage answers whether a veterinarian works during a slot.
type Coverage interface {
	Covers(ctx context.Context, vetID uuid.UUID, date clinictime.Date, start, end clinictime.TimeOfDay) (bool, error)
}

var (
	// ErrNoSlot is returned when no availability window covers the slot.
	ErrNoSlot = &apperr.Error{Kind: apperr.KindConflict, Message: "veterinarian has no available slot for the requested time"}
	// ErrOverlap is returned when the slot collides with a booked visit.
	ErrOverlap = &apperr.Error{Kind: apperr.KindConflict, Message: "overlaps with another visit"}
)

// SlotChecker decides whether [start,end) on a date is bookable for a
// veterinarian. Every visit stored for that day counts, whatever its status.
type SlotChecker struct {
	coverage Coverage
	visits   Repository
}

func NewSlotChecker(coverage Coverage, visits Repository) *SlotChecker {
	return &SlotChecker{coverage: coverage, visits: visits}
}

// ValidateAvailability returns ErrNoSlot or ErrOverlap when the slot cannot
// be booked. The visit named by excluding, if any, is ignored so that a visit
// being moved does not collide with itself.
func (c *SlotChecker) ValidateAvailability(ctx context.Context, vetID uuid.UUID, date clinictime.Date, start, end clinictime.TimeOfDay, excluding uuid.UUID) error {
	covered, err := c.coverage.Covers(ctx, vetID, date, start, end)
	if err != nil {
		return err
	}
	if !covered {
		return ErrNoSlot
	}

	visits, err := c.visits.ListByVeterinarianAndDate(ctx, vetID, date)
	if err != nil {
		return err
	}
	for _, v := range visits {
		if v.ID == excluding {
			continue
		}
		if clinictime.Overlaps(v.VisitTime, v.End(), start, end) {
			return ErrOverlap
		}
	}
	return nil
}

// IsSlotAvailable is ValidateAvailability reduced to a boolean. Storage
// failures are still returned as errors.
func (c *SlotChecker) IsSlotAvailable(ctx context.Context, vetID uuid.UUID, date clinictime.Date, start, end clinictime.TimeOfDay, excluding uuid.UUID) (bool, error) {
	err := c.ValidateAvailability(ctx, vetID, date, start, end, excluding)
	if apperr.IsConflict(err) {
		return false, nil
	}
	return err == nil, err
}
