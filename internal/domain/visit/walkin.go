package visit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// CoveringDirectory lists the veterinarians whose availability covers a
// slot, ordered by id.
type CoveringDirectory interface {
	CoveringVeterinarians(ctx context.Context, date clinictime.Date, start, end clinictime.TimeOfDay) ([]uuid.UUID, error)
}

// ErrNoVeterinarianNow is returned when nobody can take a walk-in.
var ErrNoVeterinarianNow = &apperr.Error{Kind: apperr.KindConflict, Message: "no veterinarian available now"}

// WalkInSlot is the current slot a walk-in would occupy.
type WalkInSlot struct {
	Date  clinictime.Date
	Start clinictime.TimeOfDay
	End   clinictime.TimeOfDay
}

// WalkInAssigner picks a veterinarian who is free right now.
type WalkInAssigner struct {
	covering CoveringDirectory
	slots    *SlotChecker
	now      func() time.Time
	loc      *time.Location
}

func NewWalkInAssigner(covering CoveringDirectory, slots *SlotChecker, now func() time.Time, loc *time.Location) *WalkInAssigner {
	return &WalkInAssigner{covering: covering, slots: slots, now: now, loc: loc}
}

// SlotNow returns the slot starting at the current minute in the clinic's
// location.
func (a *WalkInAssigner) SlotNow(duration int) WalkInSlot {
	now := a.now().In(a.loc)
	start := clinictime.TimeOfDayOf(now)
	return WalkInSlot{Date: clinictime.DateOf(now), Start: start, End: start.Add(duration)}
}

// Candidates returns every veterinarian able to take slot, in id order.
func (a *WalkInAssigner) Candidates(ctx context.Context, slot WalkInSlot) ([]uuid.UUID, error) {
	covering, err := a.covering.CoveringVeterinarians(ctx, slot.Date, slot.Start, slot.End)
	if err != nil {
		return nil, err
	}
	var free []uuid.UUID
	for _, vetID := range covering {
		ok, err := a.slots.IsSlotAvailable(ctx, vetID, slot.Date, slot.Start, slot.End, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if ok {
			free = append(free, vetID)
		}
	}
	return free, nil
}

// FindAvailableVeterinarianNow returns the first veterinarian free for the
// next duration minutes, or ErrNoVeterinarianNow.
func (a *WalkInAssigner) FindAvailableVeterinarianNow(ctx context.Context, duration int) (uuid.UUID, WalkInSlot, error) {
	slot := a.SlotNow(duration)
	candidates, err := a.Candidates(ctx, slot)
	if err != nil {
		return uuid.Nil, slot, err
	}
	if len(candidates) == 0 {
		return uuid.Nil, slot, ErrNoVeterinarianNow
	}
	return candidates[0], slot, nil
}
