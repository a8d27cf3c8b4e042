// Package slotlock serializes operations that claim time on a veterinarian's
// calendar, closing the gap between the availability check and the write.
package slotlock

import (
	"context"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// ErrBusy is returned when the lock could not be obtained within the
// configured wait.
var ErrBusy = &apperr.Error{Kind: apperr.KindConflict, Message: "slot is being booked by another request"}

// Locker grants exclusive access to a key until the returned unlock function
// is called. Unlock is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Key names the lock guarding one veterinarian's day.
func Key(veterinarianID uuid.UUID, date clinictime.Date) string {
	return "slot:" + veterinarianID.String() + ":" + date.String()
}

// VisitKey names the lock guarding state changes of one visit.
func VisitKey(visitID uuid.UUID) string {
	return "visit:" + visitID.String()
}
