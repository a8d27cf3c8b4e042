package availability

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Recurrence is the weekly pattern shared by windows and exceptions: one ISO
// day of week, a time range on that day and the dates it applies to.
type Recurrence struct {
	DayOfWeek   int                  `db:"day_of_week" json:"day_of_week"`
	StartTime   clinictime.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     clinictime.TimeOfDay `db:"end_time" json:"end_time"`
	PeriodStart clinictime.Date      `db:"period_start" json:"period_start"`
	PeriodEnd   clinictime.Date      `db:"period_end" json:"period_end"`
}

// OccursOn reports whether the recurrence has an instance on date.
func (r Recurrence) OccursOn(date clinictime.Date) bool {
	if date.Before(r.PeriodStart) || date.After(r.PeriodEnd) {
		return false
	}
	return date.Weekday() == r.DayOfWeek
}

func (r Recurrence) validate() error {
	if r.DayOfWeek < 1 || r.DayOfWeek > 7 {
		return apperr.Validation("day_of_week must be between 1 and 7")
	}
	if !r.StartTime.Valid() || !r.EndTime.Valid() {
		return apperr.Validation("start_time and end_time must be within the day")
	}
	if r.StartTime >= r.EndTime {
		return apperr.Validation("start_time must be before end_time")
	}
	if r.PeriodStart.IsZero() || r.PeriodEnd.IsZero() {
		return apperr.Validation("period_start and period_end are required")
	}
	if r.PeriodEnd.Before(r.PeriodStart) {
		return apperr.Validation("period_start must not be after period_end")
	}
	return nil
}

// Window is a recurring weekly time range during which a veterinarian works.
type Window struct {
	ID             uuid.UUID `db:"id" json:"id"`
	VeterinarianID uuid.UUID `db:"veterinarian_id" json:"veterinarian_id"`
	Recurrence
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether [start,end) on date falls inside one instance of
// the window. Exceptions are not considered.
func (w *Window) Contains(date clinictime.Date, start, end clinictime.TimeOfDay) bool {
	return w.OccursOn(date) && start >= w.StartTime && end <= w.EndTime
}

// Exception removes coverage from its window wherever it overlaps.
type Exception struct {
	ID       uuid.UUID `db:"id" json:"id"`
	WindowID uuid.UUID `db:"window_id" json:"availability_id"`
	Recurrence
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Blocks reports whether the exception overlaps [start,end) on date.
func (e *Exception) Blocks(date clinictime.Date, start, end clinictime.TimeOfDay) bool {
	return e.OccursOn(date) && clinictime.Overlaps(e.StartTime, e.EndTime, start, end)
}

func (e *Exception) validate() error {
	if err := e.Recurrence.validate(); err != nil {
		return err
	}
	e.Reason = strings.TrimSpace(e.Reason)
	if e.Reason == "" {
		return apperr.Validation("reason is required")
	}
	return nil
}

// Calendar is one veterinarian's windows together with their exceptions.
type Calendar struct {
	Windows    []*Window
	Exceptions map[uuid.UUID][]*Exception // keyed by window id
}

// Covers reports whether some window contains [start,end) on date with none
// of that window's own exceptions overlapping it.
func (c *Calendar) Covers(date clinictime.Date, start, end clinictime.TimeOfDay) bool {
	for _, w := range c.Windows {
		if !w.Contains(date, start, end) {
			continue
		}
		blocked := false
		for _, e := range c.Exceptions[w.ID] {
			if e.Blocks(date, start, end) {
				blocked = true
				break
			}
		}
		if !blocked {
			return true
		}
	}
	return false
}
