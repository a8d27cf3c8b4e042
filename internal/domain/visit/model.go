package visit

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNotShowedUp Status = "NOT_SHOWED_UP"
)

const (
	// DefaultDuration applies when a booking names no duration, in minutes.
	DefaultDuration = 15

	// NoShowGracePeriod must pass after the scheduled start before a visit
	// can be marked as not showed up.
	NoShowGracePeriod = 10 * time.Minute

	walkInReason = "Walk-in visit"
)

// Visit is an appointment of a pet with a veterinarian.
type Visit struct {
	ID              uuid.UUID            `db:"id" json:"id"`
	VisitDate       clinictime.Date      `db:"visit_date" json:"visit_date"`
	VisitTime       clinictime.TimeOfDay `db:"visit_time" json:"visit_time"`
	Duration        int                  `db:"duration" json:"duration"`
	Reason          string               `db:"reason" json:"reason"`
	PricePerFifteen float64              `db:"price_per_fifteen" json:"price_per_fifteen"`
	Status          Status               `db:"status" json:"status"`
	VeterinarianID  uuid.UUID            `db:"veterinarian_id" json:"veterinarian_id"`
	PetID           uuid.UUID            `db:"pet_id" json:"pet_id"`
	PetOwnerID      uuid.UUID            `db:"pet_owner_id" json:"pet_owner_id"`
	TreatmentID     *uuid.UUID           `db:"treatment_id" json:"treatment_id,omitempty"`
	// PrescriptionIDs is filled by the pharmacy component; scheduling only carries it.
	PrescriptionIDs []uuid.UUID          `db:"prescription_ids" json:"prescription_ids"`
	InvoiceID       *uuid.UUID           `db:"invoice_id" json:"invoice_id,omitempty"`
	Diagnoses       *string              `db:"diagnoses" json:"diagnoses,omitempty"`
	Notes           *string              `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updated_at"`
}

// End is the first minute after the visit.
func (v *Visit) End() clinictime.TimeOfDay {
	return v.VisitTime.Add(v.Duration)
}

// ScheduledAt is the instant the visit starts, read in loc.
func (v *Visit) ScheduledAt(loc *time.Location) time.Time {
	return v.VisitDate.At(v.VisitTime, loc)
}

// Overlaps reports whether the visit occupies any minute of [start,end) on date.
func (v *Visit) Overlaps(date clinictime.Date, start, end clinictime.TimeOfDay) bool {
	return v.VisitDate.Equal(date) && clinictime.Overlaps(v.VisitTime, v.End(), start, end)
}

// Invoiceable reports whether an invoice may be produced for the visit.
func (v *Visit) Invoiceable() bool {
	return v.Status == StatusCompleted
}

func (v *Visit) Start() error {
	if v.Status != StatusScheduled {
		return apperr.Conflict("cannot start a visit that is not scheduled")
	}
	v.Status = StatusInProgress
	return nil
}

func (v *Visit) Complete() error {
	if v.Status != StatusInProgress {
		return apperr.Conflict("cannot complete a visit that is not in progress")
	}
	v.Status = StatusCompleted
	return nil
}

// Cancel cancels a scheduled or running visit and returns the audit entry
// recording it.
func (v *Visit) Cancel(performedBy *string) (*History, error) {
	if v.Status != StatusScheduled && v.Status != StatusInProgress {
		return nil, apperr.Conflict("cannot cancel a visit that is not scheduled or in progress")
	}
	v.Status = StatusCancelled
	return &History{
		VisitID:     v.ID,
		OldDate:     v.VisitDate,
		OldTime:     v.VisitTime,
		Action:      ActionCancel,
		PerformedBy: trimmed(performedBy),
	}, nil
}

// MarkNotShowedUp records that the owner never arrived. It is only allowed
// once the grace period after the scheduled start has elapsed.
func (v *Visit) MarkNotShowedUp(now time.Time, loc *time.Location) error {
	if v.Status != StatusScheduled {
		return apperr.Conflict("only scheduled visits can be marked as not showed up")
	}
	if now.Before(v.ScheduledAt(loc).Add(NoShowGracePeriod)) {
		return apperr.Conflict("cannot mark visit as not showed up before %d minutes after scheduled time",
			int(NoShowGracePeriod/time.Minute))
	}
	v.Status = StatusNotShowedUp
	return nil
}

func (v *Visit) treatable() bool {
	return v.Status == StatusInProgress || v.Status == StatusCompleted
}

func (v *Visit) RecordDiagnosisAndNotes(diagnoses, notes string) error {
	if !v.treatable() {
		return apperr.Conflict("cannot record diagnosis and notes for a visit that is not in progress or completed")
	}
	diagnoses, notes = strings.TrimSpace(diagnoses), strings.TrimSpace(notes)
	if diagnoses == "" {
		return apperr.Validation("diagnoses cannot be blank")
	}
	if notes == "" {
		return apperr.Validation("notes cannot be blank")
	}
	v.Diagnoses, v.Notes = &diagnoses, &notes
	return nil
}

// CanReschedule reports the state failure that would stop Reschedule, if any.
func (v *Visit) CanReschedule() error {
	if v.Status != StatusScheduled {
		return apperr.Conflict("only scheduled visits can be rescheduled")
	}
	return nil
}

// Reschedule moves the visit and returns the audit entry recording the move.
// A non-positive duration keeps the current one. Slot availability is the
// caller's concern.
func (v *Visit) Reschedule(date clinictime.Date, at clinictime.TimeOfDay, duration int, performedBy *string) (*History, error) {
	if err := v.CanReschedule(); err != nil {
		return nil, err
	}
	if date.IsZero() || !at.Valid() {
		return nil, apperr.Validation("new date and time are required")
	}
	h := &History{
		VisitID:     v.ID,
		OldDate:     v.VisitDate,
		OldTime:     v.VisitTime,
		NewDate:     &date,
		NewTime:     &at,
		Action:      ActionReschedule,
		PerformedBy: trimmed(performedBy),
	}
	v.VisitDate, v.VisitTime = date, at
	if duration > 0 {
		v.Duration = duration
	}
	return h, nil
}

func (v *Visit) AssignTreatment(treatmentID uuid.UUID) error {
	if treatmentID == uuid.Nil {
		return apperr.Validation("treatment_id is required")
	}
	if !v.treatable() {
		return apperr.Conflict("visit must be in progress or completed to add treatments")
	}
	v.TreatmentID = &treatmentID
	return nil
}

func (v *Visit) UnassignTreatment() error {
	if !v.treatable() {
		return apperr.Conflict("visit must be in progress or completed to remove treatments")
	}
	v.TreatmentID = nil
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// Action tags a history entry.
type Action string

const (
	ActionReschedule Action = "RESCHEDULE"
	ActionCancel     Action = "CANCEL"
)

// History is one append-only audit entry for a cancel or reschedule.
type History struct {
	ID          uuid.UUID             `db:"id" json:"id"`
	VisitID     uuid.UUID             `db:"visit_id" json:"visit_id"`
	OldDate     clinictime.Date       `db:"old_date" json:"old_date"`
	OldTime     clinictime.TimeOfDay  `db:"old_time" json:"old_time"`
	NewDate     *clinictime.Date      `db:"new_date" json:"new_date"`
	NewTime     *clinictime.TimeOfDay `db:"new_time" json:"new_time"`
	Action      Action                `db:"action" json:"action"`
	PerformedBy *string               `db:"performed_by" json:"performed_by,omitempty"`
	CreatedAt   time.Time             `db:"created_at" json:"created_at"`
}
