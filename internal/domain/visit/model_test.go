package visit

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

func hm(h, m int) clinictime.TimeOfDay { return clinictime.NewTimeOfDay(h, m) }

func hmPtr(h, m int) *clinictime.TimeOfDay {
	t := hm(h, m)
	return &t
}

func newVisit(status Status) *Visit {
	return &Visit{
		ID:        uuid.New(),
		VisitDate: clinictime.NewDate(2025, 6, 2),
		VisitTime: hm(10, 0),
		Duration:  30,
		Reason:    "Checkup",
		Status:    status,
	}
}

var allStatuses = []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNotShowedUp}

func TestVisit_Start(t *testing.T) {
	for _, st := range allStatuses {
		v := newVisit(st)
		err := v.Start()
		if st == StatusScheduled {
			if err != nil || v.Status != StatusInProgress {
				t.Errorf("start from %s: got %v, status %s", st, err, v.Status)
			}
			continue
		}
		if !apperr.IsConflict(err) || v.Status != st {
			t.Errorf("start from %s: expected conflict and unchanged status, got %v, %s", st, err, v.Status)
		}
	}
}

func TestVisit_StartTwice(t *testing.T) {
	v := newVisit(StatusScheduled)
	if err := v.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Start(); !apperr.IsConflict(err) {
		t.Errorf("expected conflict on second start, got %v", err)
	}
}

func TestVisit_Complete(t *testing.T) {
	for _, st := range allStatuses {
		v := newVisit(st)
		err := v.Complete()
		if st == StatusInProgress {
			if err != nil || v.Status != StatusCompleted {
				t.Errorf("complete from %s: got %v, status %s", st, err, v.Status)
			}
			continue
		}
		if !apperr.IsConflict(err) {
			t.Errorf("complete from %s: expected conflict, got %v", st, err)
		}
	}
}

func TestVisit_Cancel(t *testing.T) {
	by := "  reception "
	for _, st := range allStatuses {
		v := newVisit(st)
		h, err := v.Cancel(&by)
		switch st {
		case StatusScheduled, StatusInProgress:
			if err != nil {
				t.Fatalf("cancel from %s: %v", st, err)
			}
			if v.Status != StatusCancelled {
				t.Errorf("expected CANCELLED, got %s", v.Status)
			}
			if h.Action != ActionCancel || h.NewDate != nil || h.NewTime != nil {
				t.Errorf("unexpected history %+v", h)
			}
			if !h.OldDate.Equal(v.VisitDate) || h.OldTime != v.VisitTime || h.VisitID != v.ID {
				t.Errorf("expected old slot to be recorded, got %+v", h)
			}
			if h.PerformedBy == nil || *h.PerformedBy != "reception" {
				t.Errorf("expected trimmed performer, got %v", h.PerformedBy)
			}
		default:
			if !apperr.IsConflict(err) || h != nil {
				t.Errorf("cancel from %s: expected conflict, got %v", st, err)
			}
		}
	}
}

func TestVisit_Cancel_BlankPerformer(t *testing.T) {
	blank := " "
	h, err := newVisit(StatusScheduled).Cancel(&blank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.PerformedBy != nil {
		t.Errorf("expected blank performer to be dropped, got %q", *h.PerformedBy)
	}
}

func TestVisit_MarkNotShowedUp_GracePeriod(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	scheduled := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)

	v := newVisit(StatusScheduled)
	if err := v.MarkNotShowedUp(scheduled.Add(10*time.Minute-time.Second), loc); !apperr.IsConflict(err) {
		t.Errorf("expected conflict before grace period, got %v", err)
	}
	if v.Status != StatusScheduled {
		t.Fatalf("expected status unchanged, got %s", v.Status)
	}
	if err := v.MarkNotShowedUp(scheduled.Add(10*time.Minute), loc); err != nil {
		t.Errorf("expected success at grace period, got %v", err)
	}
	if v.Status != StatusNotShowedUp {
		t.Errorf("expected NOT_SHOWED_UP, got %s", v.Status)
	}
}

func TestVisit_MarkNotShowedUp_UsesLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	v := newVisit(StatusScheduled)
	// 09:15 UTC is 10:15 in CET.
	if err := v.MarkNotShowedUp(time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC), loc); err != nil {
		t.Errorf("expected success, got %v", err)
	}
}

func TestVisit_MarkNotShowedUp_WrongStatus(t *testing.T) {
	v := newVisit(StatusInProgress)
	if err := v.MarkNotShowedUp(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestVisit_RecordDiagnosisAndNotes(t *testing.T) {
	v := newVisit(StatusScheduled)
	if err := v.RecordDiagnosisAndNotes("otitis", "drops"); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for scheduled visit, got %v", err)
	}

	v = newVisit(StatusInProgress)
	if err := v.RecordDiagnosisAndNotes(" ", "drops"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for blank diagnoses, got %v", err)
	}
	if err := v.RecordDiagnosisAndNotes("otitis", ""); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for blank notes, got %v", err)
	}
	if v.Diagnoses != nil || v.Notes != nil {
		t.Fatal("expected no partial write on validation failure")
	}
	if err := v.RecordDiagnosisAndNotes("otitis", "drops twice a day"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v.Diagnoses != "otitis" || *v.Notes != "drops twice a day" {
		t.Errorf("unexpected values %q %q", *v.Diagnoses, *v.Notes)
	}

	v = newVisit(StatusCompleted)
	if err := v.RecordDiagnosisAndNotes("otitis", "drops"); err != nil {
		t.Errorf("expected completed visit to accept diagnosis, got %v", err)
	}
}

func TestVisit_Reschedule(t *testing.T) {
	v := newVisit(StatusScheduled)
	newDate := clinictime.NewDate(2025, 6, 9)
	h, err := v.Reschedule(newDate, hm(11, 0), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.VisitDate.Equal(newDate) || v.VisitTime != hm(11, 0) || v.Duration != 30 {
		t.Errorf("unexpected visit after reschedule: %+v", v)
	}
	if h.Action != ActionReschedule || !h.OldDate.Equal(clinictime.NewDate(2025, 6, 2)) || h.OldTime != hm(10, 0) {
		t.Errorf("unexpected history %+v", h)
	}
	if h.NewDate == nil || !h.NewDate.Equal(newDate) || h.NewTime == nil || *h.NewTime != hm(11, 0) {
		t.Errorf("expected new slot recorded, got %+v", h)
	}

	if _, err := v.Reschedule(newDate, hm(11, 0), 45, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Duration != 45 {
		t.Errorf("expected duration 45, got %d", v.Duration)
	}
}

func TestVisit_Reschedule_NotScheduled(t *testing.T) {
	v := newVisit(StatusInProgress)
	if _, err := v.Reschedule(clinictime.NewDate(2025, 6, 9), hm(11, 0), 0, nil); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
	if !v.VisitDate.Equal(clinictime.NewDate(2025, 6, 2)) {
		t.Error("expected date unchanged")
	}
}

func TestVisit_Treatment(t *testing.T) {
	v := newVisit(StatusScheduled)
	if err := v.AssignTreatment(uuid.New()); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for scheduled visit, got %v", err)
	}

	v = newVisit(StatusInProgress)
	if err := v.AssignTreatment(uuid.Nil); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for nil treatment, got %v", err)
	}
	id := uuid.New()
	if err := v.AssignTreatment(id); err != nil || *v.TreatmentID != id {
		t.Fatalf("assign: %v", err)
	}
	if err := v.UnassignTreatment(); err != nil || v.TreatmentID != nil {
		t.Fatalf("unassign: %v", err)
	}

	v = newVisit(StatusCancelled)
	if err := v.UnassignTreatment(); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for cancelled visit, got %v", err)
	}
}

func TestVisit_EndAndOverlaps(t *testing.T) {
	v := newVisit(StatusScheduled)
	if v.End() != hm(10, 30) {
		t.Errorf("expected end 10:30, got %s", v.End())
	}
	if v.Overlaps(v.VisitDate, hm(10, 30), hm(11, 0)) {
		t.Error("expected touching slot not to overlap")
	}
	if !v.Overlaps(v.VisitDate, hm(10, 15), hm(10, 45)) {
		t.Error("expected overlapping slot")
	}
	if v.Overlaps(v.VisitDate.AddDays(1), hm(10, 0), hm(10, 30)) {
		t.Error("expected other day not to overlap")
	}
}

func TestVisit_Invoiceable(t *testing.T) {
	for _, st := range allStatuses {
		if got := newVisit(st).Invoiceable(); got != (st == StatusCompleted) {
			t.Errorf("Invoiceable() for %s = %v", st, got)
		}
	}
}

func TestSentinelErrorsMatchByMessage(t *testing.T) {
	err := apperr.Conflict("overlaps with another visit")
	if !errors.Is(err, ErrOverlap) {
		t.Error("expected store conflict to match ErrOverlap")
	}
	if errors.Is(err, ErrNoSlot) {
		t.Error("expected ErrNoSlot not to match")
	}
}
