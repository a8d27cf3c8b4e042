package availability

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/domain/party"
	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

type testEnv struct {
	svc       *Service
	directory *party.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	directory := party.NewService(party.NewPersonRepoMemory(), party.NewPetRepoMemory())
	svc := NewService(NewWindowRepoMemory(), NewExceptionRepoMemory(), directory, db.NopTx{})
	return &testEnv{svc: svc, directory: directory}
}

func (env *testEnv) vet(t *testing.T) uuid.UUID {
	t.Helper()
	p := &party.Person{Role: party.RoleVeterinarian, FirstName: "Ana", LastName: "Puig"}
	if err := env.directory.CreatePerson(context.Background(), p); err != nil {
		t.Fatalf("create veterinarian: %v", err)
	}
	return p.ID
}

func (env *testEnv) window(t *testing.T, vetID uuid.UUID, rec Recurrence) *Window {
	t.Helper()
	w := &Window{VeterinarianID: vetID, Recurrence: rec}
	if err := env.svc.CreateWindow(context.Background(), w); err != nil {
		t.Fatalf("create window: %v", err)
	}
	return w
}

func TestService_CoversMondayWithJuneBreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vetID := env.vet(t)
	w := env.window(t, vetID, mondayWindow().Recurrence)

	ex := juneBreak(w.ID)
	ex.ID = uuid.Nil
	if err := env.svc.CreateException(ctx, ex); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	monday := clinictime.NewDate(2025, 6, 2)
	cases := []struct {
		start, end clinictime.TimeOfDay
		want       bool
	}{
		{hm(9, 30), hm(10, 0), true},
		{hm(10, 0), hm(10, 15), false},
		{hm(9, 0), hm(9, 30), true},
	}
	for _, c := range cases {
		got, err := env.svc.Covers(ctx, vetID, monday, c.start, c.end)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("Covers(%s-%s) = %v, want %v", c.start, c.end, got, c.want)
		}
	}
}

func TestService_CreateWindow_UnknownVeterinarian(t *testing.T) {
	env := newTestEnv(t)
	w := &Window{VeterinarianID: uuid.New(), Recurrence: mondayWindow().Recurrence}
	if err := env.svc.CreateWindow(context.Background(), w); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_CreateWindow_Invalid(t *testing.T) {
	env := newTestEnv(t)
	rec := mondayWindow().Recurrence
	rec.DayOfWeek = 9
	w := &Window{VeterinarianID: env.vet(t), Recurrence: rec}
	if err := env.svc.CreateWindow(context.Background(), w); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_UpdateWindowKeepsOwner(t *testing.T) {
	env := newTestEnv(t)
	vetID := env.vet(t)
	w := env.window(t, vetID, mondayWindow().Recurrence)

	rec := w.Recurrence
	rec.DayOfWeek = 3
	updated, err := env.svc.UpdateWindow(context.Background(), w.ID, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DayOfWeek != 3 || updated.VeterinarianID != vetID {
		t.Errorf("unexpected window %+v", updated)
	}

	rec.StartTime = rec.EndTime
	if _, err := env.svc.UpdateWindow(context.Background(), w.ID, rec); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	got, _ := env.svc.GetWindow(context.Background(), w.ID)
	if got.DayOfWeek != 3 {
		t.Error("expected failed update to leave the window unchanged")
	}
}

func TestService_DeleteWindowCascadesExceptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.window(t, env.vet(t), mondayWindow().Recurrence)
	ex := juneBreak(w.ID)
	ex.ID = uuid.Nil
	if err := env.svc.CreateException(ctx, ex); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	if err := env.svc.DeleteWindow(ctx, w.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.GetException(ctx, ex.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected exception to be deleted with its window, got %v", err)
	}
	if err := env.svc.DeleteWindow(ctx, w.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestService_DeleteAllWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vetID := env.vet(t)
	other := env.vet(t)
	env.window(t, vetID, mondayWindow().Recurrence)
	env.window(t, vetID, mondayWindow().Recurrence)
	kept := env.window(t, other, mondayWindow().Recurrence)

	if err := env.svc.DeleteAllWindows(ctx, vetID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := env.svc.ListWindows(ctx, vetID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no windows, got %d", len(items))
	}
	if _, err := env.svc.GetWindow(ctx, kept.ID); err != nil {
		t.Errorf("expected other veterinarian's window to survive, got %v", err)
	}
}

func TestService_ExceptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.window(t, env.vet(t), mondayWindow().Recurrence)

	if err := env.svc.CreateException(ctx, &Exception{WindowID: uuid.New(), Recurrence: juneBreak(w.ID).Recurrence, Reason: "x"}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unknown window, got %v", err)
	}

	ex := &Exception{WindowID: w.ID, Recurrence: juneBreak(w.ID).Recurrence, Reason: "break"}
	if err := env.svc.CreateException(ctx, ex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := ex.Recurrence
	rec.EndTime = hm(11, 0)
	updated, err := env.svc.UpdateException(ctx, ex.ID, rec, " surgery ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Reason != "surgery" || updated.EndTime != hm(11, 0) || updated.WindowID != w.ID {
		t.Errorf("unexpected exception %+v", updated)
	}

	items, err := env.svc.ListExceptions(ctx, w.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one exception, got %d (%v)", len(items), err)
	}
	if err := env.svc.DeleteAllExceptions(ctx, w.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ = env.svc.ListExceptions(ctx, w.ID)
	if len(items) != 0 {
		t.Errorf("expected no exceptions, got %d", len(items))
	}
	if err := env.svc.DeleteException(ctx, ex.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_CoveringVeterinarians(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.vet(t), env.vet(t), env.vet(t)
	rec := mondayWindow().Recurrence
	env.window(t, a, rec)
	env.window(t, b, rec)
	blocked := env.window(t, c, rec)
	ex := juneBreak(blocked.ID)
	ex.ID = uuid.Nil
	if err := env.svc.CreateException(ctx, ex); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	ids, err := env.svc.CoveringVeterinarians(ctx, clinictime.NewDate(2025, 6, 2), hm(10, 0), hm(10, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 veterinarians, got %v", ids)
	}
	if ids[0].String() > ids[1].String() {
		t.Errorf("expected ids ordered, got %v", ids)
	}
	for _, id := range ids {
		if id == c {
			t.Error("expected the veterinarian on break to be excluded")
		}
	}
}
