package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

func sortWindows(items []*Window) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID.String() < b.ID.String()
	})
}

type windowRepoMemory struct {
	mu      sync.RWMutex
	windows map[uuid.UUID]Window
}

func NewWindowRepoMemory() WindowRepository {
	return &windowRepoMemory{windows: make(map[uuid.UUID]Window)}
}

func (r *windowRepoMemory) Create(ctx context.Context, w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	r.windows[w.ID] = *w
	return nil
}

func (r *windowRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, apperr.NotFound("availability %s not found", id)
	}
	return &w, nil
}

func (r *windowRepoMemory) Update(ctx context.Context, w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.windows[w.ID]
	if !ok {
		return apperr.NotFound("availability %s not found", w.ID)
	}
	w.CreatedAt = old.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	r.windows[w.ID] = *w
	return nil
}

func (r *windowRepoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[id]; !ok {
		return apperr.NotFound("availability %s not found", id)
	}
	delete(r.windows, id)
	return nil
}

func (r *windowRepoMemory) filter(keep func(*Window) bool) []*Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Window
	for _, w := range r.windows {
		w := w
		if keep(&w) {
			items = append(items, &w)
		}
	}
	sortWindows(items)
	return items
}

func (r *windowRepoMemory) ListByVeterinarian(ctx context.Context, vetID uuid.UUID) ([]*Window, error) {
	return r.filter(func(w *Window) bool { return w.VeterinarianID == vetID }), nil
}

func (r *windowRepoMemory) ListOccurringOn(ctx context.Context, date clinictime.Date) ([]*Window, error) {
	return r.filter(func(w *Window) bool { return w.OccursOn(date) }), nil
}

func (r *windowRepoMemory) DeleteByVeterinarian(ctx context.Context, vetID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.windows {
		if w.VeterinarianID == vetID {
			delete(r.windows, id)
		}
	}
	return nil
}

type exceptionRepoMemory struct {
	mu         sync.RWMutex
	exceptions map[uuid.UUID]Exception
}

func NewExceptionRepoMemory() ExceptionRepository {
	return &exceptionRepoMemory{exceptions: make(map[uuid.UUID]Exception)}
}

func (r *exceptionRepoMemory) Create(ctx context.Context, e *Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	r.exceptions[e.ID] = *e
	return nil
}

func (r *exceptionRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Exception, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exceptions[id]
	if !ok {
		return nil, apperr.NotFound("exception %s not found", id)
	}
	return &e, nil
}

func (r *exceptionRepoMemory) Update(ctx context.Context, e *Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.exceptions[e.ID]
	if !ok {
		return apperr.NotFound("exception %s not found", e.ID)
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	r.exceptions[e.ID] = *e
	return nil
}

func (r *exceptionRepoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exceptions[id]; !ok {
		return apperr.NotFound("exception %s not found", id)
	}
	delete(r.exceptions, id)
	return nil
}

func (r *exceptionRepoMemory) ListByWindow(ctx context.Context, windowID uuid.UUID) ([]*Exception, error) {
	return r.ListByWindows(ctx, []uuid.UUID{windowID})
}

func (r *exceptionRepoMemory) ListByWindows(ctx context.Context, windowIDs []uuid.UUID) ([]*Exception, error) {
	want := make(map[uuid.UUID]bool, len(windowIDs))
	for _, id := range windowIDs {
		want[id] = true
	}
	r.mu.RLock()
	var items []*Exception
	for _, e := range r.exceptions {
		e := e
		if want[e.WindowID] {
			items = append(items, &e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := a.PeriodStart.Compare(b.PeriodStart); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID.String() < b.ID.String()
	})
	return items, nil
}

func (r *exceptionRepoMemory) DeleteByWindow(ctx context.Context, windowID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.exceptions {
		if e.WindowID == windowID {
			delete(r.exceptions, id)
		}
	}
	return nil
}
