package visit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

func sortVisits(items []*Visit) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := a.VisitDate.Compare(b.VisitDate); c != 0 {
			return c < 0
		}
		if a.VisitTime != b.VisitTime {
			return a.VisitTime < b.VisitTime
		}
		return a.ID.String() < b.ID.String()
	})
}

func cloneVisit(v Visit) *Visit {
	v.PrescriptionIDs = append([]uuid.UUID{}, v.PrescriptionIDs...)
	return &v
}

type repoMemory struct {
	mu     sync.RWMutex
	visits map[uuid.UUID]Visit
}

func NewRepoMemory() Repository {
	return &repoMemory{visits: make(map[uuid.UUID]Visit)}
}

// overlapping mirrors the visit_no_overlap constraint. Callers hold mu.
func (r *repoMemory) overlapping(v *Visit) bool {
	for id, other := range r.visits {
		if id != v.ID && other.VeterinarianID == v.VeterinarianID && other.Overlaps(v.VisitDate, v.VisitTime, v.End()) {
			return true
		}
	}
	return false
}

func (r *repoMemory) Create(ctx context.Context, v *Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if r.overlapping(v) {
		return apperr.Conflict("overlaps with another visit")
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	r.visits[v.ID] = *cloneVisit(*v)
	return nil
}

func (r *repoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	return cloneVisit(v), nil
}

func (r *repoMemory) Update(ctx context.Context, v *Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.visits[v.ID]
	if !ok {
		return apperr.NotFound("visit %s not found", v.ID)
	}
	if r.overlapping(v) {
		return apperr.Conflict("overlaps with another visit")
	}
	v.CreatedAt = old.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	r.visits[v.ID] = *cloneVisit(*v)
	return nil
}

func (r *repoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.visits[id]; !ok {
		return apperr.NotFound("visit %s not found", id)
	}
	delete(r.visits, id)
	return nil
}

func (r *repoMemory) filter(keep func(*Visit) bool) []*Visit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Visit
	for _, v := range r.visits {
		if keep(&v) {
			items = append(items, cloneVisit(v))
		}
	}
	sortVisits(items)
	return items
}

func (r *repoMemory) ListByVeterinarianAndDate(ctx context.Context, vetID uuid.UUID, date clinictime.Date) ([]*Visit, error) {
	return r.filter(func(v *Visit) bool {
		return v.VeterinarianID == vetID && v.VisitDate.Equal(date)
	}), nil
}

func (r *repoMemory) ListByVeterinarianInRange(ctx context.Context, vetID uuid.UUID, start, end clinictime.Date) ([]*Visit, error) {
	return r.filter(func(v *Visit) bool {
		return v.VeterinarianID == vetID && !v.VisitDate.Before(start) && !v.VisitDate.After(end)
	}), nil
}

func (r *repoMemory) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Visit, error) {
	return r.filter(func(v *Visit) bool { return v.PetID == petID }), nil
}

type historyRepoMemory struct {
	mu      sync.RWMutex
	entries []History
}

func NewHistoryRepoMemory() HistoryRepository {
	return &historyRepoMemory{}
}

func (r *historyRepoMemory) Append(ctx context.Context, h *History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = uuid.New()
	h.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *h)
	return nil
}

func (r *historyRepoMemory) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*History, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*History
	for _, h := range r.entries {
		if h.VisitID == visitID {
			h := h
			items = append(items, &h)
		}
	}
	return items, nil
}
