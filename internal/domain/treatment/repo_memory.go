package treatment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/pagination"
)

type repoMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Treatment
}

func NewRepoMemory() Repository {
	return &repoMemory{items: make(map[uuid.UUID]Treatment)}
}

func (r *repoMemory) Create(ctx context.Context, t *Treatment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.items[t.ID] = *t
	return nil
}

func (r *repoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("treatment %s not found", id)
	}
	return &t, nil
}

func (r *repoMemory) List(ctx context.Context, limit, offset int) ([]*Treatment, int, error) {
	r.mu.RLock()
	items := make([]*Treatment, 0, len(r.items))
	for _, t := range r.items {
		t := t
		items = append(items, &t)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return pagination.Page(items, pagination.Params{Limit: limit, Offset: offset}), len(items), nil
}

func (r *repoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("treatment %s not found", id)
	}
	delete(r.items, id)
	return nil
}
