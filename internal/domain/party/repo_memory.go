package party

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/pagination"
)

type personRepoMemory struct {
	mu     sync.RWMutex
	people map[uuid.UUID]Person
}

// NewPersonRepoMemory returns a PersonRepository held in process memory.
func NewPersonRepoMemory() PersonRepository {
	return &personRepoMemory{people: make(map[uuid.UUID]Person)}
}

func (r *personRepoMemory) Create(ctx context.Context, p *Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.people[p.ID] = *p
	return nil
}

func (r *personRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.people[id]
	if !ok {
		return nil, apperr.NotFound("person %s not found", id)
	}
	return &p, nil
}

func (r *personRepoMemory) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*Person, int, error) {
	r.mu.RLock()
	var items []*Person
	for _, p := range r.people {
		if role == "" || p.Role == role {
			p := p
			items = append(items, &p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].LastName != items[j].LastName {
			return items[i].LastName < items[j].LastName
		}
		if items[i].FirstName != items[j].FirstName {
			return items[i].FirstName < items[j].FirstName
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return pagination.Page(items, pagination.Params{Limit: limit, Offset: offset}), len(items), nil
}

type petRepoMemory struct {
	mu   sync.RWMutex
	pets map[uuid.UUID]Pet
}

// NewPetRepoMemory returns a PetRepository held in process memory.
func NewPetRepoMemory() PetRepository {
	return &petRepoMemory{pets: make(map[uuid.UUID]Pet)}
}

func (r *petRepoMemory) Create(ctx context.Context, p *Pet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.OwnerIDs = append([]uuid.UUID(nil), p.OwnerIDs...)
	r.pets[p.ID] = stored
	return nil
}

func (r *petRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pets[id]
	if !ok {
		return nil, apperr.NotFound("pet %s not found", id)
	}
	p.OwnerIDs = append([]uuid.UUID(nil), p.OwnerIDs...)
	return &p, nil
}

func (r *petRepoMemory) AddOwner(ctx context.Context, petID, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pets[petID]
	if !ok {
		return apperr.NotFound("pet %s not found", petID)
	}
	if p.OwnedBy(ownerID) {
		return nil
	}
	p.OwnerIDs = append(p.OwnerIDs, ownerID)
	p.UpdatedAt = time.Now().UTC()
	r.pets[petID] = p
	return nil
}
