package party

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
)

// Service is the person and pet directory consumed by the scheduling core.
type Service struct {
	people PersonRepository
	pets   PetRepository
}

func NewService(people PersonRepository, pets PetRepository) *Service {
	return &Service{people: people, pets: pets}
}

// -- Person --

func (s *Service) CreatePerson(ctx context.Context, p *Person) error {
	if !p.Role.Valid() {
		return apperr.Validation("role must be one of %s, %s, %s", RoleVeterinarian, RolePetOwner, RoleAdministrator)
	}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if p.Role != RoleVeterinarian {
		p.LicenseNumber = nil
		p.YearsOfExperience = nil
	}
	if p.YearsOfExperience != nil && *p.YearsOfExperience < 0 {
		return apperr.Validation("years_of_experience cannot be negative")
	}
	return s.people.Create(ctx, p)
}

func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	return s.people.GetByID(ctx, id)
}

func (s *Service) ListPersons(ctx context.Context, role Role, limit, offset int) ([]*Person, int, error) {
	if role != "" && !role.Valid() {
		return nil, 0, apperr.Validation("unknown role %q", role)
	}
	return s.people.ListByRole(ctx, role, limit, offset)
}

func (s *Service) getWithRole(ctx context.Context, id uuid.UUID, role Role, label string) (*Person, error) {
	p, err := s.people.GetByID(ctx, id)
	if apperr.IsNotFound(err) || (err == nil && p.Role != role) {
		return nil, apperr.NotFound("%s %s not found", label, id)
	}
	return p, err
}

// GetVeterinarian resolves id to a veterinarian. People with another role
// are reported as not found.
func (s *Service) GetVeterinarian(ctx context.Context, id uuid.UUID) (*Person, error) {
	return s.getWithRole(ctx, id, RoleVeterinarian, "veterinarian")
}

func (s *Service) GetPetOwner(ctx context.Context, id uuid.UUID) (*Person, error) {
	return s.getWithRole(ctx, id, RolePetOwner, "pet owner")
}

// -- Pet --

func (s *Service) CreatePet(ctx context.Context, p *Pet) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if len(p.OwnerIDs) == 0 {
		return apperr.Validation("at least one owner is required")
	}
	seen := make(map[uuid.UUID]bool, len(p.OwnerIDs))
	owners := p.OwnerIDs[:0]
	for _, id := range p.OwnerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.GetPetOwner(ctx, id); err != nil {
			return err
		}
		owners = append(owners, id)
	}
	p.OwnerIDs = owners
	return s.pets.Create(ctx, p)
}

func (s *Service) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	return s.pets.GetByID(ctx, id)
}

func (s *Service) AddPetOwner(ctx context.Context, petID, ownerID uuid.UUID) (*Pet, error) {
	if _, err := s.pets.GetByID(ctx, petID); err != nil {
		return nil, err
	}
	if _, err := s.GetPetOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := s.pets.AddOwner(ctx, petID, ownerID); err != nil {
		return nil, err
	}
	return s.pets.GetByID(ctx, petID)
}

// Owns reports whether ownerID is recorded as an owner of petID.
func (s *Service) Owns(ctx context.Context, ownerID, petID uuid.UUID) (bool, error) {
	pet, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return false, err
	}
	return pet.OwnedBy(ownerID), nil
}
