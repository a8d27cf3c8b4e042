package party

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Role tags what a person is to the clinic.
type Role string

const (
	RoleVeterinarian  Role = "VETERINARIAN"
	RolePetOwner      Role = "PET_OWNER"
	RoleAdministrator Role = "ADMINISTRATOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVeterinarian, RolePetOwner, RoleAdministrator:
		return true
	}
	return false
}

// Person is anyone known to the clinic. LicenseNumber and YearsOfExperience
// only apply to veterinarians.
type Person struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Role              Role      `db:"role" json:"role"`
	FirstName         string    `db:"first_name" json:"first_name"`
	LastName          string    `db:"last_name" json:"last_name"`
	Email             *string   `db:"email" json:"email,omitempty"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	LicenseNumber     *string   `db:"license_number" json:"license_number,omitempty"`
	YearsOfExperience *int      `db:"years_of_experience" json:"years_of_experience,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Pet is an animal with one or more owners.
type Pet struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	Species   *string          `db:"species" json:"species,omitempty"`
	Breed     *string          `db:"breed" json:"breed,omitempty"`
	Gender    *string          `db:"gender" json:"gender,omitempty"`
	BirthDate *clinictime.Date `db:"birth_date" json:"birth_date,omitempty"`
	Microchip *string          `db:"microchip" json:"microchip,omitempty"`
	OwnerIDs  []uuid.UUID      `json:"owner_ids"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether ownerID is among the pet's owners.
func (p *Pet) OwnedBy(ownerID uuid.UUID) bool {
	for _, id := range p.OwnerIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}
