package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// =========== Person Repository ===========

type personRepoPG struct{ pool *pgxpool.Pool }

func NewPersonRepoPG(pool *pgxpool.Pool) PersonRepository { return &personRepoPG{pool: pool} }

func (r *personRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const personCols = `id, role, first_name, last_name, email, phone, license_number,
	years_of_experience, created_at, updated_at`

func scanPerson(row pgx.Row) (*Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.Role, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.LicenseNumber, &p.YearsOfExperience, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *personRepoPG) Create(ctx context.Context, p *Person) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO person (id, role, first_name, last_name, email, phone, license_number, years_of_experience)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.Role, p.FirstName, p.LastName, p.Email, p.Phone, p.LicenseNumber, p.YearsOfExperience,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *personRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := scanPerson(r.conn(ctx).QueryRow(ctx, `SELECT `+personCols+` FROM person WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("person %s not found", id)
	}
	return p, err
}

func (r *personRepoPG) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*Person, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM person WHERE $1 = '' OR role = $1`, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+personCols+` FROM person
		WHERE $1 = '' OR role = $1
		ORDER BY last_name, first_name, id LIMIT $2 OFFSET $3`, string(role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Pet Repository ===========

type petRepoPG struct{ pool *pgxpool.Pool }

func NewPetRepoPG(pool *pgxpool.Pool) PetRepository { return &petRepoPG{pool: pool} }

func (r *petRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *petRepoPG) Create(ctx context.Context, p *Pet) error {
	p.ID = uuid.New()
	var birth *time.Time
	if p.BirthDate != nil {
		t := p.BirthDate.Time()
		birth = &t
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pet (id, name, species, breed, gender, birth_date, microchip)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Species, p.Breed, p.Gender, birth, p.Microchip,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	for _, ownerID := range p.OwnerIDs {
		if err := r.AddOwner(ctx, p.ID, ownerID); err != nil {
			return err
		}
	}
	return nil
}

func (r *petRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	var p Pet
	var birth *time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, species, breed, gender, birth_date, microchip, created_at, updated_at,
			ARRAY(SELECT owner_id FROM pet_ownership WHERE pet_id = pet.id ORDER BY owner_id)
		FROM pet WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Species, &p.Breed, &p.Gender, &birth, &p.Microchip,
		&p.CreatedAt, &p.UpdatedAt, &p.OwnerIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("pet %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if birth != nil {
		d := clinictime.DateOf(*birth)
		p.BirthDate = &d
	}
	return &p, nil
}

func (r *petRepoPG) AddOwner(ctx context.Context, petID, ownerID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pet_ownership (pet_id, owner_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, petID, ownerID)
	if err != nil {
		return fmt.Errorf("add owner %s to pet %s: %w", ownerID, petID, err)
	}
	return nil
}
