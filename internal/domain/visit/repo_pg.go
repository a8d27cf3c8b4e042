package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

const exclusionViolation = "23P01"

// mapWriteErr turns the overlap constraint into the same Conflict the slot
// checker reports.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return ErrOverlap
	}
	return err
}

// =========== Visit Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const visitCols = `id, visit_date, visit_time, duration, reason, price_per_fifteen, status,
	veterinarian_id, pet_id, pet_owner_id, treatment_id, prescription_ids, invoice_id,
	diagnoses, notes, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var date time.Time
	var at pgtype.Time
	err := row.Scan(&v.ID, &date, &at, &v.Duration, &v.Reason, &v.PricePerFifteen, &v.Status,
		&v.VeterinarianID, &v.PetID, &v.PetOwnerID, &v.TreatmentID, &v.PrescriptionIDs, &v.InvoiceID,
		&v.Diagnoses, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.VisitDate = clinictime.DateOf(date)
	v.VisitTime = *db.TimeOfDay(at)
	if v.PrescriptionIDs == nil {
		v.PrescriptionIDs = []uuid.UUID{}
	}
	return &v, nil
}

func (r *repoPG) list(ctx context.Context, where string, args ...interface{}) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visit WHERE `+where+`
		ORDER BY visit_date, visit_time, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	if v.PrescriptionIDs == nil {
		v.PrescriptionIDs = []uuid.UUID{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit (id, visit_date, visit_time, duration, reason, price_per_fifteen, status,
			veterinarian_id, pet_id, pet_owner_id, treatment_id, prescription_ids, invoice_id, diagnoses, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		v.ID, v.VisitDate.Time(), db.Time(v.VisitTime), v.Duration, v.Reason, v.PricePerFifteen, v.Status,
		v.VeterinarianID, v.PetID, v.PetOwnerID, v.TreatmentID, v.PrescriptionIDs, v.InvoiceID, v.Diagnoses, v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	return v, err
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE visit SET visit_date=$2, visit_time=$3, duration=$4, reason=$5, price_per_fifteen=$6,
			status=$7, treatment_id=$8, prescription_ids=$9, invoice_id=$10, diagnoses=$11, notes=$12,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		v.ID, v.VisitDate.Time(), db.Time(v.VisitTime), v.Duration, v.Reason, v.PricePerFifteen,
		v.Status, v.TreatmentID, v.PrescriptionIDs, v.InvoiceID, v.Diagnoses, v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("visit %s not found", v.ID)
	}
	return mapWriteErr(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("visit %s not found", id)
	}
	return nil
}

func (r *repoPG) ListByVeterinarianAndDate(ctx context.Context, vetID uuid.UUID, date clinictime.Date) ([]*Visit, error) {
	return r.list(ctx, `veterinarian_id = $1 AND visit_date = $2`, vetID, date.Time())
}

func (r *repoPG) ListByVeterinarianInRange(ctx context.Context, vetID uuid.UUID, start, end clinictime.Date) ([]*Visit, error) {
	return r.list(ctx, `veterinarian_id = $1 AND visit_date BETWEEN $2 AND $3`, vetID, start.Time(), end.Time())
}

func (r *repoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Visit, error) {
	return r.list(ctx, `pet_id = $1`, petID)
}

// =========== History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository { return &historyRepoPG{pool: pool} }

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *historyRepoPG) Append(ctx context.Context, h *History) error {
	h.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit_history (id, visit_id, old_date, old_time, new_date, new_time, action, performed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		h.ID, h.VisitID, h.OldDate.Time(), db.Time(h.OldTime), db.NullDate(h.NewDate), db.NullTime(h.NewTime),
		h.Action, h.PerformedBy,
	).Scan(&h.CreatedAt)
}

func (r *historyRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*History, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, old_date, old_time, new_date, new_time, action, performed_by, created_at
		FROM visit_history WHERE visit_id = $1
		ORDER BY created_at, id`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*History
	for rows.Next() {
		var h History
		var oldDate time.Time
		var oldTime, newTime pgtype.Time
		var newDate pgtype.Date
		if err := rows.Scan(&h.ID, &h.VisitID, &oldDate, &oldTime, &newDate, &newTime,
			&h.Action, &h.PerformedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.OldDate = clinictime.DateOf(oldDate)
		h.OldTime = *db.TimeOfDay(oldTime)
		h.NewDate = db.Date(newDate)
		h.NewTime = db.TimeOfDay(newTime)
		items = append(items, &h)
	}
	return items, rows.Err()
}
