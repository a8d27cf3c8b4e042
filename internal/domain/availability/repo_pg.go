package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// recurrenceScan collects the driver-level values of a Recurrence.
type recurrenceScan struct {
	start, end             pgtype.Time
	periodStart, periodEnd time.Time
}

func (s *recurrenceScan) into(r *Recurrence) {
	r.StartTime = *db.TimeOfDay(s.start)
	r.EndTime = *db.TimeOfDay(s.end)
	r.PeriodStart = clinictime.DateOf(s.periodStart)
	r.PeriodEnd = clinictime.DateOf(s.periodEnd)
}

// =========== Window Repository ===========

type windowRepoPG struct{ pool *pgxpool.Pool }

func NewWindowRepoPG(pool *pgxpool.Pool) WindowRepository { return &windowRepoPG{pool: pool} }

func (r *windowRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const windowCols = `id, veterinarian_id, day_of_week, start_time, end_time,
	period_start, period_end, created_at, updated_at`

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	var rs recurrenceScan
	err := row.Scan(&w.ID, &w.VeterinarianID, &w.DayOfWeek, &rs.start, &rs.end,
		&rs.periodStart, &rs.periodEnd, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rs.into(&w.Recurrence)
	return &w, nil
}

func (r *windowRepoPG) list(ctx context.Context, where string, args ...interface{}) ([]*Window, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+windowCols+` FROM availability_window WHERE `+where+`
		ORDER BY day_of_week, start_time, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (r *windowRepoPG) Create(ctx context.Context, w *Window) error {
	w.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_window (id, veterinarian_id, day_of_week, start_time, end_time, period_start, period_end)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		w.ID, w.VeterinarianID, w.DayOfWeek, db.Time(w.StartTime), db.Time(w.EndTime),
		w.PeriodStart.Time(), w.PeriodEnd.Time(),
	).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	w, err := scanWindow(r.conn(ctx).QueryRow(ctx, `SELECT `+windowCols+` FROM availability_window WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("availability %s not found", id)
	}
	return w, err
}

func (r *windowRepoPG) Update(ctx context.Context, w *Window) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE availability_window SET day_of_week=$2, start_time=$3, end_time=$4,
			period_start=$5, period_end=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		w.ID, w.DayOfWeek, db.Time(w.StartTime), db.Time(w.EndTime),
		w.PeriodStart.Time(), w.PeriodEnd.Time(),
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("availability %s not found", w.ID)
	}
	return err
}

func (r *windowRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_window WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("availability %s not found", id)
	}
	return nil
}

func (r *windowRepoPG) ListByVeterinarian(ctx context.Context, vetID uuid.UUID) ([]*Window, error) {
	return r.list(ctx, `veterinarian_id = $1`, vetID)
}

func (r *windowRepoPG) ListOccurringOn(ctx context.Context, date clinictime.Date) ([]*Window, error) {
	return r.list(ctx, `day_of_week = $1 AND period_start <= $2 AND period_end >= $2`,
		date.Weekday(), date.Time())
}

func (r *windowRepoPG) DeleteByVeterinarian(ctx context.Context, vetID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_window WHERE veterinarian_id = $1`, vetID)
	return err
}

// =========== Exception Repository ===========

type exceptionRepoPG struct{ pool *pgxpool.Pool }

func NewExceptionRepoPG(pool *pgxpool.Pool) ExceptionRepository { return &exceptionRepoPG{pool: pool} }

func (r *exceptionRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const exceptionCols = `id, window_id, day_of_week, start_time, end_time,
	period_start, period_end, reason, created_at, updated_at`

func scanException(row pgx.Row) (*Exception, error) {
	var e Exception
	var rs recurrenceScan
	err := row.Scan(&e.ID, &e.WindowID, &e.DayOfWeek, &rs.start, &rs.end,
		&rs.periodStart, &rs.periodEnd, &e.Reason, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rs.into(&e.Recurrence)
	return &e, nil
}

func (r *exceptionRepoPG) Create(ctx context.Context, e *Exception) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_exception (id, window_id, day_of_week, start_time, end_time,
			period_start, period_end, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		e.ID, e.WindowID, e.DayOfWeek, db.Time(e.StartTime), db.Time(e.EndTime),
		e.PeriodStart.Time(), e.PeriodEnd.Time(), e.Reason,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *exceptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exception, error) {
	e, err := scanException(r.conn(ctx).QueryRow(ctx, `SELECT `+exceptionCols+` FROM availability_exception WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("exception %s not found", id)
	}
	return e, err
}

func (r *exceptionRepoPG) Update(ctx context.Context, e *Exception) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE availability_exception SET day_of_week=$2, start_time=$3, end_time=$4,
			period_start=$5, period_end=$6, reason=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		e.ID, e.DayOfWeek, db.Time(e.StartTime), db.Time(e.EndTime),
		e.PeriodStart.Time(), e.PeriodEnd.Time(), e.Reason,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("exception %s not found", e.ID)
	}
	return err
}

func (r *exceptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_exception WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("exception %s not found", id)
	}
	return nil
}

func (r *exceptionRepoPG) ListByWindow(ctx context.Context, windowID uuid.UUID) ([]*Exception, error) {
	return r.ListByWindows(ctx, []uuid.UUID{windowID})
}

func (r *exceptionRepoPG) ListByWindows(ctx context.Context, windowIDs []uuid.UUID) ([]*Exception, error) {
	if len(windowIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+exceptionCols+` FROM availability_exception
		WHERE window_id = ANY($1)
		ORDER BY period_start, start_time, id`, windowIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Exception
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *exceptionRepoPG) DeleteByWindow(ctx context.Context, windowID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_exception WHERE window_id = $1`, windowID)
	return err
}
