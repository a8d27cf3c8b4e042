package db

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Time converts a time of day into a TIME parameter.
func Time(t clinictime.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Microseconds(), Valid: true}
}

// NullTime is Time for optional values.
func NullTime(t *clinictime.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return Time(*t)
}

// TimeOfDay converts a scanned TIME value. NULL yields nil.
func TimeOfDay(t pgtype.Time) *clinictime.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := clinictime.TimeOfDayFromMicroseconds(t.Microseconds)
	return &tod
}

// Date converts a scanned DATE value. NULL yields nil.
func Date(t pgtype.Date) *clinictime.Date {
	if !t.Valid {
		return nil
	}
	d := clinictime.DateOf(t.Time)
	return &d
}

// NullDate converts an optional date into a DATE parameter.
func NullDate(d *clinictime.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}
