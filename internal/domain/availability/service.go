package availability

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetsched/internal/domain/party"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Veterinarians resolves veterinarian ids.
type Veterinarians interface {
	GetVeterinarian(ctx context.Context, id uuid.UUID) (*party.Person, error)
}

// Service owns availability windows and their exceptions and answers
// coverage questions over them.
type Service struct {
	windows    WindowRepository
	exceptions ExceptionRepository
	vets       Veterinarians
	tx         db.Transactor
}

func NewService(windows WindowRepository, exceptions ExceptionRepository, vets Veterinarians, tx db.Transactor) *Service {
	return &Service{windows: windows, exceptions: exceptions, vets: vets, tx: tx}
}

// -- Window --

func (s *Service) CreateWindow(ctx context.Context, w *Window) error {
	if err := w.validate(); err != nil {
		return err
	}
	if _, err := s.vets.GetVeterinarian(ctx, w.VeterinarianID); err != nil {
		return err
	}
	if err := s.windows.Create(ctx, w); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().
		Str("availability_id", w.ID.String()).
		Str("veterinarian_id", w.VeterinarianID.String()).
		Msg("availability created")
	return nil
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	return s.windows.GetByID(ctx, id)
}

// UpdateWindow replaces the recurrence of an existing window. The owning
// veterinarian never changes.
func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, rec Recurrence) (*Window, error) {
	if err := rec.validate(); err != nil {
		return nil, err
	}
	w, err := s.windows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Recurrence = rec
	if err := s.windows.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWindow removes a window and every exception attached to it.
func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.windows.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.exceptions.DeleteByWindow(ctx, id); err != nil {
			return err
		}
		return s.windows.Delete(ctx, id)
	})
}

func (s *Service) ListWindows(ctx context.Context, vetID uuid.UUID) ([]*Window, error) {
	if _, err := s.vets.GetVeterinarian(ctx, vetID); err != nil {
		return nil, err
	}
	return s.windows.ListByVeterinarian(ctx, vetID)
}

func (s *Service) DeleteAllWindows(ctx context.Context, vetID uuid.UUID) error {
	if _, err := s.vets.GetVeterinarian(ctx, vetID); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		windows, err := s.windows.ListByVeterinarian(ctx, vetID)
		if err != nil {
			return err
		}
		for _, w := range windows {
			if err := s.exceptions.DeleteByWindow(ctx, w.ID); err != nil {
				return err
			}
		}
		return s.windows.DeleteByVeterinarian(ctx, vetID)
	})
}

// -- Exception --

func (s *Service) CreateException(ctx context.Context, e *Exception) error {
	if err := e.validate(); err != nil {
		return err
	}
	if _, err := s.windows.GetByID(ctx, e.WindowID); err != nil {
		return err
	}
	return s.exceptions.Create(ctx, e)
}

func (s *Service) GetException(ctx context.Context, id uuid.UUID) (*Exception, error) {
	return s.exceptions.GetByID(ctx, id)
}

// UpdateException replaces the recurrence and reason of an exception. The
// parent window never changes.
func (s *Service) UpdateException(ctx context.Context, id uuid.UUID, rec Recurrence, reason string) (*Exception, error) {
	candidate := &Exception{Recurrence: rec, Reason: reason}
	if err := candidate.validate(); err != nil {
		return nil, err
	}
	e, err := s.exceptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Recurrence = candidate.Recurrence
	e.Reason = candidate.Reason
	if err := s.exceptions.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) DeleteException(ctx context.Context, id uuid.UUID) error {
	return s.exceptions.Delete(ctx, id)
}

func (s *Service) ListExceptions(ctx context.Context, windowID uuid.UUID) ([]*Exception, error) {
	if _, err := s.windows.GetByID(ctx, windowID); err != nil {
		return nil, err
	}
	return s.exceptions.ListByWindow(ctx, windowID)
}

func (s *Service) DeleteAllExceptions(ctx context.Context, windowID uuid.UUID) error {
	if _, err := s.windows.GetByID(ctx, windowID); err != nil {
		return err
	}
	return s.exceptions.DeleteByWindow(ctx, windowID)
}

// -- Coverage --

func (s *Service) calendar(ctx context.Context, windows []*Window) (*Calendar, error) {
	ids := make([]uuid.UUID, len(windows))
	for i, w := range windows {
		ids[i] = w.ID
	}
	exceptions, err := s.exceptions.ListByWindows(ctx, ids)
	if err != nil {
		return nil, err
	}
	cal := &Calendar{Windows: windows, Exceptions: make(map[uuid.UUID][]*Exception)}
	for _, e := range exceptions {
		cal.Exceptions[e.WindowID] = append(cal.Exceptions[e.WindowID], e)
	}
	return cal, nil
}

// Calendar loads every window of a veterinarian with its exceptions.
func (s *Service) Calendar(ctx context.Context, vetID uuid.UUID) (*Calendar, error) {
	windows, err := s.windows.ListByVeterinarian(ctx, vetID)
	if err != nil {
		return nil, err
	}
	return s.calendar(ctx, windows)
}

// Covers reports whether the veterinarian works during [start,end) on date.
// The veterinarian is not resolved; an unknown id simply has no windows.
func (s *Service) Covers(ctx context.Context, vetID uuid.UUID, date clinictime.Date, start, end clinictime.TimeOfDay) (bool, error) {
	cal, err := s.Calendar(ctx, vetID)
	if err != nil {
		return false, err
	}
	return cal.Covers(date, start, end), nil
}

// CoveringVeterinarians returns the veterinarians whose calendar covers
// [start,end) on date, ordered by id.
func (s *Service) CoveringVeterinarians(ctx context.Context, date clinictime.Date, start, end clinictime.TimeOfDay) ([]uuid.UUID, error) {
	windows, err := s.windows.ListOccurringOn(ctx, date)
	if err != nil {
		return nil, err
	}
	cal, err := s.calendar(ctx, windows)
	if err != nil {
		return nil, err
	}

	byVet := make(map[uuid.UUID][]*Window)
	for _, w := range windows {
		byVet[w.VeterinarianID] = append(byVet[w.VeterinarianID], w)
	}
	var ids []uuid.UUID
	for vetID, ws := range byVet {
		vetCal := Calendar{Windows: ws, Exceptions: cal.Exceptions}
		if vetCal.Covers(date, start, end) {
			ids = append(ids, vetID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
