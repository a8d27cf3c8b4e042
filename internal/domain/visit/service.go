package visit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetsched/internal/domain/availability"
	"github.com/vetclinic/vetsched/internal/domain/party"
	"github.com/vetclinic/vetsched/internal/domain/treatment"
	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/internal/platform/slotlock"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

// Directory resolves the people and pets a visit refers to.
type Directory interface {
	GetVeterinarian(ctx context.Context, id uuid.UUID) (*party.Person, error)
	GetPetOwner(ctx context.Context, id uuid.UUID) (*party.Person, error)
	GetPet(ctx context.Context, id uuid.UUID) (*party.Pet, error)
}

// Treatments resolves treatment ids.
type Treatments interface {
	Get(ctx context.Context, id uuid.UUID) (*treatment.Treatment, error)
}

// Availability is the part of the availability service visits depend on.
type Availability interface {
	Coverage
	CoveringDirectory
	ListWindows(ctx context.Context, vetID uuid.UUID) ([]*availability.Window, error)
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	// Location is the clinic's time zone. Defaults to UTC.
	Location *time.Location
	// WalkInDuration is the length of a walk-in visit in minutes. Defaults to 30.
	WalkInDuration int
	// Now reads the wall clock. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	visits       Repository
	history      HistoryRepository
	directory    Directory
	treatments   Treatments
	availability Availability
	slots        *SlotChecker
	walkIn       *WalkInAssigner
	locker       slotlock.Locker
	tx           db.Transactor

	loc            *time.Location
	walkInDuration int
	now            func() time.Time
}

func NewService(visits Repository, history HistoryRepository, directory Directory, treatments Treatments,
	avail Availability, locker slotlock.Locker, tx db.Transactor, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WalkInDuration <= 0 {
		opts.WalkInDuration = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	slots := NewSlotChecker(avail, visits)
	return &Service{
		visits:         visits,
		history:        history,
		directory:      directory,
		treatments:     treatments,
		availability:   avail,
		slots:          slots,
		walkIn:         NewWalkInAssigner(avail, slots, opts.Now, opts.Location),
		locker:         locker,
		tx:             tx,
		loc:            opts.Location,
		walkInDuration: opts.WalkInDuration,
		now:            opts.Now,
	}
}

// withLock runs fn while holding key.
func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// -- Booking --

// CreateCommand books a new visit.
type CreateCommand struct {
	VisitDate       clinictime.Date       `json:"visit_date"`
	VisitTime       *clinictime.TimeOfDay `json:"visit_time"`
	Duration        *int                  `json:"duration"`
	Reason          string                `json:"reason"`
	PricePerFifteen float64               `json:"price_per_fifteen"`
	VeterinarianID  uuid.UUID             `json:"veterinarian_id"`
	PetID           uuid.UUID             `json:"pet_id"`
	PetOwnerID      uuid.UUID             `json:"pet_owner_id"`
}

func (cmd *CreateCommand) validate() error {
	if cmd.Duration == nil {
		d := DefaultDuration
		cmd.Duration = &d
	}
	if *cmd.Duration <= 0 {
		return apperr.Validation("duration must be positive")
	}
	if cmd.VisitDate.IsZero() {
		return apperr.Validation("visit_date is required")
	}
	if cmd.VisitTime == nil {
		return apperr.Validation("visit_time is required")
	}
	if !cmd.VisitTime.Valid() {
		return apperr.Validation("visit_time must be within the day")
	}
	if cmd.VeterinarianID == uuid.Nil {
		return apperr.Validation("veterinarian_id is required")
	}
	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if cmd.Reason == "" {
		return apperr.Validation("reason is required")
	}
	if cmd.PricePerFifteen < 0 {
		return apperr.Validation("price_per_fifteen cannot be negative")
	}
	return nil
}

// resolveParties checks that the veterinarian, pet and owner exist and that
// the owner owns the pet.
func (s *Service) resolveParties(ctx context.Context, vetID, petID, ownerID uuid.UUID) error {
	if vetID != uuid.Nil {
		if _, err := s.directory.GetVeterinarian(ctx, vetID); err != nil {
			return err
		}
	}
	pet, err := s.directory.GetPet(ctx, petID)
	if err != nil {
		return err
	}
	if _, err := s.directory.GetPetOwner(ctx, ownerID); err != nil {
		return err
	}
	if !pet.OwnedBy(ownerID) {
		return apperr.Validation("pet %s does not belong to owner %s", petID, ownerID)
	}
	return nil
}

// CreateVisit books a SCHEDULED visit after checking the slot.
func (s *Service) CreateVisit(ctx context.Context, cmd CreateCommand) (*Visit, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	if err := s.resolveParties(ctx, cmd.VeterinarianID, cmd.PetID, cmd.PetOwnerID); err != nil {
		return nil, err
	}

	v := &Visit{
		VisitDate:       cmd.VisitDate,
		VisitTime:       *cmd.VisitTime,
		Duration:        *cmd.Duration,
		Reason:          cmd.Reason,
		PricePerFifteen: cmd.PricePerFifteen,
		Status:          StatusScheduled,
		VeterinarianID:  cmd.VeterinarianID,
		PetID:           cmd.PetID,
		PetOwnerID:      cmd.PetOwnerID,
		PrescriptionIDs: []uuid.UUID{},
	}
	err := s.withLock(ctx, slotlock.Key(v.VeterinarianID, v.VisitDate), func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.slots.ValidateAvailability(ctx, v.VeterinarianID, v.VisitDate, v.VisitTime, v.End(), uuid.Nil); err != nil {
				return err
			}
			return s.visits.Create(ctx, v)
		})
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("visit_id", v.ID.String()).
		Str("veterinarian_id", v.VeterinarianID.String()).
		Str("date", v.VisitDate.String()).
		Str("time", v.VisitTime.String()).
		Int("duration", v.Duration).
		Msg("visit created")
	return v, nil
}

// CreateWalkInVisit assigns the first free veterinarian and starts the visit
// immediately.
func (s *Service) CreateWalkInVisit(ctx context.Context, petID, ownerID uuid.UUID) (*Visit, error) {
	if err := s.resolveParties(ctx, uuid.Nil, petID, ownerID); err != nil {
		return nil, err
	}

	slot := s.walkIn.SlotNow(s.walkInDuration)
	candidates, err := s.walkIn.Candidates(ctx, slot)
	if err != nil {
		return nil, err
	}

	for _, vetID := range candidates {
		v := &Visit{
			VisitDate:       slot.Date,
			VisitTime:       slot.Start,
			Duration:        s.walkInDuration,
			Reason:          walkInReason,
			Status:          StatusScheduled,
			VeterinarianID:  vetID,
			PetID:           petID,
			PetOwnerID:      ownerID,
			PrescriptionIDs: []uuid.UUID{},
		}
		if err := v.Start(); err != nil {
			return nil, err
		}
		err := s.withLock(ctx, slotlock.Key(vetID, slot.Date), func(ctx context.Context) error {
			return s.tx.WithinTx(ctx, func(ctx context.Context) error {
				if err := s.slots.ValidateAvailability(ctx, vetID, slot.Date, slot.Start, slot.End, uuid.Nil); err != nil {
					return err
				}
				return s.visits.Create(ctx, v)
			})
		})
		if apperr.IsConflict(err) {
			// Taken between the candidate scan and the lock; try the next one.
			continue
		}
		if err != nil {
			return nil, err
		}

		zerolog.Ctx(ctx).Info().
			Str("visit_id", v.ID.String()).
			Str("veterinarian_id", vetID.String()).
			Msg("walk-in visit assigned")
		return v, nil
	}
	return nil, ErrNoVeterinarianNow
}

// FindAvailableVeterinarianNow returns the veterinarian a walk-in of the
// given duration would be assigned to.
func (s *Service) FindAvailableVeterinarianNow(ctx context.Context, duration int) (uuid.UUID, error) {
	if duration <= 0 {
		duration = s.walkInDuration
	}
	vetID, _, err := s.walkIn.FindAvailableVeterinarianNow(ctx, duration)
	return vetID, err
}

// CheckSlot reports whether the slot is bookable for a known veterinarian.
func (s *Service) CheckSlot(ctx context.Context, vetID uuid.UUID, date clinictime.Date, start, end clinictime.TimeOfDay) (bool, error) {
	if start >= end {
		return false, apperr.Validation("start must be before end")
	}
	if _, err := s.directory.GetVeterinarian(ctx, vetID); err != nil {
		return false, err
	}
	return s.slots.IsSlotAvailable(ctx, vetID, date, start, end, uuid.Nil)
}

// -- Lifecycle --

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

// DeleteVisit removes the visit whatever its status. Its history is kept.
func (s *Service) DeleteVisit(ctx context.Context, id uuid.UUID) error {
	return s.visits.Delete(ctx, id)
}

// mutate applies fn to the stored visit under the visit's lock and saves the
// result. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, v *Visit) error) (*Visit, error) {
	var out *Visit
	err := s.withLock(ctx, slotlock.VisitKey(id), func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			v, err := s.visits.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := fn(ctx, v); err != nil {
				return err
			}
			if err := s.visits.Update(ctx, v); err != nil {
				return err
			}
			out = v
			return nil
		})
	})
	return out, err
}

func (s *Service) StartVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.mutate(ctx, id, func(_ context.Context, v *Visit) error { return v.Start() })
}

func (s *Service) CompleteVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.mutate(ctx, id, func(_ context.Context, v *Visit) error { return v.Complete() })
}

func (s *Service) MarkNotShowedUp(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.mutate(ctx, id, func(_ context.Context, v *Visit) error {
		return v.MarkNotShowedUp(s.now(), s.loc)
	})
}

func (s *Service) RecordDiagnosisAndNotes(ctx context.Context, id uuid.UUID, diagnoses, notes string) (*Visit, error) {
	return s.mutate(ctx, id, func(_ context.Context, v *Visit) error {
		return v.RecordDiagnosisAndNotes(diagnoses, notes)
	})
}

// CancelVisit cancels the visit and appends a CANCEL history entry.
func (s *Service) CancelVisit(ctx context.Context, id uuid.UUID, performedBy *string) (*Visit, error) {
	v, err := s.mutate(ctx, id, func(ctx context.Context, v *Visit) error {
		h, err := v.Cancel(performedBy)
		if err != nil {
			return err
		}
		return s.history.Append(ctx, h)
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("visit_id", id.String()).Msg("visit cancelled")
	return v, nil
}

// RescheduleCommand moves a visit. A zero Duration keeps the current one.
type RescheduleCommand struct {
	Date        clinictime.Date       `json:"new_date"`
	Time        *clinictime.TimeOfDay `json:"new_time"`
	Duration    int                   `json:"duration"`
	PerformedBy *string               `json:"performed_by"`
}

// RescheduleVisit moves a SCHEDULED visit into a free slot and appends a
// RESCHEDULE history entry. The visit is untouched when the slot is taken.
func (s *Service) RescheduleVisit(ctx context.Context, id uuid.UUID, cmd RescheduleCommand) (*Visit, *History, error) {
	if cmd.Duration < 0 {
		return nil, nil, apperr.Validation("duration must be positive")
	}
	if cmd.Date.IsZero() || cmd.Time == nil {
		return nil, nil, apperr.Validation("new_date and new_time are required")
	}
	if !cmd.Time.Valid() {
		return nil, nil, apperr.Validation("new_time must be within the day")
	}
	at := *cmd.Time

	var entry *History
	var out *Visit
	err := s.withLock(ctx, slotlock.VisitKey(id), func(ctx context.Context) error {
		current, err := s.visits.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := current.CanReschedule(); err != nil {
			return err
		}
		return s.withLock(ctx, slotlock.Key(current.VeterinarianID, cmd.Date), func(ctx context.Context) error {
			return s.tx.WithinTx(ctx, func(ctx context.Context) error {
				v, err := s.visits.GetByID(ctx, id)
				if err != nil {
					return err
				}
				duration := v.Duration
				if cmd.Duration > 0 {
					duration = cmd.Duration
				}
				end := at.Add(duration)
				if err := s.slots.ValidateAvailability(ctx, v.VeterinarianID, cmd.Date, at, end, v.ID); err != nil {
					return err
				}
				h, err := v.Reschedule(cmd.Date, at, cmd.Duration, cmd.PerformedBy)
				if err != nil {
					return err
				}
				if err := s.visits.Update(ctx, v); err != nil {
					return err
				}
				if err := s.history.Append(ctx, h); err != nil {
					return err
				}
				entry, out = h, v
				return nil
			})
		})
	})
	if err != nil {
		return nil, nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("visit_id", id.String()).
		Str("old_date", entry.OldDate.String()).
		Str("old_time", entry.OldTime.String()).
		Str("new_date", out.VisitDate.String()).
		Str("new_time", out.VisitTime.String()).
		Msg("visit rescheduled")
	return out, entry, nil
}

// ListHistory returns the audit trail of a visit, oldest first. The trail of
// a deleted visit is still returned.
func (s *Service) ListHistory(ctx context.Context, visitID uuid.UUID) ([]*History, error) {
	items, err := s.history.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if _, err := s.visits.GetByID(ctx, visitID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// -- Treatment --

func (s *Service) AssignTreatment(ctx context.Context, visitID, treatmentID uuid.UUID) (*Visit, error) {
	if treatmentID == uuid.Nil {
		return nil, apperr.Validation("treatment_id is required")
	}
	if _, err := s.treatments.Get(ctx, treatmentID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, visitID, func(_ context.Context, v *Visit) error {
		return v.AssignTreatment(treatmentID)
	})
}

func (s *Service) UnassignTreatment(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.mutate(ctx, visitID, func(_ context.Context, v *Visit) error {
		return v.UnassignTreatment()
	})
}

// GetTreatmentOfVisit returns the treatment assigned to the visit.
func (s *Service) GetTreatmentOfVisit(ctx context.Context, visitID uuid.UUID) (*treatment.Treatment, error) {
	v, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.TreatmentID == nil {
		return nil, apperr.NotFound("visit %s has no treatment", visitID)
	}
	return s.treatments.Get(ctx, *v.TreatmentID)
}

// -- Views --

func checkRange(start, end clinictime.Date) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start and end dates are required")
	}
	if end.Before(start) {
		return apperr.Validation("invalid date range: end before start")
	}
	return nil
}

// ListVisitsForVeterinarianInRange returns the veterinarian's visits between
// start and end inclusive, ordered by date then time.
func (s *Service) ListVisitsForVeterinarianInRange(ctx context.Context, vetID uuid.UUID, start, end clinictime.Date) ([]*Visit, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetVeterinarian(ctx, vetID); err != nil {
		return nil, err
	}
	return s.visits.ListByVeterinarianInRange(ctx, vetID, start, end)
}

// Schedule is a veterinarian's agenda over a date range.
type Schedule struct {
	VeterinarianID uuid.UUID              `json:"veterinarian_id"`
	StartDate      clinictime.Date        `json:"start_date"`
	EndDate        clinictime.Date        `json:"end_date"`
	Visits         []*Visit               `json:"visits"`
	Availabilities []*availability.Window `json:"availabilities"`
}

// VeterinarianSchedule returns the visits in range together with the
// availability windows valid at some point of the range.
func (s *Service) VeterinarianSchedule(ctx context.Context, vetID uuid.UUID, start, end clinictime.Date) (*Schedule, error) {
	visits, err := s.ListVisitsForVeterinarianInRange(ctx, vetID, start, end)
	if err != nil {
		return nil, err
	}
	windows, err := s.availability.ListWindows(ctx, vetID)
	if err != nil {
		return nil, err
	}
	sched := &Schedule{
		VeterinarianID: vetID,
		StartDate:      start,
		EndDate:        end,
		Visits:         append([]*Visit{}, visits...),
		Availabilities: []*availability.Window{},
	}
	for _, w := range windows {
		if !w.PeriodEnd.Before(start) && !w.PeriodStart.After(end) {
			sched.Availabilities = append(sched.Availabilities, w)
		}
	}
	return sched, nil
}

// MedicalRecord is one visit in a pet's medical history.
type MedicalRecord struct {
	VisitDate clinictime.Date      `json:"visit_date"`
	Visit     *Visit               `json:"visit"`
	Treatment *treatment.Treatment `json:"treatment,omitempty"`
}

// PetMedicalHistory returns every visit of the pet ordered by date then time.
func (s *Service) PetMedicalHistory(ctx context.Context, petID uuid.UUID) ([]*MedicalRecord, error) {
	if _, err := s.directory.GetPet(ctx, petID); err != nil {
		return nil, err
	}
	visits, err := s.visits.ListByPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	records := make([]*MedicalRecord, 0, len(visits))
	for _, v := range visits {
		rec := &MedicalRecord{VisitDate: v.VisitDate, Visit: v}
		if v.TreatmentID != nil {
			t, err := s.treatments.Get(ctx, *v.TreatmentID)
			if err != nil && !apperr.IsNotFound(err) {
				return nil, err
			}
			rec.Treatment = t
		}
		records = append(records, rec)
	}
	return records, nil
}
