package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "scheduling").Logger()
}

// Book creates an appointment. The specialist is locked for the rest of the
// transaction, so the overlap checks and the insert see a stable calendar.
func (s *Service) Book(ctx context.Context, in *Input) (*Appointment, error) {
	a, err := s.build(in)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case "":
		a.Status = StatusScheduled
	case StatusScheduled, StatusConfirmed:
	default:
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus, "new appointments must be %s or %s", StatusScheduled, StatusConfirmed)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkParticipants(ctx, a); err != nil {
			return err
		}
		if err := s.reserve(ctx, a); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("cita_id", a.ID.String()).Str("especialista_id", a.SpecialistID.String()).
		Time("inicio", a.Start).Msg("appointment booked")
	return a, nil
}

// Reschedule moves an appointment and may change its participants. Terminal
// appointments cannot change.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in *Input) (*Appointment, error) {
	next, err := s.build(in)
	if err != nil {
		return nil, err
	}
	next.ID = id

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if next.Status == "" {
			next.Status = current.Status
		}
		if !CanTransition(current.Status, next.Status) {
			return apperr.Wrap(apperr.KindConflict, ErrTransition, "cannot change a %s appointment to %s", current.Status, next.Status)
		}
		next.CreatedAt = current.CreatedAt
		if err := s.checkParticipants(ctx, next); err != nil {
			return err
		}
		if Blocking(next.Status) {
			if err := s.reserve(ctx, next); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// SetStatus moves an appointment through its lifecycle. Returning a no-show
// to the calendar re-checks its slot.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	status = normalizeStatus(status)
	if !ValidStatus(status) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus, "invalid estado %q", status)
	}
	var a *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.get(ctx, id); err != nil {
			return err
		}
		if !CanTransition(a.Status, status) {
			return apperr.Wrap(apperr.KindConflict, ErrTransition, "cannot change a %s appointment to %s", a.Status, status)
		}
		from := a.Status
		a.Status = status
		if !Blocking(from) && Blocking(status) {
			if err := s.reserve(ctx, a); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("cita_id", id.String()).Str("estado", status).Msg("appointment status changed")
	return a, nil
}

// Cancel frees the slot of an appointment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusCancelled)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	if f.Status != "" {
		f.Status = normalizeStatus(f.Status)
		if !ValidStatus(f.Status) {
			return nil, 0, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus, "invalid estado %q", f.Status)
		}
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, apperr.New(apperr.KindValidation, "hasta must be after desde")
	}
	return s.repo.List(ctx, f)
}

// Availability returns the free slots of a specialist in [from, to).
func (s *Service) Availability(ctx context.Context, specialistID uuid.UUID, from, to time.Time, step time.Duration) ([]Window, error) {
	if !to.After(from) {
		return nil, apperr.New(apperr.KindValidation, "hasta must be after desde")
	}
	if to.Sub(from) > 31*24*time.Hour {
		return nil, apperr.New(apperr.KindValidation, "availability range may span at most 31 days")
	}
	if step < 5*time.Minute || step > MaxDuration {
		return nil, apperr.New(apperr.KindValidation, "duracion must be between 5 and 480 minutes")
	}
	sp, err := s.repo.Specialist(ctx, specialistID)
	if err != nil {
		return nil, err
	}
	if !sp.Exists {
		return nil, ErrNotSpecialist
	}

	// A day holds far fewer appointments than this per specialist.
	busy, _, err := s.repo.List(ctx, ListFilter{SpecialistID: &specialistID, From: &from, To: &to, Limit: 10000})
	if err != nil {
		return nil, err
	}
	slots := FreeSlots(busy, from, to, step)
	if slots == nil {
		slots = []Window{}
	}
	return slots, nil
}

func (s *Service) build(in *Input) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "paciente_id is required")
	}
	if in.SpecialistID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "especialista_id is required")
	}
	if err := ValidateWindow(in.Start, in.End); err != nil {
		return nil, err
	}
	status := normalizeStatus(in.Status)
	if status != "" && !ValidStatus(status) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus, "invalid estado %q", in.Status)
	}
	a := &Appointment{
		PatientID:    in.PatientID,
		SpecialistID: in.SpecialistID,
		SpecialtyID:  in.SpecialtyID,
		Start:        in.Start.UTC(),
		End:          in.End.UTC(),
		Status:       status,
	}
	if in.Reason != nil {
		if r := strings.TrimSpace(*in.Reason); r != "" {
			a.Reason = &r
		}
	}
	return a, nil
}

func (s *Service) checkParticipants(ctx context.Context, a *Appointment) error {
	pa, err := s.repo.Patient(ctx, a.PatientID)
	if err != nil {
		return err
	}
	if !pa.Exists {
		return ErrUnknownPatient
	}
	if !pa.Active {
		return ErrInactivePatient
	}

	sp, err := s.repo.Specialist(ctx, a.SpecialistID)
	if err != nil {
		return err
	}
	if !sp.Exists || !sp.Active {
		return ErrNotSpecialist
	}
	if a.SpecialtyID != nil {
		for _, id := range sp.Specialties {
			if id == *a.SpecialtyID {
				return nil
			}
		}
		return ErrSpecialtyOffered
	}
	return nil
}

// reserve locks specialist and patient and fails when the slot overlaps
// another blocking appointment of either.
func (s *Service) reserve(ctx context.Context, a *Appointment) error {
	if err := s.repo.LockParticipants(ctx, a.SpecialistID, a.PatientID); err != nil {
		return err
	}
	w := Window{a.Start, a.End}
	n, err := s.repo.SpecialistOverlaps(ctx, a.SpecialistID, w, a.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.BookingConflicts.Inc()
		return ErrSlotTaken
	}
	if n, err = s.repo.PatientOverlaps(ctx, a.PatientID, w, a.ID); err != nil {
		return err
	}
	if n > 0 {
		metrics.BookingConflicts.Inc()
		return ErrPatientBusy
	}
	return nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func notFound(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Wrap(apperr.KindNotFound, err, "appointment not found")
	}
	return err
}
