package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
)

type Service struct {
	staff     Repository
	persons   person.Repository
	tx        db.TxRunner
	positions PositionSet
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(staff Repository, persons person.Repository, tx db.TxRunner, positions PositionSet) *Service {
	return &Service{
		staff:     staff,
		persons:   persons,
		tx:        tx,
		positions: positions,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "staff").Logger()
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Register creates person, staff row and, for specialist positions, the
// specialist row with its specialties in one transaction. Every check runs
// before the first write.
func (s *Service) Register(ctx context.Context, in *Registration) (*Staff, error) {
	pe, existing, err := s.resolvePerson(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.validatePerson(pe); err != nil {
		return nil, err
	}
	pos, err := s.position(ctx, in.PositionID)
	if err != nil {
		return nil, err
	}

	var sp *Specialist
	if s.positions.RequiresSpecialist(pos.Description) {
		if sp, err = ValidateSpecialist(in.Specialist); err != nil {
			return nil, err
		}
	}

	st := &Staff{
		PositionID: pos.ID,
		Position:   pos.Description,
		Active:     in.Active == nil || *in.Active,
		HireDate:   in.HireDate,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if !existing {
			if err := s.persons.Create(ctx, pe); err != nil {
				return err
			}
		}
		st.PersonID = pe.ID
		if err := s.staff.Create(ctx, st); err != nil {
			return err
		}
		if sp != nil {
			return s.saveSpecialist(ctx, st.ID, sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.Person = pe
	st.Specialist = sp
	metrics.Registrations.WithLabelValues("staff", "create").Inc()
	s.logger.Info().Str("staff_id", st.ID.String()).Str("cargo", pos.Description).Bool("especialista", sp != nil).Msg("staff member registered")
	return st, nil
}

// Update rewrites person and staff data. Specialist data follows the
// position: kept or replaced for specialist positions, removed otherwise.
// A specialist update without specialist data keeps the stored data.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Registration) (*Staff, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pe := in.Person
	pe.ID = current.PersonID
	pe.CreatedAt = current.Person.CreatedAt
	pe.Normalize()
	if err := s.validatePerson(&pe); err != nil {
		return nil, err
	}

	posID := in.PositionID
	if posID == uuid.Nil {
		posID = current.PositionID
	}
	pos, err := s.position(ctx, posID)
	if err != nil {
		return nil, err
	}

	var sp *Specialist
	requires := s.positions.RequiresSpecialist(pos.Description)
	if requires {
		input := in.Specialist
		if input == nil {
			input = current.Specialist
		}
		if sp, err = ValidateSpecialist(input); err != nil {
			return nil, err
		}
	}

	st := &Staff{
		ID:         id,
		PersonID:   current.PersonID,
		PositionID: pos.ID,
		Position:   pos.Description,
		Active:     current.Active,
		HireDate:   current.HireDate,
	}
	if in.Active != nil {
		st.Active = *in.Active
	}
	if in.HireDate != nil {
		st.HireDate = in.HireDate
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Update(ctx, &pe); err != nil {
			return err
		}
		if err := s.staff.Update(ctx, st); err != nil {
			return err
		}
		if requires {
			return s.saveSpecialist(ctx, id, sp)
		}
		if err := s.staff.DeleteSpecialties(ctx, id); err != nil {
			return err
		}
		removed, err := s.staff.DeleteSpecialist(ctx, id)
		if err != nil {
			return err
		}
		if removed {
			s.logger.Info().Str("staff_id", id.String()).Str("cargo", pos.Description).Msg("specialist data removed for non-specialist position")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.Person = &pe
	st.Specialist = sp
	metrics.Registrations.WithLabelValues("staff", "update").Inc()
	return st, nil
}

// Delete removes specialties, specialist row, staff row and then the person,
// which survives while a patient record still references it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		st, err := s.staff.GetByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := s.staff.DeleteSpecialties(ctx, id); err != nil {
			return err
		}
		if _, err := s.staff.DeleteSpecialist(ctx, id); err != nil {
			return err
		}
		if err := s.staff.Delete(ctx, id); err != nil {
			return err
		}
		refs, err := s.persons.References(ctx, st.PersonID)
		if err != nil {
			return err
		}
		if refs.Patients > 0 || refs.Staff > 0 {
			s.logger.Info().Str("persona_id", st.PersonID.String()).Msg("person kept, still referenced by another role")
			return nil
		}
		return s.persons.Delete(ctx, st.PersonID)
	})
	if err != nil {
		return err
	}
	metrics.Registrations.WithLabelValues("staff", "delete").Inc()
	s.logger.Info().Str("staff_id", id.String()).Msg("staff member deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return st, nil
}

// GetSpecialist returns the specialist data of a staff member.
func (s *Service) GetSpecialist(ctx context.Context, id uuid.UUID) (*Specialist, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Specialist == nil {
		return nil, ErrNotSpecialist
	}
	return st.Specialist, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Staff, int, error) {
	return s.staff.List(ctx, f)
}

func (s *Service) saveSpecialist(ctx context.Context, staffID uuid.UUID, sp *Specialist) error {
	sp.StaffID = staffID
	if err := s.staff.UpsertSpecialist(ctx, sp); err != nil {
		return err
	}
	return s.staff.ReplaceSpecialties(ctx, staffID, sp.SpecialtyIDs)
}

func (s *Service) position(ctx context.Context, id uuid.UUID) (*Position, error) {
	if id == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "cargo_id is required")
	}
	pos, err := s.staff.GetPosition(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.Wrap(apperr.KindValidation, ErrUnknownPosition, "cargo_id %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	if !pos.Active {
		return nil, apperr.Wrap(apperr.KindValidation, ErrPositionIsInactive, "cargo %s is inactive", pos.Description)
	}
	return pos, nil
}

func (s *Service) resolvePerson(ctx context.Context, in *Registration) (*person.Person, bool, error) {
	if in.PersonID != nil {
		pe, err := s.persons.GetByID(ctx, *in.PersonID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, false, apperr.New(apperr.KindValidation, "persona_id %s does not exist", *in.PersonID)
		}
		if err != nil {
			return nil, false, err
		}
		return pe, true, nil
	}
	pe := in.Person
	pe.ID = uuid.Nil
	pe.Normalize()
	return &pe, false, nil
}

// validatePerson checks identity fields; staff birth dates are optional but
// must be plausible when given.
func (s *Service) validatePerson(pe *person.Person) error {
	if err := pe.Validate(); err != nil {
		return err
	}
	if pe.BirthDate != nil {
		return person.ValidateBirthDate(pe.BirthDate, s.now())
	}
	return nil
}

func notFound(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Wrap(apperr.KindNotFound, err, "staff member not found")
	}
	return err
}
