package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
)

// DefaultCodeAttempts bounds how often a registration is retried after
// losing a race for its generated code.
const DefaultCodeAttempts = 3

type Service struct {
	patients Repository
	persons  person.Repository
	tx       db.TxRunner
	codes    *CodeGenerator
	logger   zerolog.Logger
	now      func() time.Time
	attempts int
}

func NewService(patients Repository, persons person.Repository, tx db.TxRunner) *Service {
	s := &Service{
		patients: patients,
		persons:  persons,
		tx:       tx,
		logger:   zerolog.Nop(),
		now:      time.Now,
		attempts: DefaultCodeAttempts,
	}
	s.codes = NewCodeGenerator(patients, s.now, s.logger)
	return s
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "patient").Logger()
	s.codes = NewCodeGenerator(s.patients, s.now, s.logger)
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.codes = NewCodeGenerator(s.patients, s.now, s.logger)
}

func (s *Service) SetCodeAttempts(n int) {
	if n > 0 {
		s.attempts = n
	}
}

// Register creates person, patient and, for minors, the guardian row in one
// transaction. A generated code that loses a race against a concurrent
// registration is regenerated and the whole transaction retried.
func (s *Service) Register(ctx context.Context, in *Registration) (*Patient, error) {
	now := s.now()

	pe, existing, err := s.resolvePerson(ctx, in)
	if err != nil {
		return nil, err
	}
	guardian := normalizedGuardian(in.Guardian)
	if err := validatePatient(pe, guardian, now); err != nil {
		return nil, err
	}

	clientCode := strings.ToUpper(strings.TrimSpace(in.Code))
	if clientCode != "" {
		if err := s.ensureCodeFree(ctx, clientCode, uuid.Nil); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		code := clientCode
		if code == "" {
			code = s.codes.Generate(ctx, pe.FirstName, pe.LastName, pe.NationalID)
		}

		p, err := s.create(ctx, pe, existing, in, guardian, code, now)
		if err == nil {
			metrics.Registrations.WithLabelValues("patient", "create").Inc()
			s.logger.Info().Str("patient_id", p.ID.String()).Str("codigo", p.Code).Bool("menor", p.Minor).Msg("patient registered")
			return p, nil
		}
		if clientCode == "" && errors.Is(err, ErrCodeTaken) && attempt < s.attempts {
			metrics.CodeRetries.Inc()
			s.logger.Warn().Str("codigo", code).Int("attempt", attempt).Msg("medical record code taken, retrying")
			continue
		}
		return nil, err
	}
}

func (s *Service) create(ctx context.Context, pe *person.Person, existing bool, in *Registration, g *Guardian, code string, now time.Time) (*Patient, error) {
	p := &Patient{
		Code:   code,
		Notes:  blankToNil(in.Notes),
		Active: in.Active == nil || *in.Active,
	}
	minor := person.IsMinor(*pe.BirthDate, now)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if !existing {
			if err := s.persons.Create(ctx, pe); err != nil {
				return err
			}
		}
		p.PersonID = pe.ID
		if err := s.patients.Create(ctx, p); err != nil {
			return err
		}
		if minor && g.HasName() {
			row := *g
			row.PatientID = p.ID
			if err := s.patients.UpsertGuardian(ctx, &row); err != nil {
				return err
			}
			p.Guardian = &row
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Person = pe
	p.Minor = minor
	return p, nil
}

// Update rewrites person and patient data. The stored code is kept unless a
// different, free code is supplied. Guardian data is upserted while the
// patient is a minor and removed once the birth date makes them an adult.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Registration) (*Patient, error) {
	now := s.now()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pe := in.Person
	pe.ID = current.PersonID
	pe.CreatedAt = current.Person.CreatedAt
	pe.Normalize()

	guardian := normalizedGuardian(in.Guardian)
	supplied := guardian != nil
	if !supplied {
		guardian = current.Guardian
	}
	if err := validatePatient(&pe, guardian, now); err != nil {
		return nil, err
	}

	code := current.Code
	if c := strings.ToUpper(strings.TrimSpace(in.Code)); c != "" && c != current.Code {
		if err := s.ensureCodeFree(ctx, c, id); err != nil {
			return nil, err
		}
		code = c
	}

	p := &Patient{
		ID:       id,
		PersonID: current.PersonID,
		Code:     code,
		Notes:    current.Notes,
		Active:   current.Active,
	}
	if in.Notes != nil {
		p.Notes = blankToNil(in.Notes)
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	minor := person.IsMinor(*pe.BirthDate, now)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Update(ctx, &pe); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		switch {
		case minor && supplied && guardian.HasName():
			row := *guardian
			row.PatientID = id
			if err := s.patients.UpsertGuardian(ctx, &row); err != nil {
				return err
			}
			p.Guardian = &row
		case minor:
			p.Guardian = current.Guardian
		default:
			removed, err := s.patients.DeleteGuardian(ctx, id)
			if err != nil {
				return err
			}
			if removed {
				s.logger.Info().Str("patient_id", id.String()).Msg("guardian data removed, patient is now an adult")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Registrations.WithLabelValues("patient", "update").Inc()
	p.Person = &pe
	p.Minor = minor
	return p, nil
}

// Delete removes guardian row, patient row and then the person, in that
// order and in one transaction. The person survives while a staff record
// still references it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if _, err := s.patients.DeleteGuardian(ctx, id); err != nil {
			return err
		}
		if err := s.patients.Delete(ctx, id); err != nil {
			return err
		}
		refs, err := s.persons.References(ctx, p.PersonID)
		if err != nil {
			return err
		}
		if refs.Patients > 0 || refs.Staff > 0 {
			s.logger.Info().Str("persona_id", p.PersonID.String()).Msg("person kept, still referenced by another role")
			return nil
		}
		return s.persons.Delete(ctx, p.PersonID)
	})
	if err != nil {
		return err
	}
	metrics.Registrations.WithLabelValues("patient", "delete").Inc()
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return s.withGuardian(ctx, p)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Patient, error) {
	p, err := s.patients.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, notFound(err)
	}
	return s.withGuardian(ctx, p)
}

// GetGuardian returns the guardian row of a patient.
func (s *Service) GetGuardian(ctx context.Context, id uuid.UUID) (*Guardian, error) {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return nil, notFound(err)
	}
	return s.patients.GetGuardian(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	items, total, err := s.patients.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for _, p := range items {
		p.Minor = isMinor(p.Person, now)
	}
	return items, total, nil
}

func (s *Service) withGuardian(ctx context.Context, p *Patient) (*Patient, error) {
	p.Minor = isMinor(p.Person, s.now())
	g, err := s.patients.GetGuardian(ctx, p.ID)
	switch {
	case err == nil:
		p.Guardian = g
	case apperr.KindOf(err) != apperr.KindNotFound:
		return nil, err
	}
	return p, nil
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

func (s *Service) ensureCodeFree(ctx context.Context, code string, exclude uuid.UUID) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	taken, err := s.patients.CodeInUse(ctx, code, exclude)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Wrap(apperr.KindConflict, ErrCodeTaken, "codigo %s already in use", code)
	}
	return nil
}

func validatePatient(pe *person.Person, g *Guardian, now time.Time) error {
	if err := pe.Validate(); err != nil {
		return err
	}
	if err := person.ValidateBirthDate(pe.BirthDate, now); err != nil {
		return err
	}
	return ValidateMinorGuardianData(*pe.BirthDate, g, now)
}

func normalizedGuardian(g *Guardian) *Guardian {
	if g == nil {
		return nil
	}
	out := *g
	out.normalize()
	return &out
}

func isMinor(pe *person.Person, now time.Time) bool {
	return pe != nil && pe.BirthDate != nil && person.IsMinor(*pe.BirthDate, now)
}

func notFound(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Wrap(apperr.KindNotFound, err, "patient not found")
	}
	return err
}
