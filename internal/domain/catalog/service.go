package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Service applies the catalog rules to one table.
type Service struct {
	table  Table
	repo   Repository
	logger zerolog.Logger
}

func NewService(t Table, repo Repository) *Service {
	return &Service{table: t, repo: repo, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "catalog").Str("catalog", s.table.Name).Logger()
}

func (s *Service) Table() Table { return s.table }

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Entry, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	return e, nil
}

// Save creates an entry; new entries are active unless stated otherwise.
func (s *Service) Save(ctx context.Context, in Input) (*Entry, error) {
	desc, err := s.checkDescription(ctx, in.Description, uuid.Nil)
	if err != nil {
		return nil, err
	}
	e := &Entry{Description: desc, Active: in.Active == nil || *in.Active}
	if err := s.repo.Save(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", e.ID.String()).Str("descripcion", desc).Msg("catalog entry created")
	return e, nil
}

// Update rewrites description and status. An omitted activo keeps the stored
// value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Entry, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	desc, err := s.checkDescription(ctx, in.Description, id)
	if err != nil {
		return nil, err
	}
	e := &Entry{ID: id, Description: desc, Active: current.Active}
	if in.Active != nil {
		e.Active = *in.Active
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, s.notFound(err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.notFound(err)
	}
	s.logger.Info().Str("id", id.String()).Msg("catalog entry deleted")
	return nil
}

func (s *Service) checkDescription(ctx context.Context, raw string, exclude uuid.UUID) (string, error) {
	desc, err := NormalizeDescription(raw)
	if err != nil {
		return "", err
	}
	exists, err := s.repo.Exists(ctx, desc, exclude)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apperr.Wrap(apperr.KindConflict, ErrDuplicate, "%s: descripcion %q already exists", s.table.Name, desc)
	}
	return desc, nil
}

func (s *Service) notFound(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Wrap(apperr.KindNotFound, err, "%s entry not found", s.table.Name)
	}
	return err
}

// Registry holds one service per table, in Tables order.
type Registry struct {
	services []*Service
	byName   map[string]*Service
}

// NewRegistry builds a service for every table in tables using newRepo.
func NewRegistry(tables []Table, newRepo func(Table) (Repository, error)) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*Service, len(tables))}
	for _, t := range tables {
		repo, err := newRepo(t)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", t.Name, err)
		}
		svc := NewService(t, repo)
		reg.services = append(reg.services, svc)
		reg.byName[t.Name] = svc
	}
	return reg, nil
}

func (r *Registry) SetLogger(l zerolog.Logger) {
	for _, s := range r.services {
		s.SetLogger(l)
	}
}

// Service returns the service of the named table.
func (r *Registry) Service(name string) (*Service, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func (r *Registry) Services() []*Service { return r.services }
