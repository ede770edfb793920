package person

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Service exposes read access to persons so clients can find an existing
// person before attaching a new role to it.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := s.repo.GetByID(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.New(apperr.KindNotFound, "person not found")
	}
	return p, err
}

func (s *Service) FindByNationalID(ctx context.Context, nationalID string) ([]*Person, error) {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return nil, apperr.New(apperr.KindValidation, "cedula is required")
	}
	return s.repo.ListByNationalID(ctx, nationalID)
}
