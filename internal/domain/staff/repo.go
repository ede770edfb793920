package staff

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List. SpecialtyID implies SpecialistsOnly.
type ListFilter struct {
	Query           string
	SpecialistsOnly bool
	SpecialtyID     *uuid.UUID
	Active          *bool
	Limit           int
	Offset          int
}

// Position is the cargo row a staff member is assigned to.
type Position struct {
	ID          uuid.UUID
	Description string
	Active      bool
}

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Staff, int, error)
	GetPosition(ctx context.Context, id uuid.UUID) (*Position, error)

	UpsertSpecialist(ctx context.Context, sp *Specialist) error
	DeleteSpecialist(ctx context.Context, staffID uuid.UUID) (bool, error)
	ReplaceSpecialties(ctx context.Context, staffID uuid.UUID, specialtyIDs []uuid.UUID) error
	DeleteSpecialties(ctx context.Context, staffID uuid.UUID) error
}
