package person

import (
	"context"

	"github.com/google/uuid"
)

// Refs counts the role records attached to one person.
type Refs struct {
	Patients int
	Staff    int
}

type Repository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	Update(ctx context.Context, p *Person) error
	Delete(ctx context.Context, id uuid.UUID) error
	References(ctx context.Context, id uuid.UUID) (Refs, error)
	ListByNationalID(ctx context.Context, nationalID string) ([]*Person, error)
}
