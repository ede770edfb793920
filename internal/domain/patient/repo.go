package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List. Query matches name, surname, national ID or code.
type ListFilter struct {
	Query  string
	Active *bool
	Limit  int
	Offset int
}

type Repository interface {
	CodeLookup
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	CodeInUse(ctx context.Context, code string, exclude uuid.UUID) (bool, error)

	GetGuardian(ctx context.Context, patientID uuid.UUID) (*Guardian, error)
	UpsertGuardian(ctx context.Context, g *Guardian) error
	DeleteGuardian(ctx context.Context, patientID uuid.UUID) (bool, error)
}
