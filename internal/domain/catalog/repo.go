package catalog

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	Query  string
	Active *bool
	Limit  int
	Offset int
}

// Repository is the contract shared by every lookup table.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Entry, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// Exists matches description case-insensitively, ignoring the row exclude.
	Exists(ctx context.Context, description string, exclude uuid.UUID) (bool, error)
	Save(ctx context.Context, e *Entry) error
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
}
