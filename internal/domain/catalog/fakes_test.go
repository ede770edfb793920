package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type memRepo struct {
	rows       map[uuid.UUID]*Entry
	referenced map[uuid.UUID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*Entry), referenced: make(map[uuid.UUID]bool)}
}

func (r *memRepo) List(_ context.Context, f ListFilter) ([]*Entry, int, error) {
	var out []*Entry
	for _, e := range r.rows {
		if f.Query != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Query)) {
			continue
		}
		if f.Active != nil && e.Active != *f.Active {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Description) < strings.ToLower(out[j].Description)
	})
	return out, len(out), nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	e, ok := r.rows[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get: record not found")
	}
	c := *e
	return &c, nil
}

func (r *memRepo) Exists(_ context.Context, description string, exclude uuid.UUID) (bool, error) {
	for id, e := range r.rows {
		if id != exclude && strings.EqualFold(e.Description, description) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Save(_ context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	c := *e
	r.rows[e.ID] = &c
	return nil
}

func (r *memRepo) Update(_ context.Context, e *Entry) error {
	if _, ok := r.rows[e.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "update: record not found")
	}
	c := *e
	r.rows[e.ID] = &c
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if r.referenced[id] {
		return apperr.Wrap(apperr.KindConflict, ErrInUse, "entry is still referenced")
	}
	if _, ok := r.rows[id]; !ok {
		return apperr.New(apperr.KindNotFound, "delete: record not found")
	}
	delete(r.rows, id)
	return nil
}
