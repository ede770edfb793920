package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepoPG returns the repository of one lookup table. The table name is
// interpolated into SQL, so only names from Tables are accepted.
func NewRepoPG(pool *pgxpool.Pool, t Table) (Repository, error) {
	if _, ok := Lookup(t.Name); !ok || !db.ValidSchema(t.Name) {
		return nil, fmt.Errorf("unknown catalog table %q", t.Name)
	}
	return &repoPG{pool: pool, table: t.Name}, nil
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Entry, int, error) {
	var where []string
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+db.EscapeLike(q)+"%")
		where = append(where, fmt.Sprintf("descripcion ILIKE $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, fmt.Sprintf("activo = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM "+r.table+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count "+r.table)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		"SELECT id, descripcion, activo FROM %s%s ORDER BY lower(descripcion) LIMIT $%d OFFSET $%d",
		r.table, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list "+r.table)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Description, &e.Active); err != nil {
			return nil, 0, db.Classify(err, "scan "+r.table)
		}
		out = append(out, &e)
	}
	return out, total, db.Classify(rows.Err(), "list "+r.table)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var e Entry
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT id, descripcion, activo FROM "+r.table+" WHERE id = $1", id).
		Scan(&e.ID, &e.Description, &e.Active)
	if err != nil {
		return nil, db.Classify(err, "get "+r.table)
	}
	return &e, nil
}

func (r *repoPG) Exists(ctx context.Context, description string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+r.table+" WHERE lower(descripcion) = lower($1) AND id <> $2)",
		description, exclude).Scan(&exists)
	if err != nil {
		return false, db.Classify(err, "exists "+r.table)
	}
	return exists, nil
}

func (r *repoPG) Save(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx,
		"INSERT INTO "+r.table+" (id, descripcion, activo) VALUES ($1, $2, $3)",
		e.ID, e.Description, e.Active)
	return r.classifyWrite(err, "insert")
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx,
		"UPDATE "+r.table+" SET descripcion = $2, activo = $3 WHERE id = $1",
		e.ID, e.Description, e.Active)
	if err != nil {
		return r.classifyWrite(err, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "update %s: record not found", r.table)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM "+r.table+" WHERE id = $1", id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindConflict, ErrInUse, "%s entry is still referenced", r.table)
	}
	if err != nil {
		return db.Classify(err, "delete "+r.table)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "delete %s: record not found", r.table)
	}
	return nil
}

func (r *repoPG) classifyWrite(err error, op string) error {
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return db.Classify(err, op+" "+r.table)
}
