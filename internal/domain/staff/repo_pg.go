package staff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const staffCols = `f.id, f.persona_id, f.cargo_id, c.descripcion, f.activo, f.fecha_ingreso, f.created_at, f.updated_at,
	es.funcionario_id, es.registro_profesional, es.color_agenda,
	ARRAY(SELECT ee.especialidad_id::text FROM especialista_especialidades ee
		WHERE ee.especialista_id = f.id ORDER BY ee.especialidad_id), ` + person.Cols

const staffFrom = ` FROM funcionarios f
	JOIN personas pe ON pe.id = f.persona_id
	JOIN cargos c ON c.id = f.cargo_id
	LEFT JOIN especialistas es ON es.funcionario_id = f.id`

func scanRow(row pgx.Row) (*Staff, error) {
	s := Staff{Person: &person.Person{}}
	var (
		hire        *time.Time
		specID      *uuid.UUID
		license     *string
		color       *string
		specialties []string
	)
	personDest, done := person.ScanDest(s.Person)
	dest := append([]interface{}{
		&s.ID, &s.PersonID, &s.PositionID, &s.Position, &s.Active, &hire, &s.CreatedAt, &s.UpdatedAt,
		&specID, &license, &color, &specialties,
	}, personDest...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	done()

	if hire != nil {
		s.HireDate = &person.Date{Time: *hire}
	}
	if specID != nil {
		sp := &Specialist{StaffID: s.ID}
		if license != nil {
			sp.License = *license
		}
		if color != nil {
			sp.CalendarColor = *color
		}
		for _, raw := range specialties {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parse specialty id %q: %w", raw, err)
			}
			sp.SpecialtyIDs = append(sp.SpecialtyIDs, id)
		}
		s.Specialist = sp
	}
	return &s, nil
}

func hireArg(d *person.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO funcionarios (id, persona_id, cargo_id, activo, fecha_ingreso)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		s.ID, s.PersonID, s.PositionID, s.Active, hireArg(s.HireDate),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindValidation, ErrUnknownPosition, "cargo_id %s does not exist", s.PositionID)
	}
	return db.Classify(err, "insert staff")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	s, err := scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+staffFrom+` WHERE f.id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "get staff")
	}
	return s, nil
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE funcionarios SET cargo_id=$2, activo=$3, fecha_ingreso=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.PositionID, s.Active, hireArg(s.HireDate),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindValidation, ErrUnknownPosition, "cargo_id %s does not exist", s.PositionID)
	}
	return db.Classify(err, "update staff")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM funcionarios WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindConflict, ErrHasAppointments, "staff member has appointments and cannot be deleted")
	}
	if err != nil {
		return db.Classify(err, "delete staff")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "staff member not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Staff, int, error) {
	var where []string
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+db.EscapeLike(q)+"%")
		where = append(where, fmt.Sprintf(
			`(pe.nombre ILIKE $%[1]d OR pe.apellido ILIKE $%[1]d OR pe.cedula ILIKE $%[1]d)`, len(args)))
	}
	if f.SpecialistsOnly || f.SpecialtyID != nil {
		where = append(where, "es.funcionario_id IS NOT NULL")
	}
	if f.SpecialtyID != nil {
		args = append(args, *f.SpecialtyID)
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM especialista_especialidades ee WHERE ee.especialista_id = f.id AND ee.especialidad_id = $%d)`, len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, fmt.Sprintf("f.activo = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+staffFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count staff")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+staffFrom+cond+
			fmt.Sprintf(` ORDER BY pe.apellido, pe.nombre LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list staff")
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "scan staff")
		}
		items = append(items, s)
	}
	return items, total, db.Classify(rows.Err(), "list staff")
}

func (r *repoPG) GetPosition(ctx context.Context, id uuid.UUID) (*Position, error) {
	var p Position
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, descripcion, activo FROM cargos WHERE id = $1`, id,
	).Scan(&p.ID, &p.Description, &p.Active)
	if err != nil {
		return nil, db.Classify(err, "get position")
	}
	return &p, nil
}

func (r *repoPG) UpsertSpecialist(ctx context.Context, sp *Specialist) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO especialistas (funcionario_id, registro_profesional, color_agenda)
		VALUES ($1, $2, $3)
		ON CONFLICT (funcionario_id) DO UPDATE SET
			registro_profesional = EXCLUDED.registro_profesional,
			color_agenda = EXCLUDED.color_agenda`,
		sp.StaffID, sp.License, sp.CalendarColor)
	return db.Classify(err, "upsert specialist")
}

func (r *repoPG) DeleteSpecialist(ctx context.Context, staffID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM especialistas WHERE funcionario_id = $1`, staffID)
	if err != nil {
		return false, db.Classify(err, "delete specialist")
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceSpecialties deletes every association of the specialist and
// inserts the given set.
func (r *repoPG) ReplaceSpecialties(ctx context.Context, staffID uuid.UUID, specialtyIDs []uuid.UUID) error {
	if err := r.DeleteSpecialties(ctx, staffID); err != nil {
		return err
	}
	for _, id := range specialtyIDs {
		_, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO especialista_especialidades (especialista_id, especialidad_id) VALUES ($1, $2)`,
			staffID, id)
		if db.IsForeignKeyViolation(err) {
			return apperr.Wrap(apperr.KindValidation, ErrUnknownSpecialty, "especialidad %s does not exist", id)
		}
		if err != nil {
			return db.Classify(err, "insert specialty")
		}
	}
	return nil
}

func (r *repoPG) DeleteSpecialties(ctx context.Context, staffID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM especialista_especialidades WHERE especialista_id = $1`, staffID)
	return db.Classify(err, "delete specialties")
}
