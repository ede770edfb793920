package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const patientCols = `pa.id, pa.persona_id, pa.codigo, pa.observaciones, pa.activo, pa.created_at, pa.updated_at, ` + person.Cols

const patientFrom = ` FROM pacientes pa JOIN personas pe ON pe.id = pa.persona_id`

func scanRow(row pgx.Row) (*Patient, error) {
	p := Patient{Person: &person.Person{}}
	personDest, done := person.ScanDest(p.Person)
	dest := append([]interface{}{&p.ID, &p.PersonID, &p.Code, &p.Notes, &p.Active, &p.CreatedAt, &p.UpdatedAt}, personDest...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	done()
	return &p, nil
}

func classifyWrite(err error, op, code string) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, CodeConstraint):
		return apperr.Wrap(apperr.KindConflict, ErrCodeTaken, "codigo %s already in use", code)
	case db.IsUniqueViolation(err, "pacientes_persona_id_key"):
		return apperr.Wrap(apperr.KindConflict, ErrAlreadyPatient, "person is already registered as a patient")
	}
	return db.Classify(err, op)
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pacientes (id, persona_id, codigo, observaciones, activo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.PersonID, p.Code, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return classifyWrite(err, "insert patient", p.Code)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE pa.id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "get patient")
	}
	return p, nil
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	p, err := scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE pa.codigo = $1`, code))
	if err != nil {
		return nil, db.Classify(err, "get patient by code")
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE pacientes SET codigo=$2, observaciones=$3, activo=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return classifyWrite(err, "update patient", p.Code)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM pacientes WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindConflict, ErrHasAppointments, "patient has appointments and cannot be deleted")
	}
	if err != nil {
		return db.Classify(err, "delete patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	var where []string
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+db.EscapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(pe.nombre ILIKE $%[1]d OR pe.apellido ILIKE $%[1]d OR pe.cedula ILIKE $%[1]d OR pa.codigo ILIKE $%[1]d
			OR (pe.nombre || ' ' || pe.apellido) ILIKE $%[1]d)`, n))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, fmt.Sprintf("pa.activo = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+patientFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count patients")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+patientFrom+cond+
			fmt.Sprintf(` ORDER BY pe.apellido, pe.nombre, pa.codigo LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list patients")
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "scan patient")
		}
		items = append(items, p)
	}
	return items, total, db.Classify(rows.Err(), "list patients")
}

// CodesWithBase reads the issued-code ledger rather than pacientes, so codes
// of deleted patients still count as taken for suffix generation.
func (r *repoPG) CodesWithBase(ctx context.Context, base string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT codigo FROM pacientes_codigos WHERE codigo = $1 OR codigo LIKE $2`, base, db.EscapeLike(base)+"-%")
	if err != nil {
		return nil, db.Classify(err, "list codes")
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, db.Classify(err, "scan code")
		}
		codes = append(codes, c)
	}
	return codes, db.Classify(rows.Err(), "list codes")
}

func (r *repoPG) CodeInUse(ctx context.Context, code string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pacientes WHERE codigo = $1 AND id <> $2)`, code, exclude,
	).Scan(&exists)
	return exists, db.Classify(err, "check code")
}

func (r *repoPG) GetGuardian(ctx context.Context, patientID uuid.UUID) (*Guardian, error) {
	var g Guardian
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT paciente_id, nombre_madre, telefono_madre, nombre_padre, telefono_padre, escuela, grado
		FROM pacientes_menores WHERE paciente_id = $1`, patientID,
	).Scan(&g.PatientID, &g.MotherName, &g.MotherPhone, &g.FatherName, &g.FatherPhone, &g.School, &g.Grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "patient has no guardian data")
	}
	if err != nil {
		return nil, db.Classify(err, "get guardian")
	}
	return &g, nil
}

func (r *repoPG) UpsertGuardian(ctx context.Context, g *Guardian) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pacientes_menores (paciente_id, nombre_madre, telefono_madre, nombre_padre, telefono_padre, escuela, grado)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (paciente_id) DO UPDATE SET
			nombre_madre = EXCLUDED.nombre_madre, telefono_madre = EXCLUDED.telefono_madre,
			nombre_padre = EXCLUDED.nombre_padre, telefono_padre = EXCLUDED.telefono_padre,
			escuela = EXCLUDED.escuela, grado = EXCLUDED.grado`,
		g.PatientID, g.MotherName, g.MotherPhone, g.FatherName, g.FatherPhone, g.School, g.Grade)
	return db.Classify(err, "upsert guardian")
}

func (r *repoPG) DeleteGuardian(ctx context.Context, patientID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM pacientes_menores WHERE paciente_id = $1`, patientID)
	if err != nil {
		return false, db.Classify(err, "delete guardian")
	}
	return tag.RowsAffected() > 0, nil
}
