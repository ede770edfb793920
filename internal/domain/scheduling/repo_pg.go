package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const citaCols = `id, paciente_id, especialista_id, especialidad_id, inicio, fin, estado, motivo, created_at, updated_at`

// Statuses that free their slot are excluded from every overlap check.
const overlapClause = `inicio < $3 AND fin > $2 AND id <> $4 AND estado NOT IN ('cancelada', 'ausente')`

func scanCita(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.SpecialistID, &a.SpecialtyID,
		&a.Start, &a.End, &a.Status, &a.Reason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO citas (id, paciente_id, especialista_id, especialidad_id, inicio, fin, estado, motivo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.SpecialistID, a.SpecialtyID, a.Start, a.End, a.Status, a.Reason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err, "insert cita")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanCita(r.conn(ctx).QueryRow(ctx, `SELECT `+citaCols+` FROM citas WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "get cita")
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE citas SET paciente_id=$2, especialista_id=$3, especialidad_id=$4,
			inicio=$5, fin=$6, estado=$7, motivo=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.SpecialistID, a.SpecialtyID, a.Start, a.End, a.Status, a.Reason,
	).Scan(&a.UpdatedAt)
	return db.Classify(err, "update cita")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM citas WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "delete cita")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "delete cita: record not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("paciente_id = $%d", *f.PatientID)
	}
	if f.SpecialistID != nil {
		add("especialista_id = $%d", *f.SpecialistID)
	}
	if f.From != nil {
		add("fin > $%d", *f.From)
	}
	if f.To != nil {
		add("inicio < $%d", *f.To)
	}
	if f.Status != "" {
		add("estado = $%d", f.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM citas`+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count citas")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM citas%s ORDER BY inicio, id LIMIT $%d OFFSET $%d`,
		citaCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list citas")
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanCita(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "scan cita")
		}
		out = append(out, a)
	}
	return out, total, db.Classify(rows.Err(), "list citas")
}

// Advisory lock namespaces, so a specialist and a patient id never share a key.
const (
	lockSpecialist int32 = 1
	lockPatient    int32 = 2
)

func (r *repoPG) LockParticipants(ctx context.Context, specialistID, patientID uuid.UUID) error {
	if db.TxFromContext(ctx) == nil {
		return apperr.New(apperr.KindStorage, "lock participants: no transaction in context")
	}
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2::text))`, lockSpecialist, specialistID); err != nil {
		return db.Classify(err, "lock specialist")
	}
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2::text))`, lockPatient, patientID)
	return db.Classify(err, "lock patient")
}

func (r *repoPG) SpecialistOverlaps(ctx context.Context, specialistID uuid.UUID, w Window, exclude uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM citas WHERE especialista_id = $1 AND `+overlapClause,
		specialistID, w.Start, w.End, exclude).Scan(&n)
	return n, db.Classify(err, "specialist overlaps")
}

func (r *repoPG) PatientOverlaps(ctx context.Context, patientID uuid.UUID, w Window, exclude uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM citas WHERE paciente_id = $1 AND `+overlapClause,
		patientID, w.Start, w.End, exclude).Scan(&n)
	return n, db.Classify(err, "patient overlaps")
}

func (r *repoPG) Patient(ctx context.Context, id uuid.UUID) (Participant, error) {
	var p Participant
	err := r.conn(ctx).QueryRow(ctx, `SELECT activo FROM pacientes WHERE id = $1`, id).Scan(&p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Participant{}, nil
	}
	if err != nil {
		return Participant{}, db.Classify(err, "get paciente")
	}
	p.Exists = true
	return p, nil
}

func (r *repoPG) Specialist(ctx context.Context, staffID uuid.UUID) (Participant, error) {
	var p Participant
	var ids []string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT f.activo,
			ARRAY(SELECT ee.especialidad_id::text FROM especialista_especialidades ee
				WHERE ee.especialista_id = es.funcionario_id)
		FROM especialistas es
		JOIN funcionarios f ON f.id = es.funcionario_id
		WHERE es.funcionario_id = $1`, staffID).Scan(&p.Active, &ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return Participant{}, nil
	}
	if err != nil {
		return Participant{}, db.Classify(err, "get especialista")
	}
	p.Exists = true
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return Participant{}, apperr.Wrap(apperr.KindStorage, err, "parse especialidad id")
		}
		p.Specialties = append(p.Specialties, id)
	}
	return p, nil
}
