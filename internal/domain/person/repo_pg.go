package person

import (
	"context"
	"time"

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

// Cols is the personas column list in ScanRow order; other domains join on
// it with the alias "pe".
const Cols = `pe.id, pe.nombre, pe.apellido, pe.cedula, pe.fecha_nacimiento,
	pe.telefono, pe.email, pe.direccion,
	pe.genero_id, pe.estado_civil_id, pe.ciudad_id, pe.nivel_educativo_id, pe.profesion_id,
	pe.created_at, pe.updated_at`

// ScanDest returns the scan destinations for Cols, followed by a finalizer
// that must run after a successful Scan.
func ScanDest(p *Person) ([]interface{}, func()) {
	var birth *time.Time
	dest := []interface{}{
		&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &birth,
		&p.Phone, &p.Email, &p.Address,
		&p.GenderID, &p.MaritalStatusID, &p.CityID, &p.EducationLevelID, &p.ProfessionID,
		&p.CreatedAt, &p.UpdatedAt,
	}
	return dest, func() {
		if birth != nil {
			p.BirthDate = &Date{*birth}
		}
	}
}

func scanRow(row pgx.Row) (*Person, error) {
	var p Person
	dest, done := ScanDest(&p)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	done()
	return &p, nil
}

func birthArg(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (r *repoPG) Create(ctx context.Context, p *Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO personas (id, nombre, apellido, cedula, fecha_nacimiento,
			telefono, email, direccion,
			genero_id, estado_civil_id, ciudad_id, nivel_educativo_id, profesion_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, birthArg(p.BirthDate),
		p.Phone, p.Email, p.Address,
		p.GenderID, p.MaritalStatusID, p.CityID, p.EducationLevelID, p.ProfessionID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "insert person")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+Cols+` FROM personas pe WHERE pe.id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "get person")
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Person) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE personas SET nombre=$2, apellido=$3, cedula=$4, fecha_nacimiento=$5,
			telefono=$6, email=$7, direccion=$8,
			genero_id=$9, estado_civil_id=$10, ciudad_id=$11, nivel_educativo_id=$12, profesion_id=$13,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, birthArg(p.BirthDate),
		p.Phone, p.Email, p.Address,
		p.GenderID, p.MaritalStatusID, p.CityID, p.EducationLevelID, p.ProfessionID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "update person")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "delete person")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "person not found")
	}
	return nil
}

func (r *repoPG) References(ctx context.Context, id uuid.UUID) (Refs, error) {
	var refs Refs
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM pacientes WHERE persona_id = $1),
			(SELECT COUNT(*) FROM funcionarios WHERE persona_id = $1)`, id,
	).Scan(&refs.Patients, &refs.Staff)
	return refs, db.Classify(err, "count person references")
}

func (r *repoPG) ListByNationalID(ctx context.Context, nationalID string) ([]*Person, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+Cols+` FROM personas pe WHERE pe.cedula = $1 ORDER BY pe.created_at`, nationalID)
	if err != nil {
		return nil, db.Classify(err, "list persons by cedula")
	}
	defer rows.Close()
	var items []*Person
	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return nil, db.Classify(err, "scan person")
		}
		items = append(items, p)
	}
	return items, db.Classify(rows.Err(), "list persons by cedula")
}
