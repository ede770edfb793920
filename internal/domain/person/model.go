package person

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, rendered as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, apperr.Wrap(apperr.KindValidation, ErrInvalidDate, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Person maps to the personas table. One person may hold several roles
// (patient, staff member).
type Person struct {
	ID               uuid.UUID  `json:"id"`
	FirstName        string     `json:"nombre"`
	LastName         string     `json:"apellido"`
	NationalID       string     `json:"cedula"`
	BirthDate        *Date      `json:"fecha_nacimiento,omitempty"`
	Phone            *string    `json:"telefono,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Address          *string    `json:"direccion,omitempty"`
	GenderID         *uuid.UUID `json:"genero_id,omitempty"`
	MaritalStatusID  *uuid.UUID `json:"estado_civil_id,omitempty"`
	CityID           *uuid.UUID `json:"ciudad_id,omitempty"`
	EducationLevelID *uuid.UUID `json:"nivel_educativo_id,omitempty"`
	ProfessionID     *uuid.UUID `json:"profesion_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Normalize trims free-text fields and turns blank optional strings into nil.
func (p *Person) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.NationalID = strings.TrimSpace(p.NationalID)
	p.Phone = blankToNil(p.Phone)
	p.Email = blankToNil(p.Email)
	p.Address = blankToNil(p.Address)
}

// Validate checks the fields every role requires. Birth date rules are
// role specific and checked by the workflows.
func (p *Person) Validate() error {
	if p.FirstName == "" {
		return apperr.New(apperr.KindValidation, "nombre is required")
	}
	if p.LastName == "" {
		return apperr.New(apperr.KindValidation, "apellido is required")
	}
	if p.NationalID == "" {
		return apperr.New(apperr.KindValidation, "cedula is required")
	}
	if len(p.FirstName) > 100 || len(p.LastName) > 100 {
		return apperr.New(apperr.KindValidation, "nombre and apellido must be at most 100 characters")
	}
	if len(p.NationalID) > 30 {
		return apperr.New(apperr.KindValidation, "cedula must be at most 30 characters")
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return apperr.New(apperr.KindValidation, "invalid email: %s", *p.Email)
		}
	}
	return nil
}

// FullName returns "nombre apellido".
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
