package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
)

var (
	ErrMissingGuardian = apperr.Sentinel(apperr.KindValidation, "a minor patient requires the mother's or father's name")
	ErrCodeTaken       = apperr.Sentinel(apperr.KindConflict, "medical record code already in use")
	ErrAlreadyPatient  = apperr.Sentinel(apperr.KindConflict, "person is already registered as a patient")
	ErrHasAppointments = apperr.Sentinel(apperr.KindConflict, "patient has appointments")
)

// Patient maps to the pacientes table joined with its person. Minor is
// derived from the person's birth date on every read.
type Patient struct {
	ID        uuid.UUID      `json:"id"`
	PersonID  uuid.UUID      `json:"persona_id"`
	Code      string         `json:"codigo"`
	Notes     *string        `json:"observaciones,omitempty"`
	Active    bool           `json:"activo"`
	Minor     bool           `json:"menor"`
	Person    *person.Person `json:"persona"`
	Guardian  *Guardian      `json:"datos_menor,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Guardian maps to pacientes_menores: guardian and school data of a minor.
type Guardian struct {
	PatientID   uuid.UUID `json:"paciente_id"`
	MotherName  *string   `json:"nombre_madre,omitempty"`
	MotherPhone *string   `json:"telefono_madre,omitempty"`
	FatherName  *string   `json:"nombre_padre,omitempty"`
	FatherPhone *string   `json:"telefono_padre,omitempty"`
	School      *string   `json:"escuela,omitempty"`
	Grade       *string   `json:"grado,omitempty"`
}

// HasName reports whether at least one guardian name is present.
func (g *Guardian) HasName() bool {
	return g != nil && (nonBlank(g.MotherName) || nonBlank(g.FatherName))
}

func (g *Guardian) normalize() {
	for _, f := range []**string{&g.MotherName, &g.MotherPhone, &g.FatherName, &g.FatherPhone, &g.School, &g.Grade} {
		*f = blankToNil(*f)
	}
}

// Registration is the input of the create and update workflows. When
// PersonID is set on create, the existing person is attached as-is and
// Person is ignored.
type Registration struct {
	PersonID *uuid.UUID    `json:"persona_id,omitempty"`
	Person   person.Person `json:"persona"`
	Code     string        `json:"codigo,omitempty"`
	Notes    *string       `json:"observaciones,omitempty"`
	Active   *bool         `json:"activo,omitempty"`
	Guardian *Guardian     `json:"datos_menor,omitempty"`
}

// ValidateMinorGuardianData fails with ErrMissingGuardian when the person
// born on birth is a minor on now and no guardian name is supplied.
func ValidateMinorGuardianData(birth person.Date, g *Guardian, now time.Time) error {
	if person.IsMinor(birth, now) && !g.HasName() {
		return ErrMissingGuardian
	}
	return nil
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func blankToNil(s *string) *string {
	if !nonBlank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
