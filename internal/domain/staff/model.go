package staff

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
)

var (
	ErrMissingLicense     = apperr.Sentinel(apperr.KindValidation, "registro_profesional is required for this position")
	ErrMissingSpecialty   = apperr.Sentinel(apperr.KindValidation, "at least one especialidad is required for this position")
	ErrInvalidColor       = apperr.Sentinel(apperr.KindValidation, "color_agenda must look like #RRGGBB")
	ErrUnknownPosition    = apperr.Sentinel(apperr.KindValidation, "cargo_id does not exist")
	ErrUnknownSpecialty   = apperr.Sentinel(apperr.KindValidation, "unknown especialidad")
	ErrHasAppointments    = apperr.Sentinel(apperr.KindConflict, "staff member has appointments")
	ErrNotSpecialist      = apperr.Sentinel(apperr.KindNotFound, "staff member has no specialist data")
	ErrPositionIsInactive = apperr.Sentinel(apperr.KindValidation, "cargo is inactive")
)

// DefaultCalendarColor is assigned when a specialist is saved without one.
const DefaultCalendarColor = "#3788D8"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Staff maps to funcionarios joined with its person and position.
type Staff struct {
	ID         uuid.UUID      `json:"id"`
	PersonID   uuid.UUID      `json:"persona_id"`
	PositionID uuid.UUID      `json:"cargo_id"`
	Position   string         `json:"cargo"`
	Active     bool           `json:"activo"`
	HireDate   *person.Date   `json:"fecha_ingreso,omitempty"`
	Person     *person.Person `json:"persona"`
	Specialist *Specialist    `json:"especialista,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Specialist maps to especialistas plus its especialista_especialidades rows.
type Specialist struct {
	StaffID       uuid.UUID   `json:"funcionario_id"`
	License       string      `json:"registro_profesional"`
	CalendarColor string      `json:"color_agenda"`
	SpecialtyIDs  []uuid.UUID `json:"especialidades"`
}

// Registration is the input of the create and update workflows.
type Registration struct {
	PersonID   *uuid.UUID    `json:"persona_id,omitempty"`
	Person     person.Person `json:"persona"`
	PositionID uuid.UUID     `json:"cargo_id"`
	Active     *bool         `json:"activo,omitempty"`
	HireDate   *person.Date  `json:"fecha_ingreso,omitempty"`
	Specialist *Specialist   `json:"especialista,omitempty"`
}

// ValidateSpecialist checks specialist data before anything is written and
// returns a normalized copy with deduplicated specialties.
func ValidateSpecialist(sp *Specialist) (*Specialist, error) {
	if sp == nil || strings.TrimSpace(sp.License) == "" {
		return nil, ErrMissingLicense
	}
	out := Specialist{
		License:       strings.TrimSpace(sp.License),
		CalendarColor: strings.ToUpper(strings.TrimSpace(sp.CalendarColor)),
	}
	if len(out.License) > 50 {
		return nil, apperr.New(apperr.KindValidation, "registro_profesional must be at most 50 characters")
	}
	if out.CalendarColor == "" {
		out.CalendarColor = DefaultCalendarColor
	}
	if !colorPattern.MatchString(out.CalendarColor) {
		return nil, ErrInvalidColor
	}
	out.SpecialtyIDs = dedupe(sp.SpecialtyIDs)
	if len(out.SpecialtyIDs) == 0 {
		return nil, ErrMissingSpecialty
	}
	return &out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// PositionSet holds the position descriptions that require specialist data.
// Matching ignores case, accents and surrounding space.
type PositionSet map[string]bool

func NewPositionSet(descriptions []string) PositionSet {
	set := make(PositionSet, len(descriptions))
	for _, d := range descriptions {
		if k := foldDescription(d); k != "" {
			set[k] = true
		}
	}
	return set
}

func (s PositionSet) RequiresSpecialist(description string) bool {
	return s[foldDescription(description)]
}

func foldDescription(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
