package catalog

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var (
	ErrInvalidDescription = apperr.Sentinel(apperr.KindValidation, "descripcion must be 2 to 100 letters, digits, spaces or . , ( ) / -")
	ErrDuplicate          = apperr.Sentinel(apperr.KindConflict, "descripcion already exists")
	ErrInUse              = apperr.Sentinel(apperr.KindConflict, "entry is still referenced")
)

var descriptionPattern = regexp.MustCompile(`^[\p{L}0-9][\p{L}0-9 .,()/-]{1,99}$`)

// Table describes one lookup table. Name doubles as the route segment.
type Table struct {
	Name  string `json:"nombre"`
	Label string `json:"etiqueta"`
}

// Tables lists every catalog served under /api/v1/<name>.
var Tables = []Table{
	{Name: "ciudades", Label: "Ciudades"},
	{Name: "generos", Label: "Géneros"},
	{Name: "estados_civiles", Label: "Estados civiles"},
	{Name: "niveles_educativos", Label: "Niveles educativos"},
	{Name: "profesiones", Label: "Profesiones"},
	{Name: "cargos", Label: "Cargos"},
	{Name: "especialidades", Label: "Especialidades"},
	{Name: "diagnosticos", Label: "Diagnósticos"},
	{Name: "procedimientos", Label: "Procedimientos"},
	{Name: "tratamientos", Label: "Tratamientos"},
	{Name: "tipos_consulta", Label: "Tipos de consulta"},
}

// Lookup returns the table registered under name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

type Entry struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"descripcion"`
	Active      bool      `json:"activo"`
}

// Input is the body of create and update requests.
type Input struct {
	Description string `json:"descripcion"`
	Active      *bool  `json:"activo,omitempty"`
}

// NormalizeDescription composes the text to NFC, trims and collapses inner
// whitespace, then checks the allow-list. Decomposed and precomposed accents
// therefore store the same description.
func NormalizeDescription(s string) (string, error) {
	d := strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	if !descriptionPattern.MatchString(d) {
		return "", ErrInvalidDescription
	}
	return d, nil
}
