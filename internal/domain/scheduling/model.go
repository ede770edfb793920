package scheduling

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Appointment statuses.
const (
	StatusScheduled = "agendada"
	StatusConfirmed = "confirmada"
	StatusAttended  = "atendida"
	StatusCancelled = "cancelada"
	StatusNoShow    = "ausente"
)

// MaxDuration bounds a single appointment.
const MaxDuration = 8 * time.Hour

var (
	ErrInvalidWindow    = apperr.Sentinel(apperr.KindValidation, "fin must be after inicio")
	ErrTooLong          = apperr.Sentinel(apperr.KindValidation, "appointment may last at most 8 hours")
	ErrInvalidStatus    = apperr.Sentinel(apperr.KindValidation, "invalid estado")
	ErrTransition       = apperr.Sentinel(apperr.KindConflict, "estado change not allowed")
	ErrUnknownPatient   = apperr.Sentinel(apperr.KindValidation, "paciente_id does not exist")
	ErrInactivePatient  = apperr.Sentinel(apperr.KindValidation, "patient is inactive")
	ErrNotSpecialist    = apperr.Sentinel(apperr.KindValidation, "especialista_id is not a specialist")
	ErrSpecialtyOffered = apperr.Sentinel(apperr.KindValidation, "specialist does not offer especialidad_id")
	ErrSlotTaken        = apperr.Sentinel(apperr.KindConflict, "specialist already has an appointment in that slot")
	ErrPatientBusy      = apperr.Sentinel(apperr.KindConflict, "patient already has an appointment in that slot")
)

// Appointment maps to citas.
type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"paciente_id"`
	SpecialistID uuid.UUID  `json:"especialista_id"`
	SpecialtyID  *uuid.UUID `json:"especialidad_id,omitempty"`
	Start        time.Time  `json:"inicio"`
	End          time.Time  `json:"fin"`
	Status       string     `json:"estado"`
	Reason       *string    `json:"motivo,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Input is the body of booking and reschedule requests.
type Input struct {
	PatientID    uuid.UUID  `json:"paciente_id"`
	SpecialistID uuid.UUID  `json:"especialista_id"`
	SpecialtyID  *uuid.UUID `json:"especialidad_id,omitempty"`
	Start        time.Time  `json:"inicio"`
	End          time.Time  `json:"fin"`
	Status       string     `json:"estado,omitempty"`
	Reason       *string    `json:"motivo,omitempty"`
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"inicio"`
	End   time.Time `json:"fin"`
}

// Overlaps reports whether the two ranges share any instant. Touching
// ranges do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// ValidateWindow checks ordering and length of an appointment.
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.New(apperr.KindValidation, "inicio and fin are required")
	}
	if !end.After(start) {
		return ErrInvalidWindow
	}
	if end.Sub(start) > MaxDuration {
		return ErrTooLong
	}
	return nil
}

var transitions = map[string][]string{
	StatusScheduled: {StatusConfirmed, StatusAttended, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusScheduled, StatusAttended, StatusCancelled, StatusNoShow},
	StatusNoShow:    {StatusScheduled},
	StatusAttended:  nil,
	StatusCancelled: nil,
}

// ValidStatus reports whether s is a known estado.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no change may follow s.
func Terminal(s string) bool {
	return s == StatusAttended || s == StatusCancelled
}

// CanTransition reports whether an appointment may move from one estado to
// another. Staying put is always allowed for non-terminal states.
func CanTransition(from, to string) bool {
	if from == to {
		return !Terminal(from)
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Blocking reports whether an appointment in estado s occupies its slot.
func Blocking(s string) bool {
	return s != StatusCancelled && s != StatusNoShow
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FreeSlots splits [from, to) into consecutive slots of length step and
// returns the ones no blocking appointment overlaps.
func FreeSlots(busy []*Appointment, from, to time.Time, step time.Duration) []Window {
	if step <= 0 || !to.After(from) {
		return nil
	}
	taken := make([]Window, 0, len(busy))
	for _, a := range busy {
		if Blocking(a.Status) {
			taken = append(taken, Window{a.Start, a.End})
		}
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i].Start.Before(taken[j].Start) })

	var out []Window
	for start := from; !start.Add(step).After(to); start = start.Add(step) {
		slot := Window{start, start.Add(step)}
		free := true
		for _, t := range taken {
			if t.Start.After(slot.End) || t.Start.Equal(slot.End) {
				break
			}
			if slot.Overlaps(t) {
				free = false
				break
			}
		}
		if free {
			out = append(out, slot)
		}
	}
	return out
}
