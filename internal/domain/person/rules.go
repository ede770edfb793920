package person

import (
	"time"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const (
	// AdultAge is the age in whole years at which a person stops being a minor.
	AdultAge = 18
	// MaxAge bounds plausible birth dates.
	MaxAge = 120
)

var ErrInvalidDate = apperr.Sentinel(apperr.KindValidation, "invalid birth date")

// AgeOn returns the age in whole years on the calendar day of now. The
// birthday counts only once its month and day have been reached.
func AgeOn(birth Date, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// IsMinor reports whether a person born on birth is under AdultAge on now.
// Someone turning 18 today is not a minor.
func IsMinor(birth Date, now time.Time) bool {
	return AgeOn(birth, now) < AdultAge
}

// ValidateBirthDate fails with ErrInvalidDate when birth is missing, in the
// future, or implies an age above MaxAge.
func ValidateBirthDate(birth *Date, now time.Time) error {
	if birth == nil || birth.IsZero() {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidDate, "fecha_nacimiento is required")
	}
	today := NewDate(now.Year(), now.Month(), now.Day())
	if birth.After(today.Time) {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidDate, "fecha_nacimiento is in the future")
	}
	if AgeOn(*birth, now) > MaxAge {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidDate, "fecha_nacimiento implies an age above %d", MaxAge)
	}
	return nil
}
