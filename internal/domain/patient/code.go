package patient

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// CodeConstraint is the unique constraint guarding medical record codes.
const CodeConstraint = "pacientes_codigo_key"

var codePattern = regexp.MustCompile(`^[\p{Lu}0-9][\p{Lu}0-9-]{1,39}$`)

// BaseCode builds the candidate medical record code: the uppercased first
// letter of first and last name followed by the digits of the national ID.
// An empty name part contributes "X".
func BaseCode(firstName, lastName, nationalID string) string {
	var b strings.Builder
	b.WriteRune(initial(firstName))
	b.WriteRune(initial(lastName))
	for _, r := range nationalID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func initial(s string) rune {
	s = strings.TrimSpace(s)
	if s == "" {
		return 'X'
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.ToUpper(r)
}

// NextCode returns the first free code for base given the codes already
// issued that equal base or extend it with "-N". The suffix is one above
// the largest stored suffix, so suffixes only grow.
func NextCode(base string, existing []string) string {
	taken := false
	max := 1
	prefix := base + "-"
	for _, c := range existing {
		if c == base {
			taken = true
			continue
		}
		if !strings.HasPrefix(c, prefix) {
			continue
		}
		n, err := strconv.Atoi(c[len(prefix):])
		if err != nil || n < 2 {
			continue
		}
		taken = true
		if n > max {
			max = n
		}
	}
	if !taken {
		return base
	}
	return fmt.Sprintf("%s-%d", base, max+1)
}

// FallbackCode is used when storage cannot be consulted.
func FallbackCode(now time.Time) string {
	return fmt.Sprintf("HC%s%03d", now.Format("20060102150405"), now.Nanosecond()/int(time.Millisecond))
}

// ValidateCode checks a client supplied code.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return apperr.New(apperr.KindValidation, "invalid codigo %q: use 2 to 40 uppercase letters, digits or '-'", code)
	}
	return nil
}

// CodeLookup lists stored codes sharing a base.
type CodeLookup interface {
	CodesWithBase(ctx context.Context, base string) ([]string, error)
}

// CodeGenerator is a best-effort pre-check; the unique constraint on
// pacientes.codigo remains authoritative.
type CodeGenerator struct {
	lookup CodeLookup
	now    func() time.Time
	logger zerolog.Logger
}

func NewCodeGenerator(lookup CodeLookup, now func() time.Time, logger zerolog.Logger) *CodeGenerator {
	if now == nil {
		now = time.Now
	}
	return &CodeGenerator{lookup: lookup, now: now, logger: logger}
}

func (g *CodeGenerator) Generate(ctx context.Context, firstName, lastName, nationalID string) string {
	base := BaseCode(firstName, lastName, nationalID)
	existing, err := g.lookup.CodesWithBase(ctx, base)
	if err != nil {
		code := FallbackCode(g.now())
		g.logger.Warn().Err(err).Str("base", base).Str("codigo", code).Msg("code lookup failed, using timestamp code")
		return code
	}
	return NextCode(base, existing)
}
