package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBaseCode(t *testing.T) {
	tests := []struct {
		first, last, id string
		want            string
	}{
		{"Juan", "Perez", "12345678", "JP12345678"},
		{"juan", "perez", "1.234.567-8", "JP12345678"},
		{"", "Perez", "123", "XP123"},
		{"Juan", "  ", "123", "JX123"},
		{"", "", "", "XX"},
		{"ñandu", "Ávalos", "A-77", "ÑÁ77"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := BaseCode(tt.first, tt.last, tt.id); got != tt.want {
				t.Errorf("BaseCode(%q, %q, %q) = %q, want %q", tt.first, tt.last, tt.id, got, tt.want)
			}
		})
	}
}

func TestNextCode(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"free", nil, "JP1"},
		{"base taken", []string{"JP1"}, "JP1-2"},
		{"sequence", []string{"JP1", "JP1-2", "JP1-3"}, "JP1-4"},
		{"gap is not reused", []string{"JP1", "JP1-3"}, "JP1-4"},
		{"base deleted", []string{"JP1-2"}, "JP1-3"},
		{"unordered", []string{"JP1-10", "JP1", "JP1-9"}, "JP1-11"},
		{"ignores other bases", []string{"JP12", "JP1-X", "JP1-1"}, "JP1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextCode("JP1", tt.existing); got != tt.want {
				t.Errorf("NextCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackCode(t *testing.T) {
	now := time.Date(2024, time.January, 2, 3, 4, 5, 6_000_000, time.UTC)
	if got := FallbackCode(now); got != "HC20240102030405006" {
		t.Errorf("FallbackCode() = %q", got)
	}
}

func TestValidateCode(t *testing.T) {
	for _, ok := range []string{"JP12345678", "JP12345678-2", "HC20240102030405006", "ÑA1"} {
		if err := ValidateCode(ok); err != nil {
			t.Errorf("ValidateCode(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "J", "-JP1", "jp1", "JP 1", "JP1;DROP"} {
		if err := ValidateCode(bad); err == nil {
			t.Errorf("ValidateCode(%q) expected error", bad)
		}
	}
}

type lookupFunc func(ctx context.Context, base string) ([]string, error)

func (f lookupFunc) CodesWithBase(ctx context.Context, base string) ([]string, error) {
	return f(ctx, base)
}

func TestCodeGenerator(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC) }

	gen := NewCodeGenerator(lookupFunc(func(_ context.Context, base string) ([]string, error) {
		if base != "JP12345678" {
			t.Errorf("unexpected base %q", base)
		}
		return []string{"JP12345678"}, nil
	}), now, zerolog.Nop())
	if got := gen.Generate(context.Background(), "Juan", "Perez", "12345678"); got != "JP12345678-2" {
		t.Errorf("expected JP12345678-2, got %s", got)
	}

	failing := NewCodeGenerator(lookupFunc(func(context.Context, string) ([]string, error) {
		return nil, errors.New("connection refused")
	}), now, zerolog.Nop())
	if got := failing.Generate(context.Background(), "Juan", "Perez", "12345678"); got != "HC20240615103000000" {
		t.Errorf("expected timestamp fallback, got %s", got)
	}
}
