package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
	codeInvalidDatetime     = "22007"
	codeDatetimeOverflow    = "22008"
)

// Classify translates a driver error into an apperr.Error once, at the
// repository boundary. op names the statement for logs ("insert patient").
// Errors that are already classified pass through unchanged.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s: record not found", op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, "%s: duplicate value", op)
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindConflict, err, "%s: related record missing or still in use", op)
		case codeCheckViolation, codeNotNullViolation, codeInvalidText, codeInvalidDatetime, codeDatetimeOverflow:
			return apperr.Wrap(apperr.KindValidation, err, "%s: invalid value", op)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindStorage, err, "%s: cancelled", op)
	}

	return apperr.Wrap(apperr.KindStorage, err, "%s", op)
}

// IsUniqueViolation reports whether err is a unique violation, optionally of
// a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards in user input.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
