package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

var (
	// ErrUnexpectedRows is returned when a single-row statement affects
	// more than one row.
	ErrUnexpectedRows = errors.New("statement affected more than one row")
	// ErrConstraint wraps a CHECK constraint violation.
	ErrConstraint = errors.New("value violates constraint")
)

// Violation reports the SQLSTATE and constraint name when err is a
// PostgreSQL integrity error.
func Violation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 || pgErr.Code[:2] != "23" {
		return "", "", false
	}
	return pgErr.Code, pgErr.ConstraintName, true
}

// MapError translates driver errors to domain errors. sql.ErrNoRows
// becomes notFoundErr, a unique violation becomes duplicateErr and a
// check violation becomes ErrConstraint. The constraint name is appended
// when PostgreSQL reports one. Anything else is returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	code, constraint, ok := Violation(err)
	if !ok {
		return err
	}

	var mapped error
	switch code {
	case codeUniqueViolation:
		mapped = duplicateErr
	case codeCheckViolation:
		mapped = ErrConstraint
	default:
		return err
	}
	if constraint == "" {
		return mapped
	}
	return fmt.Errorf("%w: %s", mapped, constraint)
}
