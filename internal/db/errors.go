package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"tenantdesk/backend/internal/platform/apperr"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ConstraintName returns the violated constraint name, or "" when err is not a Postgres error.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// UniqueError converts a unique violation into the error registered for its constraint. Unknown
// constraints become a generic non-field validation error. Other errors are returned unchanged.
func UniqueError(err error, byConstraint map[string]error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	if mapped, ok := byConstraint[ConstraintName(err)]; ok {
		return mapped
	}
	return apperr.Invalid(apperr.NonFieldErrors, "A record with these values already exists.")
}
