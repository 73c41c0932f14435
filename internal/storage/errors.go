package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyAccepted is returned when an accept attempt hits the
	// single-acceptance guard: either the target solution is already
	// accepted or another solution for the same blocker is.
	ErrAlreadyAccepted = errors.New("storage: blocker already has an accepted solution")

	// ErrTerminalStatus is returned on an attempt to transition a blocker
	// out of RESOLVED or CLOSED.
	ErrTerminalStatus = errors.New("storage: blocker status is terminal")

	// ErrDuplicateEmail is returned when registering an account with an
	// email that already exists.
	ErrDuplicateEmail = errors.New("storage: email already registered")
)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
