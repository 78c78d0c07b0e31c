package pg

import (
	"errors"

	"github.com/jackc/pgconn"
)

// PgErr unwraps err to the driver's *pgconn.PgError, when there is one.
// Execution errors pass through this package unwrapped, so callers that
// need the SQLSTATE can always get at it.
func PgErr(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a unique constraint violation
// surfaced from the driver.
func IsUniqueViolation(err error) bool {
	pgErr, ok := PgErr(err)
	return ok && pgErr.Code == "23505"
}
