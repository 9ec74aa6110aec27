package httpkit

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE classes the callers branch on. Matching the code
// keeps the checks driver-version agnostic.
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// Inserts keyed by event ID hit this on replayed events.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// IsUndefinedTable reports whether err means the relation does not exist.
// The deep health check treats it as a missing schema.
func IsUndefinedTable(err error) bool {
	return pgCode(err) == pgUndefinedTable
}
