package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// SQLSTATEs a retry can succeed past: serialization_failure, deadlock_detected,
// lock_not_available.
var pgTransient = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
}

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the violation must reference it; sqlite reports
// the offending table.column instead of the index name, so callers may pass either.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
			continue
		}
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

// IsTransient reports whether err is a lock or serialization failure that a
// retry of the whole transaction may get past. sqlite reports SQLITE_BUSY as
// "database is locked".
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgTransient[pgErr.Code]
		return ok
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := pgTransient[string(pqErr.Code)]
		return ok
	}

	return strings.Contains(err.Error(), "database is locked")
}
