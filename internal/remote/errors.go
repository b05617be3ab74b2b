package remote

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOwnerMismatch is returned when an upsert targets a row held by another
// owner. Retrying can never succeed.
var ErrOwnerMismatch = errors.New("row belongs to another owner")

// Permanent classifies a remote failure as non-retryable. Integrity
// violations (SQLSTATE class 23) and data exceptions (class 22) will fail
// identically on every replay, so the drain parks such changes as dead
// instead of retrying forever. Everything else (network errors, timeouts,
// server restarts) counts as transient.
func Permanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOwnerMismatch) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := ""
		if len(pgErr.Code) >= 2 {
			class = pgErr.Code[:2]
		}
		return class == "23" || class == "22"
	}
	return false
}
