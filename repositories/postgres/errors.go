package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/rcfms-admin/repositories"
)

const pgErrUniqueViolation = "23505"

// mapWriteError turns a unique violation into a *repositories.DuplicateError
// and wraps everything else with op.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgErrUniqueViolation {
		return &repositories.DuplicateError{Constraint: pqErr.Constraint, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
