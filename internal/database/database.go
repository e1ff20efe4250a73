package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate key")
	// ErrConstraint is returned when a write violates a check constraint.
	ErrConstraint = errors.New("constraint violation")
)

const (
	uniqueViolation pq.ErrorCode = "23505"
	checkViolation  pq.ErrorCode = "23514"
)

// translateError maps postgres constraint errors onto the package's
// sentinel errors so callers do not depend on the driver.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return errors.Join(ErrDuplicate, err)
		case checkViolation:
			return errors.Join(ErrConstraint, err)
		}
	}

	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern for ILIKE.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
