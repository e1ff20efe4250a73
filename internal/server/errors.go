package server

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/npezzotti/go-chatrelay/internal/database"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	// ErrTransient covers store timeouts and connection failures.
	ErrTransient = errors.New("store unavailable")
)

// StoreError classifies an error returned by the repository.
func StoreError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, database.ErrConstraint):
		return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
}
