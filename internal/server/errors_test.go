package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "no rows", err: sql.ErrNoRows, expected: ErrNotFound},
		{name: "duplicate", err: errors.Join(database.ErrDuplicate, errors.New("pq")), expected: ErrConflict},
		{name: "constraint", err: errors.Join(database.ErrConstraint, errors.New("pq")), expected: ErrValidation},
		{name: "timeout", err: context.DeadlineExceeded, expected: ErrTransient},
		{name: "other", err: errors.New("connection reset"), expected: ErrTransient},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := StoreError("op", tc.err)
			assert.ErrorIs(t, err, tc.expected)
			assert.Contains(t, err.Error(), "op: ")
		})
	}
}
