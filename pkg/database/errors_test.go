package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		unique        bool
		foreignKey    bool
		serialization bool
		lockTimeout   bool
	}{
		{
			name:   "unique violation",
			err:    &pgconn.PgError{Code: "23505", ConstraintName: "bids_one_accepted_per_item"},
			unique: true,
		},
		{
			name:       "wrapped foreign key violation",
			err:        fmt.Errorf("failed to insert item: %w", &pgconn.PgError{Code: "23503"}),
			foreignKey: true,
		},
		{
			name:          "serialization failure",
			err:           &pgconn.PgError{Code: "40001"},
			serialization: true,
		},
		{
			name:          "deadlock",
			err:           &pgconn.PgError{Code: "40P01"},
			serialization: true,
		},
		{
			name:        "lock timeout",
			err:         fmt.Errorf("lock item: %w", &pgconn.PgError{Code: "55P03"}),
			lockTimeout: true,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyViolation(tt.err))
			assert.Equal(t, tt.serialization, IsSerializationConflict(tt.err))
			assert.Equal(t, tt.lockTimeout, IsLockTimeout(tt.err))
		})
	}
}

func TestConstraintName(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	assert.Equal(t, "users_email_key", ConstraintName(err))
	assert.Empty(t, ConstraintName(errors.New("other")))
}
