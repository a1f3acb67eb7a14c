package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"store unavailable", ErrStoreUnavailable, true},
		{"plain error", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestConstraintClassification(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "payments_live_related_key"})
	assert.True(t, isUniqueViolation(err, "payments_live_related_key"))
	assert.True(t, isUniqueViolation(err, ""))
	assert.False(t, isUniqueViolation(err, "payments_transaction_id_key"))
	assert.False(t, isForeignKeyViolation(err, ""))
	assert.True(t, isCheckViolation(&pgconn.PgError{Code: "23514"}, ""))
}

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	assert.Equal(t, "", w.sql())

	w.add("event_id = $%d", "e1")
	w.add("status = $%d", "registered")
	assert.Equal(t, " WHERE event_id = $1 AND status = $2", w.sql())

	suffix, args := w.page(20, 40)
	assert.Equal(t, " LIMIT $3 OFFSET $4", suffix)
	assert.Equal(t, []interface{}{"e1", "registered", 20, 40}, args)
	assert.Len(t, w.args, 2)
}
