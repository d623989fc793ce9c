package pkg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/2beens/wodcareer/pkg"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert user_achievements: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	deadlock := fmt.Errorf("lock: %w", &pgconn.PgError{Code: "40P01"})

	assert.True(t, pkg.IsUniqueViolationError(unique))
	assert.False(t, pkg.IsUniqueViolationError(fk))
	assert.True(t, pkg.IsForeignKeyViolationError(fk))
	assert.True(t, pkg.IsRetryableTxError(deadlock))
	assert.True(t, pkg.IsRetryableTxError(&pgconn.PgError{Code: "40001"}))
	assert.False(t, pkg.IsRetryableTxError(errors.New("plain")))
}
