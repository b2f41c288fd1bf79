package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: AnonymousIDConstraint}
	wrapped := fmt.Errorf("insert report: %w", dup)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, AnonymousIDConstraint))
	assert.False(t, IsUniqueViolation(wrapped, "police_users_badge_id_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("find: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestNewPoolRejectsEmptyURL(t *testing.T) {
	_, err := NewPool("")
	assert.Error(t, err)
}

func TestEnsureSchemaAppliesEveryStatement(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(schema[0]).WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(context.Background(), mock)
	assert.ErrorContains(t, err, "statement 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}
