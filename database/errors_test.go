package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-db/database/internal/binding"
)

func TestCaptureError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DriverError
	}{
		{
			name: "nil",
			err:  nil,
			want: DriverError{},
		},
		{
			name: "postgres",
			err:  &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
			want: DriverError{SQLState: "23505", Code: "23505", Info: "duplicate key value violates unique constraint"},
		},
		{
			name: "mysql wrapped",
			err:  fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062, SQLState: [5]byte{'2', '3', '0', '0', '0'}, Message: "Duplicate entry '1' for key 'PRIMARY'"}),
			want: DriverError{SQLState: "23000", Code: "1062", Info: "Duplicate entry '1' for key 'PRIMARY'"},
		},
		{
			name: "mysql without state",
			err:  &mysql.MySQLError{Number: 1040, Message: "Too many connections"},
			want: DriverError{Code: "1040", Info: "Too many connections"},
		},
		{
			name: "binding",
			err:  &binding.Error{SQLState: binding.SQLStateInvalidParameterNumber, Message: "invalid parameter number: no value bound for :id"},
			want: DriverError{SQLState: "HY093", Info: "invalid parameter number: no value bound for :id"},
		},
		{
			name: "unsupported bind type",
			err:  fmt.Errorf("%w: struct {}", ErrUnsupportedBindType),
			want: DriverError{SQLState: "HY093", Info: "unsupported bind value type: struct {}"},
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			want: DriverError{Info: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaptureError(tt.err))
		})
	}
}

func TestCaptureSQLiteError(t *testing.T) {
	de := CaptureError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	assert.Equal(t, SQLStateGeneral, de.SQLState)
	assert.Equal(t, "19", de.Code)
	assert.NotEmpty(t, de.Info)
}

func TestDriverErrorString(t *testing.T) {
	assert.Equal(t, "no error", DriverError{}.String())
	assert.Equal(t, "SQLSTATE[23000] [1062] dup", DriverError{SQLState: "23000", Code: "1062", Info: "dup"}.String())
	assert.True(t, DriverError{}.IsZero())
}

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("refused")
	creds, err := NewCredentials(MySQL, "shop")
	require.NoError(t, err)

	connErr := &ConnectionError{Credentials: creds, Cause: cause}
	assert.ErrorIs(t, connErr, cause)
	assert.Equal(t, "database connection to mysql@localhost:shop failed: refused", connErr.Error())

	txErr := &TransactionError{Op: "commit", Cause: ErrNoTransaction}
	assert.ErrorIs(t, txErr, ErrNoTransaction)
	assert.Equal(t, "transaction commit failed: no active transaction", txErr.Error())

	execErr := &QueryExecuteError{Query: "SELECT 1", Data: Args(Int(1)), Captured: DriverError{Info: "x"}, cause: connErr}
	var target *ConnectionError
	assert.ErrorAs(t, execErr, &target)
	assert.Equal(t, &FailedQuery{Query: "SELECT 1", Data: Args(Int(1)), Error: DriverError{Info: "x"}}, execErr.Failed())

	builderErr := &QueryBuilderError{Message: "table name is required"}
	assert.Equal(t, "query builder: table name is required", builderErr.Error())
}
