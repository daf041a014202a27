package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/gaborage/go-bricks-db/database/internal/binding"
)

// Sentinel errors. Typed errors below wrap them so callers can use errors.Is.
var (
	// ErrUnsupportedDriver is returned when a driver is unknown or not registered with database/sql.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrEmptyDatabaseName is returned when a DSN is requested without a database name.
	ErrEmptyDatabaseName = errors.New("database name cannot be empty")

	// ErrUnsupportedBindType is returned when a value is not bool, integer, nil, string or float.
	ErrUnsupportedBindType = errors.New("unsupported bind value type")

	// ErrNoConnection is returned by operations that need an open handle and will not dial one.
	ErrNoConnection = errors.New("no open connection")

	// ErrNoTransaction is returned by Commit and Rollback when no transaction is open.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrTransactionActive is returned when a transaction is begun while another is open.
	ErrTransactionActive = errors.New("there is already an active transaction")

	// ErrNoInsertID is returned when the driver reports no generated identifier.
	ErrNoInsertID = errors.New("no last insert id available")

	// ErrClosed is returned by an adapter after Close.
	ErrClosed = errors.New("adapter is closed")
)

// SQL states assigned to errors that carry none.
const (
	SQLStateGeneral                = "HY000"
	SQLStateInvalidParameterNumber = binding.SQLStateInvalidParameterNumber
)

// DriverError is an immutable snapshot of a native driver error. Empty fields are absent.
type DriverError struct {
	SQLState string `json:"sqlState,omitempty"`
	Code     string `json:"code,omitempty"`
	Info     string `json:"info,omitempty"`
}

// IsZero reports whether the snapshot holds no error.
func (e DriverError) IsZero() bool {
	return e == DriverError{}
}

func (e DriverError) String() string {
	if e.IsZero() {
		return "no error"
	}
	var parts []string
	if e.SQLState != "" {
		parts = append(parts, "SQLSTATE["+e.SQLState+"]")
	}
	if e.Code != "" {
		parts = append(parts, "["+e.Code+"]")
	}
	if e.Info != "" {
		parts = append(parts, e.Info)
	}
	return strings.Join(parts, " ")
}

// CaptureError normalizes a native driver error into a DriverError. A nil error
// yields the zero value.
func CaptureError(err error) DriverError {
	if err == nil {
		return DriverError{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return DriverError{SQLState: pgErr.Code, Code: pgErr.Code, Info: pgErr.Message}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		de := DriverError{Code: strconv.Itoa(int(myErr.Number)), Info: myErr.Message}
		if myErr.SQLState != [5]byte{} {
			de.SQLState = string(myErr.SQLState[:])
		}
		return de
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		info := liteErr.Error()
		return DriverError{SQLState: SQLStateGeneral, Code: strconv.Itoa(int(liteErr.Code)), Info: info}
	}

	var bindErr *binding.Error
	if errors.As(err, &bindErr) {
		return DriverError{SQLState: bindErr.SQLState, Info: bindErr.Message}
	}

	if errors.Is(err, ErrUnsupportedBindType) {
		return DriverError{SQLState: SQLStateInvalidParameterNumber, Info: err.Error()}
	}

	return DriverError{Info: err.Error()}
}

// ConnectionError reports a failed dial. It is never recorded in the query log.
type ConnectionError struct {
	Credentials *Credentials
	Cause       error
}

func (e *ConnectionError) Error() string {
	if e.Credentials == nil {
		return fmt.Sprintf("database connection failed: %v", e.Cause)
	}
	return fmt.Sprintf("database connection to %s failed: %v", e.Credentials.ContextID(), e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// TransactionError reports a failed begin, commit or rollback.
type TransactionError struct {
	Op    string
	Cause error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Cause)
}

func (e *TransactionError) Unwrap() error { return e.Cause }

// QueryError reports a failed handle-level query such as last insert id retrieval.
type QueryError struct {
	Query string
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query, e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// QueryExecuteError reports a statement that failed to prepare, bind or execute.
// Data is empty when preparation failed. Captured is zero when the cause is a
// connection failure.
type QueryExecuteError struct {
	Query    string
	Data     Data
	Captured DriverError
	cause    error
}

func (e *QueryExecuteError) Error() string {
	if e.Captured.IsZero() && e.cause != nil {
		return fmt.Sprintf("query %q failed: %v", e.Query, e.cause)
	}
	return fmt.Sprintf("query %q failed: %s", e.Query, e.Captured)
}

func (e *QueryExecuteError) Unwrap() error { return e.cause }

// Failed returns the query log entry describing the failure.
func (e *QueryExecuteError) Failed() *FailedQuery {
	return &FailedQuery{Query: e.Query, Data: e.Data.Clone(), Error: e.Captured}
}

// QueryFetchError reports a driver failure while reading rows of an executed query.
type QueryFetchError struct {
	Query *ExecutedQuery
	Cause error
}

func (e *QueryFetchError) Error() string {
	q := ""
	if e.Query != nil {
		q = e.Query.Query
	}
	return fmt.Sprintf("fetching rows of %q failed: %v", q, e.Cause)
}

func (e *QueryFetchError) Unwrap() error { return e.Cause }

// QueryBuilderError reports misuse of the query builder.
type QueryBuilderError struct {
	Message string
	Cause   error
}

func (e *QueryBuilderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query builder: %s: %v", e.Message, e.Cause)
	}
	return "query builder: " + e.Message
}

func (e *QueryBuilderError) Unwrap() error { return e.Cause }
