package testing

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/gaborage/go-bricks-db/database"
)

// MockOpener is a database.Opener backed by go-sqlmock. It counts dials and can be
// told to fail them.
type MockOpener struct {
	mu      sync.Mutex
	db      *sql.DB
	err     error
	calls   int
	options []database.ConnectOptions
}

// NewMockOpener creates a sqlmock database matching SQL text exactly and an opener
// returning it. The mock's expectations are verified when the test ends.
func NewMockOpener(t *testing.T) (*MockOpener, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
	})

	return &MockOpener{db: db}, mock
}

// Open implements database.Opener.
func (o *MockOpener) Open(_ context.Context, _ *database.Credentials, opts database.ConnectOptions) (*sql.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls++
	o.options = append(o.options, opts)
	if o.err != nil {
		return nil, o.err
	}
	return o.db, nil
}

// FailWith makes later dials fail with err. A nil err restores success.
func (o *MockOpener) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Calls returns the number of dials.
func (o *MockOpener) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// Options returns the connect options of every dial in order.
func (o *MockOpener) Options() []database.ConnectOptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]database.ConnectOptions(nil), o.options...)
}
