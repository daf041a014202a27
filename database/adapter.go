package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-db/database/internal/tracking"
	"github.com/gaborage/go-bricks-db/logger"
)

// Adapter owns one physical connection and mediates transactions, last insert id
// retrieval and handle-level error introspection through it. An Adapter is not safe
// for concurrent use.
type Adapter struct {
	creds          *Credentials
	opener         Opener
	notifier       Notifier
	log            logger.Logger
	connectTimeout time.Duration
	tracker        *tracking.Tracker

	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	lastErr DriverError
	closed  bool
}

// querier is implemented by *sql.Conn and *sql.Tx.
type querier interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewAdapter creates an adapter for creds. A Lazy adapter only emits ConnectionWaiting;
// Normal and Persistent adapters connect before returning and report a failed dial
// as a *ConnectionError.
func NewAdapter(ctx context.Context, creds *Credentials, opts ...Option) (*Adapter, error) {
	if creds == nil {
		return nil, errors.New("credentials cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adapter{
		creds:          creds,
		opener:         o.opener,
		notifier:       o.notifier,
		log:            o.log.WithFields(map[string]any{"store": creds.ContextID()}),
		connectTimeout: o.connectTimeout,
	}
	a.tracker = tracking.New(o.log, string(creds.driver), creds.ContextID(), o.tracking)

	if creds.strategy == Lazy {
		a.notifier.Notify(ctx, ConnectionWaiting{Credentials: creds})
		return a, nil
	}

	if _, err := a.EnsureConnection(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Credentials returns the connection descriptor.
func (a *Adapter) Credentials() *Credentials { return a.creds }

// Connected reports whether a physical connection is held.
func (a *Adapter) Connected() bool { return a.conn != nil }

// InTransaction reports whether a transaction is open.
func (a *Adapter) InTransaction() bool { return a.tx != nil }

// LastError returns the snapshot of the last handle-level operation: prepare, begin,
// commit, rollback, ping or last insert id. It is zero after a success and when no
// connection is held.
func (a *Adapter) LastError() DriverError {
	if a.conn == nil {
		return DriverError{}
	}
	return a.lastErr
}

// EnsureConnection dials once. Later calls return immediately while the connection is
// held. A failed dial caches nothing, so the next call dials again.
func (a *Adapter) EnsureConnection(ctx context.Context) (*Adapter, error) {
	if a.conn != nil {
		return a, nil
	}
	if a.closed {
		return nil, &ConnectionError{Credentials: a.creds, Cause: ErrClosed}
	}

	persistent := a.creds.strategy == Persistent
	dialCtx := ctx
	if a.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, a.connectTimeout)
		defer cancel()
	}

	start := time.Now()
	db, err := a.opener.Open(dialCtx, a.creds, ConnectOptions{Persistent: persistent, Timeout: a.connectTimeout})
	if err != nil {
		return nil, a.connectFailed(ctx, start, err)
	}

	conn, err := db.Conn(dialCtx)
	if err != nil {
		a.discard(db, persistent)
		return nil, a.connectFailed(ctx, start, err)
	}

	if err := conn.PingContext(dialCtx); err != nil {
		_ = conn.Close()
		a.discard(db, persistent)
		return nil, a.connectFailed(ctx, start, err)
	}

	a.db, a.conn = db, conn
	a.lastErr = DriverError{}
	a.tracker.Track(ctx, tracking.Operation{Query: tracking.OpConnect, Start: start})

	a.log.Info().
		Str("driver", a.creds.driver.String()).
		Str("strategy", a.creds.strategy.String()).
		Msg("Connected to database")
	a.notifier.Notify(ctx, ConnectionSucceeded{Credentials: a.creds, Adapter: a})
	return a, nil
}

func (a *Adapter) discard(db *sql.DB, persistent bool) {
	if persistent {
		return
	}
	if err := db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database after connection failure")
	}
}

func (a *Adapter) connectFailed(ctx context.Context, start time.Time, cause error) *ConnectionError {
	cerr := &ConnectionError{Credentials: a.creds, Cause: cause}
	a.tracker.Track(ctx, tracking.Operation{Query: tracking.OpConnect, Start: start, Err: cause})
	a.log.Error().Err(cause).Msg("Failed to connect to database")
	a.notifier.Notify(ctx, ConnectionFailed{Cause: cerr})
	return cerr
}

// handle returns the open transaction if any, otherwise the pinned connection.
func (a *Adapter) handle() querier {
	if a.tx != nil {
		return a.tx
	}
	return a.conn
}

// BeginTransaction connects if needed and starts a transaction. Transactions do not nest.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	if _, err := a.EnsureConnection(ctx); err != nil {
		return &TransactionError{Op: "begin", Cause: err}
	}
	if a.tx != nil {
		return &TransactionError{Op: "begin", Cause: ErrTransactionActive}
	}

	start := time.Now()
	tx, err := a.conn.BeginTx(ctx, nil)
	a.tracker.Track(ctx, tracking.Operation{Query: tracking.OpBegin, Start: start, Err: err})
	a.lastErr = CaptureError(err)
	if err != nil {
		return &TransactionError{Op: "begin", Cause: err}
	}
	a.tx = tx
	return nil
}

// Commit commits the open transaction. It never dials.
func (a *Adapter) Commit(ctx context.Context) error {
	return a.finish(ctx, "commit", tracking.OpCommit, (*sql.Tx).Commit)
}

// Rollback rolls back the open transaction. It never dials.
func (a *Adapter) Rollback(ctx context.Context) error {
	return a.finish(ctx, "rollback", tracking.OpRollback, (*sql.Tx).Rollback)
}

func (a *Adapter) finish(ctx context.Context, op, query string, fn func(*sql.Tx) error) error {
	if a.conn == nil {
		return &TransactionError{Op: op, Cause: ErrNoConnection}
	}
	if a.tx == nil {
		return &TransactionError{Op: op, Cause: ErrNoTransaction}
	}

	start := time.Now()
	err := fn(a.tx)
	a.tracker.Track(ctx, tracking.Operation{Query: query, Start: start, Err: err})
	// The transaction is over whatever the outcome.
	a.tx = nil
	a.lastErr = CaptureError(err)
	if err != nil {
		return &TransactionError{Op: op, Cause: err}
	}
	return nil
}

// LastInsertID returns the last generated identifier of the connection.
func (a *Adapter) LastInsertID(ctx context.Context) (int64, error) {
	return a.LastInsertSequence(ctx, "")
}

// LastInsertSequence returns the current value of a PostgreSQL sequence, or the last
// generated identifier when name is empty. Other drivers ignore name.
func (a *Adapter) LastInsertSequence(ctx context.Context, name string) (int64, error) {
	query, args := a.creds.driver.lastInsertQuery(name)
	if a.conn == nil {
		return 0, &QueryError{Query: query, Cause: ErrNoConnection}
	}

	start := time.Now()
	var id sql.NullInt64
	err := a.handle().QueryRowContext(ctx, query, args...).Scan(&id)
	a.tracker.Track(ctx, tracking.Operation{Query: query, Args: args, Start: start, Err: err})
	a.lastErr = CaptureError(err)
	if err != nil {
		return 0, &QueryError{Query: query, Cause: err}
	}
	if !id.Valid || id.Int64 == 0 {
		return 0, &QueryError{Query: query, Cause: ErrNoInsertID}
	}
	return id.Int64, nil
}

// Close rolls back an open transaction and releases the connection. Persistent
// connections go back to the shared pool. Close is terminal.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.conn == nil {
		return nil
	}

	var errs []error
	if a.tx != nil {
		if err := a.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback on close: %w", err))
		}
		a.tx = nil
	}
	if err := a.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release connection: %w", err))
	}
	if a.creds.strategy != Persistent {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	a.conn, a.db = nil, nil
	a.lastErr = DriverError{}
	return errors.Join(errs...)
}
