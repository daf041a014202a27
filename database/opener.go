package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"
)

// ConnectOptions are the driver options derived from the connection strategy.
type ConnectOptions struct {
	// Persistent requests a process-wide pool shared by every adapter with the same DSN.
	Persistent bool
	// Timeout bounds the dial and initial ping. Zero means no bound.
	Timeout time.Duration
}

// Opener produces the *sql.DB an adapter pins its connection from. Adapters close
// the returned DB on Close unless opts.Persistent was set.
type Opener interface {
	Open(ctx context.Context, creds *Credentials, opts ConnectOptions) (*sql.DB, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, creds *Credentials, opts ConnectOptions) (*sql.DB, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, creds *Credentials, opts ConnectOptions) (*sql.DB, error) {
	return f(ctx, creds, opts)
}

var persistentPools = &poolRegistry{pools: make(map[string]*sql.DB)}

// DefaultOpener opens databases with the registered database/sql drivers.
// PostgreSQL goes through pgx's stdlib adapter.
func DefaultOpener() Opener {
	return OpenerFunc(openDefault)
}

func openDefault(_ context.Context, creds *Credentials, opts ConnectOptions) (*sql.DB, error) {
	dsn, err := creds.nativeDSN(opts.Timeout)
	if err != nil {
		return nil, err
	}

	if opts.Persistent {
		return persistentPools.get(creds.driver, dsn)
	}

	db, err := openDB(creds.driver, dsn)
	if err != nil {
		return nil, err
	}
	// One adapter owns one physical connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// openPostgresDB is swapped in tests.
var openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
	return stdlib.OpenDB(*cfg)
}

func openDB(driver Driver, dsn string) (*sql.DB, error) {
	if driver == PostgreSQL {
		pgxConfig, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
		}
		return openPostgresDB(pgxConfig), nil
	}

	db, err := sql.Open(driver.sqlDriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// poolRegistry holds the shared pools behind the Persistent strategy.
type poolRegistry struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
	group singleflight.Group
}

func (r *poolRegistry) lookup(key string) (*sql.DB, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.pools[key]
	return db, ok
}

// get returns the pool for driver and dsn, opening it once even under concurrent callers.
func (r *poolRegistry) get(driver Driver, dsn string) (*sql.DB, error) {
	key := string(driver) + "\x00" + dsn
	if db, ok := r.lookup(key); ok {
		return db, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if db, ok := r.lookup(key); ok {
			return db, nil
		}
		db, err := openDB(driver, dsn)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.pools[key] = db
		r.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (r *poolRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

func (r *poolRegistry) closeAll() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*sql.DB)
	r.mu.Unlock()

	var errs []error
	for _, db := range pools {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClosePersistentPools closes every pool opened for the Persistent strategy.
// Adapters still using them fail on their next statement.
func ClosePersistentPools() error {
	return persistentPools.closeAll()
}
