package database

import (
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-db/config"
)

// Strategy controls when the physical connection is opened.
type Strategy uint8

const (
	// Normal opens the connection while the adapter is constructed.
	Normal Strategy = iota
	// Lazy defers the connection until the first statement or transaction.
	Lazy
	// Persistent opens during construction and reuses a process-wide pool keyed by DSN.
	Persistent
)

// ParseStrategy parses "normal", "lazy" or "persistent". An empty string is Lazy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "eager":
		return Normal, nil
	case "", "lazy":
		return Lazy, nil
	case "persistent":
		return Persistent, nil
	default:
		return Lazy, fmt.Errorf("unknown connection strategy %q (supported: normal, lazy, persistent)", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case Normal:
		return "normal"
	case Persistent:
		return "persistent"
	default:
		return "lazy"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Credentials is an immutable connection descriptor. The password never leaves the
// package except through the native driver connection string.
type Credentials struct {
	driver      Driver
	dbName      string
	host        string
	port        uint16
	username    string
	password    string
	strategy    Strategy
	busyTimeout time.Duration
}

// CredentialOption customizes NewCredentials.
type CredentialOption func(*Credentials)

// WithHost sets the server host. Defaults to localhost.
func WithHost(host string) CredentialOption {
	return func(c *Credentials) {
		c.host = host
	}
}

// WithPort sets the server port. Zero leaves the port unset.
func WithPort(port uint16) CredentialOption {
	return func(c *Credentials) {
		c.port = port
	}
}

// WithUsername sets the login user.
func WithUsername(username string) CredentialOption {
	return func(c *Credentials) {
		c.username = username
	}
}

// WithPassword sets the login password.
func WithPassword(password string) CredentialOption {
	return func(c *Credentials) {
		c.password = password
	}
}

// WithStrategy sets the connection strategy. Defaults to Lazy.
func WithStrategy(strategy Strategy) CredentialOption {
	return func(c *Credentials) {
		c.strategy = strategy
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) CredentialOption {
	return func(c *Credentials) {
		c.busyTimeout = d
	}
}

// NewCredentials validates driver against the drivers registered with database/sql
// and returns a connection descriptor. An empty dbName is accepted here and reported
// by DSN.
func NewCredentials(driver Driver, dbName string, opts ...CredentialOption) (*Credentials, error) {
	name := driver.sqlDriverName()
	if name == "" || !slices.Contains(sql.Drivers(), name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	c := &Credentials{
		driver:   driver,
		dbName:   dbName,
		host:     "localhost",
		strategy: Lazy,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.host == "" {
		c.host = "localhost"
	}
	return c, nil
}

// FromConfig builds Credentials from the database configuration section.
func FromConfig(cfg config.DatabaseConfig) (*Credentials, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}

	return NewCredentials(driver, cfg.Name,
		WithHost(cfg.Host),
		WithPort(uint16(cfg.Port)),
		WithUsername(cfg.Username),
		WithPassword(cfg.Password),
		WithStrategy(strategy),
		WithBusyTimeout(cfg.Timeout.Busy),
	)
}

// Driver returns the database vendor.
func (c *Credentials) Driver() Driver { return c.driver }

// DBName returns the database name, or the file path for SQLite.
func (c *Credentials) DBName() string { return c.dbName }

// Host returns the server host.
func (c *Credentials) Host() string { return c.host }

// Port returns the server port and whether one was set.
func (c *Credentials) Port() (uint16, bool) { return c.port, c.port != 0 }

// Username returns the login user, if any.
func (c *Credentials) Username() string { return c.username }

// HasPassword reports whether a password was supplied.
func (c *Credentials) HasPassword() bool { return c.password != "" }

// Strategy returns the connection strategy.
func (c *Credentials) Strategy() Strategy { return c.strategy }

// BusyTimeout returns the SQLite lock wait.
func (c *Credentials) BusyTimeout() time.Duration { return c.busyTimeout }

func (c *Credentials) portOr(fallback uint16) uint16 {
	if c.port != 0 {
		return c.port
	}
	return fallback
}

// DSN returns the vendor-prefixed data source name:
//
//	sqlite:<dbName>
//	<driver>:host=<host>;[port=<port>;]dbname=<dbName>;charset=utf8mb4
func (c *Credentials) DSN() (string, error) {
	if c.dbName == "" {
		return "", ErrEmptyDatabaseName
	}
	if c.driver == SQLite {
		return "sqlite:" + c.dbName, nil
	}

	var b strings.Builder
	b.WriteString(string(c.driver))
	b.WriteString(":host=")
	b.WriteString(c.host)
	b.WriteByte(';')
	if c.port != 0 {
		b.WriteString("port=")
		b.WriteString(strconv.Itoa(int(c.port)))
		b.WriteByte(';')
	}
	b.WriteString("dbname=")
	b.WriteString(c.dbName)
	b.WriteString(";charset=utf8mb4")
	return b.String(), nil
}

// ContextID identifies the target store in logs, spans and events, for example
// "mysql@db.internal:shop" or "sqlite:test.db".
func (c *Credentials) ContextID() string {
	id := string(c.driver)
	if c.driver != SQLite {
		id += "@" + c.host
	}
	return strings.ToLower(id + ":" + c.storeName())
}

// String describes the credentials without the password.
func (c *Credentials) String() string {
	var b strings.Builder
	b.WriteString(string(c.driver))
	b.WriteString("://")
	if c.username != "" {
		b.WriteString(c.username)
		if c.password != "" {
			b.WriteString(":***")
		}
		b.WriteByte('@')
	}
	if c.driver != SQLite {
		b.WriteString(c.host)
		if c.port != 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(int(c.port)))
		}
	}
	b.WriteByte('/')
	b.WriteString(c.dbName)
	b.WriteString("?strategy=")
	b.WriteString(c.strategy.String())
	return b.String()
}

// GoString keeps %#v from printing the password.
func (c *Credentials) GoString() string {
	return "database.Credentials(" + c.String() + ")"
}
