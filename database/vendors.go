package database

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/gaborage/go-bricks-db/database/internal/binding"
)

// Driver identifies a supported database vendor. Values match the DSN prefix.
type Driver string

// Supported drivers.
const (
	MySQL      Driver = "mysql"
	PostgreSQL Driver = "pgsql"
	SQLite     Driver = "sqlite"
)

const (
	defaultMySQLPort      = 3306
	defaultPostgreSQLPort = 5432
	// DefaultBusyTimeout is the SQLite lock wait used when none is configured.
	DefaultBusyTimeout = 5 * time.Second
)

// SupportedDrivers returns every driver the package knows how to open.
func SupportedDrivers() []Driver {
	return []Driver{MySQL, PostgreSQL, SQLite}
}

// ParseDriver maps a configuration value onto a Driver. Common aliases are accepted.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "pgsql", "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: mysql, pgsql, sqlite)", ErrUnsupportedDriver, s)
	}
}

func (d Driver) String() string {
	return string(d)
}

// sqlDriverName is the name the driver registers with database/sql.
func (d Driver) sqlDriverName() string {
	switch d {
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "pgx"
	case SQLite:
		return sqliteDriverName
	default:
		return ""
	}
}

// placeholderFormat is the squirrel format compiled statements are rendered with.
func (d Driver) placeholderFormat() squirrel.PlaceholderFormat {
	if d == PostgreSQL {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// compileOptions returns the placeholder scanner options for the driver's
// string literal rules. PostgreSQL uses standard-conforming strings.
func (d Driver) compileOptions() []binding.Option {
	if d == PostgreSQL {
		return nil
	}
	return []binding.Option{binding.WithBackslashEscapes()}
}

// quoteIdent quotes a single identifier for the driver.
func (d Driver) quoteIdent(name string) string {
	if d == PostgreSQL {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// lastInsertQuery returns the statement reporting the last generated id.
func (d Driver) lastInsertQuery(sequence string) (string, []any) {
	switch d {
	case PostgreSQL:
		if sequence != "" {
			return "SELECT currval($1)", []any{sequence}
		}
		return "SELECT lastval()", nil
	case SQLite:
		return "SELECT last_insert_rowid()", nil
	default:
		return "SELECT LAST_INSERT_ID()", nil
	}
}

// nativeDSN builds the connection string handed to the database/sql driver.
func (c *Credentials) nativeDSN(connectTimeout time.Duration) (string, error) {
	if c.dbName == "" {
		return "", ErrEmptyDatabaseName
	}

	switch c.driver {
	case SQLite:
		busy := c.busyTimeout
		if busy <= 0 {
			busy = DefaultBusyTimeout
		}
		return fmt.Sprintf("file:%s?_busy_timeout=%d", c.dbName, busy.Milliseconds()), nil

	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.username
		cfg.Passwd = c.password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.host, strconv.Itoa(int(c.portOr(defaultMySQLPort))))
		cfg.DBName = c.dbName
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		if connectTimeout > 0 {
			cfg.Timeout = connectTimeout
		}
		return cfg.FormatDSN(), nil

	case PostgreSQL:
		parts := []string{
			"host=" + quoteDSN(c.host),
			fmt.Sprintf("port=%d", c.portOr(defaultPostgreSQLPort)),
			"dbname=" + quoteDSN(c.dbName),
			"client_encoding=UTF8",
		}
		if c.username != "" {
			parts = append(parts, "user="+quoteDSN(c.username))
		}
		if c.password != "" {
			parts = append(parts, "password="+quoteDSN(c.password))
		}
		if connectTimeout > 0 {
			seconds := int(connectTimeout.Round(time.Second) / time.Second)
			parts = append(parts, fmt.Sprintf("connect_timeout=%d", max(seconds, 1)))
		}
		return strings.Join(parts, " "), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.driver)
	}
}

// quoteDSN quotes a DSN value according to libpq rules:
// - Returns double single quotes for empty strings (empty value)
// - Escapes backslashes and single quotes
// - Wraps in single quotes when value contains non-alphanumeric/._- characters
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := false
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-' {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")

	return "'" + escaped + "'"
}

// storeName is the database part of a context id. For SQLite it is the file name.
func (c *Credentials) storeName() string {
	if c.driver == SQLite {
		return filepath.Base(c.dbName)
	}
	return c.dbName
}
