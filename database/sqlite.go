package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is the go-sqlite3 driver registered with the REGEXP_LIKE function.
const sqliteDriverName = "sqlite3_regexp"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("REGEXP_LIKE", regexpLike, true)
		},
	})
}

// regexpLike implements REGEXP_LIKE(input, pattern[, flags]) for SQLite. flags are
// RE2 flags such as "i" or "s". It returns 1 on a match and 0 otherwise.
func regexpLike(input, pattern string, flags ...string) (int64, error) {
	if len(flags) > 1 {
		return 0, fmt.Errorf("REGEXP_LIKE takes at most 3 arguments")
	}
	if len(flags) == 1 && flags[0] != "" {
		pattern = "(?" + strings.TrimSpace(flags[0]) + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}
	if re.MatchString(input) {
		return 1, nil
	}
	return 0, nil
}
