package tracking

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// Default operation type for unidentified queries
	defaultOperation = "query"
	unknownTable     = "unknown"

	dbVendorPostgreSQL = "postgresql"
	dbVendorMySQL      = "mysql"
	dbVendorSQLite     = "sqlite"
)

// Pseudo statements used for operations that have no SQL text of their own.
const (
	OpBegin    = "BEGIN"
	OpCommit   = "COMMIT"
	OpRollback = "ROLLBACK"
	OpConnect  = "CONNECT"
	// OpPrepare prefixes the statement text of a prepare call.
	OpPrepare = "PREPARE: "
)

// TruncateString truncates value to at most maxLen runes, adding "..." when space allows.
// If maxLen <= 0 the original value is returned unchanged. When maxLen <= 3 the first
// maxLen runes are returned without an ellipsis.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a sanitized copy of args suitable for logging.
// String values are truncated to maxLen runes, byte slices are replaced with
// "<bytes len=N>" and other values are formatted with "%v" and truncated.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case nil:
			sanitized[i] = nil
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// extractDBOperation extracts the operation type from a SQL query.
// Returns lowercase operation name (select, insert, update, delete, etc.)
func extractDBOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return defaultOperation
	}

	if strings.HasPrefix(query, strings.TrimSpace(OpPrepare)) {
		return "prepare"
	}
	switch query {
	case OpBegin:
		return "begin"
	case OpCommit:
		return "commit"
	case OpRollback:
		return "rollback"
	case OpConnect:
		return "connect"
	}

	parts := strings.Fields(query)
	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "create", "drop", "alter", "truncate", "replace":
		return operation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps driver names onto OTel db.system.name values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "postgres", "pgsql", "pgx", dbVendorPostgreSQL:
		return dbVendorPostgreSQL
	case dbVendorMySQL, "mariadb":
		return dbVendorMySQL
	case dbVendorSQLite, "sqlite3":
		return dbVendorSQLite
	default:
		return vendor
	}
}

var (
	// Quoted identifiers may use double quotes, backticks or single quotes, and may be
	// schema qualified.
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
)

// extractTableName returns the lowercase primary table of a DML statement, or
// "unknown" for DDL, transaction control and anything it cannot parse.
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	query = strings.TrimPrefix(query, strings.TrimSpace(OpPrepare))
	query = strings.TrimSpace(query)

	var pattern *regexp.Regexp
	switch upper := strings.ToUpper(query); {
	case strings.HasPrefix(upper, "SELECT"):
		pattern = selectTableRegex
	case strings.HasPrefix(upper, "INSERT"):
		pattern = insertTableRegex
	case strings.HasPrefix(upper, "UPDATE"):
		pattern = updateTableRegex
	case strings.HasPrefix(upper, "DELETE"):
		pattern = deleteTableRegex
	default:
		return unknownTable
	}

	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}
