package testing

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/gaborage/go-bricks-db/database"
)

// AssertLogCount asserts that the query log holds exactly expected entries.
//
// Example:
//
//	client.Exec(ctx, "CREATE TABLE t (id INTEGER)", nil)
//	AssertLogCount(t, client.Queries(), 1)
func AssertLogCount(t *testing.T, log *database.QueryLog, expected int) {
	t.Helper()
	if got := log.Count(); got != expected {
		t.Errorf("expected %d query log entries, got %d\nEntries:\n%s", expected, got, formatLog(log))
	}
}

// AssertExecuted asserts that an ExecutedQuery for query was logged and returns the last one.
func AssertExecuted(t *testing.T, log *database.QueryLog, query string) *database.ExecutedQuery {
	t.Helper()
	var found *database.ExecutedQuery
	for entry := range log.Entries() {
		if q, ok := entry.(*database.ExecutedQuery); ok && q.Query == query {
			found = q
		}
	}
	if found == nil {
		t.Errorf("expected executed query not logged: %q\nEntries:\n%s", query, formatLog(log))
	}
	return found
}

// AssertFailed asserts that a FailedQuery for query was logged and returns the last one.
func AssertFailed(t *testing.T, log *database.QueryLog, query string) *database.FailedQuery {
	t.Helper()
	var found *database.FailedQuery
	for entry := range log.Entries() {
		if q, ok := entry.(*database.FailedQuery); ok && q.Query == query {
			found = q
		}
	}
	if found == nil {
		t.Errorf("expected failed query not logged: %q\nEntries:\n%s", query, formatLog(log))
	}
	return found
}

// AssertNotLogged asserts that no entry for query was logged.
func AssertNotLogged(t *testing.T, log *database.QueryLog, query string) {
	t.Helper()
	for entry := range log.Entries() {
		if entry.QueryString() == query {
			t.Errorf("unexpected query logged: %q", query)
			return
		}
	}
}

// AssertEvents asserts the exact sequence of event names recorded by n.
func AssertEvents(t *testing.T, n *RecordingNotifier, expected ...string) {
	t.Helper()
	if got := n.Names(); !slices.Equal(got, expected) {
		t.Errorf("expected events %v, got %v", expected, got)
	}
}

func formatLog(log *database.QueryLog) string {
	var b strings.Builder
	i := 0
	for entry := range log.Entries() {
		switch q := entry.(type) {
		case *database.ExecutedQuery:
			fmt.Fprintf(&b, "  %d. executed %q rows=%d\n", i+1, q.Query, q.RowsAffected)
		case *database.FailedQuery:
			fmt.Fprintf(&b, "  %d. failed %q error=%s\n", i+1, q.Query, q.Error)
		}
		i++
	}
	if i == 0 {
		return "  (none)"
	}
	return b.String()
}
