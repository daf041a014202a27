package database

import (
	"encoding/json"
	"iter"
	"slices"
)

// LogEntry is an ExecutedQuery or a FailedQuery.
type LogEntry interface {
	QueryString() string
	BoundData() Data
	logEntry()
}

// ExecutedQuery describes a statement that executed successfully. For fetches
// RowsAffected is 0 because database/sql reports no selected row count.
type ExecutedQuery struct {
	Query        string `json:"query"`
	Data         Data   `json:"data"`
	RowsAffected uint64 `json:"rowsAffected"`
}

// FailedQuery describes a statement that failed to prepare, bind or execute.
type FailedQuery struct {
	Query string      `json:"query"`
	Data  Data        `json:"data"`
	Error DriverError `json:"error"`
}

func (q *ExecutedQuery) QueryString() string { return q.Query }
func (q *ExecutedQuery) BoundData() Data     { return q.Data }
func (*ExecutedQuery) logEntry()             {}

func (q *FailedQuery) QueryString() string { return q.Query }
func (q *FailedQuery) BoundData() Data     { return q.Data }
func (*FailedQuery) logEntry()             {}

// QueryLog is an ordered, append-only record of statement attempts. It is not safe
// for concurrent use.
type QueryLog struct {
	entries []LogEntry
}

// Append adds an entry.
func (l *QueryLog) Append(entry LogEntry) {
	l.entries = append(l.entries, entry)
}

// Count returns the number of entries.
func (l *QueryLog) Count() int {
	return len(l.entries)
}

// Flush removes every entry.
func (l *QueryLog) Flush() {
	l.entries = nil
}

// Entries iterates over a snapshot of the log taken when Entries is called.
func (l *QueryLog) Entries() iter.Seq[LogEntry] {
	return slices.Values(slices.Clone(l.entries))
}

// Last returns the most recent entry.
func (l *QueryLog) Last() (LogEntry, bool) {
	if len(l.entries) == 0 {
		return nil, false
	}
	return l.entries[len(l.entries)-1], true
}

// MarshalJSON encodes the log as an array of executed and failed entries.
func (l *QueryLog) MarshalJSON() ([]byte, error) {
	entries := l.entries
	if entries == nil {
		entries = []LogEntry{}
	}
	return json.Marshal(entries)
}
