package database

import (
	"database/sql"
	"errors"
)

// Row is one fetched row with values in column order. []byte values are returned as strings.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row keyed by column name. Later duplicate columns win.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// FetchQuery is a single-pass cursor over the rows of an executed query.
type FetchQuery struct {
	Query *ExecutedQuery

	rows    *sql.Rows
	stmt    *sql.Stmt
	columns []string
	done    bool
}

// Next returns the next row. It returns false once the rows are exhausted, and keeps
// returning false afterwards. A driver failure is reported as *QueryFetchError and
// also ends the cursor.
func (f *FetchQuery) Next() (Row, bool, error) {
	if f.done {
		return Row{}, false, nil
	}

	if f.columns == nil {
		cols, err := f.rows.Columns()
		if err != nil {
			return Row{}, false, f.fail(err)
		}
		f.columns = cols
	}

	if !f.rows.Next() {
		err := f.rows.Err()
		if err != nil {
			return Row{}, false, f.fail(err)
		}
		if err := f.release(); err != nil {
			return Row{}, false, &QueryFetchError{Query: f.Query, Cause: err}
		}
		return Row{}, false, nil
	}

	values := make([]any, len(f.columns))
	ptrs := make([]any, len(f.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := f.rows.Scan(ptrs...); err != nil {
		return Row{}, false, f.fail(err)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}

	return Row{Columns: f.columns, Values: values}, true, nil
}

// All drains the remaining rows.
func (f *FetchQuery) All() ([]Row, error) {
	var out []Row
	for {
		row, ok, err := f.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

// Close releases the rows and statement before exhaustion. It is safe to call twice.
func (f *FetchQuery) Close() error {
	if f.done {
		return nil
	}
	return f.release()
}

func (f *FetchQuery) fail(cause error) error {
	_ = f.release()
	return &QueryFetchError{Query: f.Query, Cause: cause}
}

func (f *FetchQuery) release() error {
	f.done = true
	var errs []error
	if f.rows != nil {
		errs = append(errs, f.rows.Close())
	}
	if f.stmt != nil {
		errs = append(errs, f.stmt.Close())
	}
	f.rows, f.stmt = nil, nil
	return errors.Join(errs...)
}
