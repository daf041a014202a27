package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gaborage/go-bricks-db/database/internal/binding"
	"github.com/gaborage/go-bricks-db/database/internal/tracking"
)

// Client executes statements through an Adapter and records every attempt in its
// QueryLog. Connection failures are returned but not recorded. A Client is not safe
// for concurrent use.
type Client struct {
	*Adapter
	queries QueryLog
}

// NewClient creates an adapter for creds and wraps it in a Client.
func NewClient(ctx context.Context, creds *Credentials, opts ...Option) (*Client, error) {
	a, err := NewAdapter(ctx, creds, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Adapter: a}, nil
}

// Queries returns the client's query log.
func (c *Client) Queries() *QueryLog {
	return &c.queries
}

type mode uint8

const (
	modeExec mode = iota
	modeFetch
)

// outcome is the result of one pipeline run. log reports whether the attempt
// belongs in the query log.
type outcome struct {
	query *ExecutedQuery
	fetch *FetchQuery
	err   error
	log   bool
}

// Exec prepares, binds and executes a statement and returns the affected row count.
// Failures are returned as *QueryExecuteError.
func (c *Client) Exec(ctx context.Context, query string, data Data) (*ExecutedQuery, error) {
	out := c.settle(c.run(ctx, modeExec, query, data))
	if out.err != nil {
		return nil, out.err
	}
	return out.query, nil
}

// Fetch prepares, binds and executes a query and returns a cursor over its rows.
// Failures are returned as *QueryExecuteError.
func (c *Client) Fetch(ctx context.Context, query string, data Data) (*FetchQuery, error) {
	out := c.settle(c.run(ctx, modeFetch, query, data))
	if out.err != nil {
		return nil, out.err
	}
	return out.fetch, nil
}

// settle appends the outcome to the query log before it reaches the caller.
func (c *Client) settle(out outcome) outcome {
	if !out.log {
		return out
	}
	var qerr *QueryExecuteError
	switch {
	case out.err == nil:
		c.queries.Append(out.query)
	case errors.As(out.err, &qerr):
		c.queries.Append(qerr.Failed())
	}
	return out
}

func (c *Client) run(ctx context.Context, m mode, query string, data Data) outcome {
	data = data.Clone()

	if _, err := c.EnsureConnection(ctx); err != nil {
		return outcome{err: &QueryExecuteError{Query: query, Data: data, cause: err}}
	}

	failed := func(d Data, err error) outcome {
		return outcome{err: &QueryExecuteError{Query: query, Data: d, Captured: CaptureError(err), cause: err}, log: true}
	}

	tpl, err := binding.Compile(query, c.creds.driver.compileOptions()...)
	if err != nil {
		return failed(data, err)
	}
	sqlText, err := tpl.SQL(c.creds.driver.placeholderFormat())
	if err != nil {
		return failed(data, err)
	}

	start := time.Now()
	stmt, err := c.handle().PrepareContext(ctx, sqlText)
	c.lastErr = CaptureError(err)
	if err != nil {
		c.tracker.Track(ctx, tracking.Operation{Query: tracking.OpPrepare + sqlText, Start: start, Err: err})
		return failed(nil, err)
	}

	args, err := tpl.Bind(data.args())
	if err != nil {
		_ = stmt.Close()
		return failed(data, err)
	}

	start = time.Now()
	switch m {
	case modeFetch:
		rows, err := stmt.QueryContext(ctx, args...)
		c.tracker.Track(ctx, tracking.Operation{Query: sqlText, Args: args, Start: start, Err: err})
		if err != nil {
			_ = stmt.Close()
			return failed(data, err)
		}
		executed := &ExecutedQuery{Query: query, Data: data}
		return outcome{
			query: executed,
			fetch: &FetchQuery{Query: executed, rows: rows, stmt: stmt},
			log:   true,
		}

	default:
		defer stmt.Close()
		res, err := stmt.ExecContext(ctx, args...)
		affected := rowsAffected(res, err)
		c.tracker.Track(ctx, tracking.Operation{Query: sqlText, Args: args, Start: start, RowsAffected: affected, Err: err})
		if err != nil {
			return failed(data, err)
		}
		return outcome{query: &ExecutedQuery{Query: query, Data: data, RowsAffected: uint64(affected)}, log: true}
	}
}

// rowsAffected returns the driver-reported count, or 0 when unavailable.
func rowsAffected(res sql.Result, err error) int64 {
	if res == nil || err != nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil || n < 0 {
		return 0
	}
	return n
}
