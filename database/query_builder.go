package database

import (
	"context"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
)

// whereSentinel is the WHERE clause of a builder no condition was given to.
const whereSentinel = "1"

// updateWherePrefix keeps WHERE parameters of an UPDATE apart from SET parameters
// naming the same column. Columns whose names start with it are not supported.
const updateWherePrefix = "__"

// LockFlag is a row locking clause for SELECT. Only MySQL supports them.
type LockFlag uint8

// Lock flags.
const (
	ForUpdate LockFlag = iota
	InShareMode
)

func (f LockFlag) clause() string {
	if f == InShareMode {
		return "LOCK IN SHARE MODE"
	}
	return "FOR UPDATE"
}

// SortOrder is an ORDER BY direction.
type SortOrder uint8

// Sort orders.
const (
	Asc SortOrder = iota
	Desc
)

func (s SortOrder) String() string {
	if s == Desc {
		return "DESC"
	}
	return "ASC"
}

// QueryBuilder assembles single-table INSERT, UPDATE, DELETE and SELECT statements
// and runs them through the owning Client. Table, column and WHERE input is written
// into the SQL text as given; only values are bound.
type QueryBuilder struct {
	client  *Client
	table   string
	where   string
	data    Data
	columns []string
	lock    *LockFlag
	orderBy []string
	offset  uint64
	limit   uint64
}

// QueryBuilder starts a new builder bound to c.
func (c *Client) QueryBuilder() *QueryBuilder {
	return &QueryBuilder{client: c, where: whereSentinel}
}

// Table sets the target table.
func (qb *QueryBuilder) Table(name string) *QueryBuilder {
	qb.table = strings.TrimSpace(name)
	return qb
}

// Where sets a raw WHERE condition, without the WHERE keyword, and its bind data.
// An empty clause clears the condition.
func (qb *QueryBuilder) Where(clause string, data Data) *QueryBuilder {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		clause = whereSentinel
		data = nil
	}
	qb.where = clause
	qb.data = data.Clone()
	return qb
}

// Find sets a WHERE condition matching every column of cols by equality.
func (qb *QueryBuilder) Find(cols map[string]Value) *QueryBuilder {
	if len(cols) == 0 {
		return qb.Where("", nil)
	}

	data := Map(cols)
	conds := make([]string, len(data))
	for i, p := range data {
		conds[i] = qb.quote(p.Key.name) + " = :" + p.Key.name
	}
	return qb.Where(strings.Join(conds, " AND "), data)
}

// Columns sets the SELECT columns. Names are quoted unless they contain parentheses,
// so expressions such as COUNT(*) pass through.
func (qb *QueryBuilder) Columns(cols ...string) *QueryBuilder {
	qb.columns = qb.columns[:0]
	for _, col := range cols {
		col = strings.TrimSpace(col)
		if strings.ContainsAny(col, "(|)") {
			qb.columns = append(qb.columns, col)
			continue
		}
		qb.columns = append(qb.columns, qb.quote(col))
	}
	return qb
}

// Lock adds a row locking clause to SELECT.
func (qb *QueryBuilder) Lock(flag LockFlag) *QueryBuilder {
	qb.lock = &flag
	return qb
}

// Sort orders SELECT results by columns. The direction is written once after the
// column list, so it binds to the last column and the others sort ascending.
func (qb *QueryBuilder) Sort(order SortOrder, columns ...string) *QueryBuilder {
	qb.orderBy = qb.orderBy[:0]
	if len(columns) == 0 {
		return qb
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = qb.quote(strings.TrimSpace(col))
	}
	qb.orderBy = append(qb.orderBy, strings.Join(quoted, ", ")+" "+order.String())
	return qb
}

// Offset skips n rows. It only applies together with a positive Limit.
func (qb *QueryBuilder) Offset(n int) *QueryBuilder {
	qb.offset = uint64(max(n, 0))
	return qb
}

// Limit caps the number of rows returned by SELECT.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = uint64(max(n, 0))
	return qb
}

// Insert inserts one row. data must use named keys.
func (qb *QueryBuilder) Insert(ctx context.Context, data Data) (*ExecutedQuery, error) {
	if err := qb.requireTable(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &QueryBuilderError{Message: "INSERT query requires data"}
	}
	if data.HasIndexed() {
		return nil, &QueryBuilderError{Message: "INSERT query cannot accept indexed data"}
	}

	cols := make([]string, len(data))
	vals := make([]any, len(data))
	for i, p := range data {
		cols[i] = qb.quote(p.Key.name)
		vals[i] = squirrel.Expr(":" + p.Key.name)
	}

	query, _, err := squirrel.Insert(qb.quote(qb.table)).Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return nil, &QueryBuilderError{Message: "failed to build INSERT query", Cause: err}
	}
	return qb.client.Exec(ctx, query, data)
}

// Update updates the rows matched by the WHERE condition, which is required. WHERE
// parameters are renamed with a "__" prefix so they cannot collide with SET parameters.
func (qb *QueryBuilder) Update(ctx context.Context, data Data) (*ExecutedQuery, error) {
	if err := qb.requireTable(); err != nil {
		return nil, err
	}
	if qb.where == whereSentinel {
		return nil, &QueryBuilderError{Message: "UPDATE query requires WHERE clause"}
	}
	if len(data) == 0 {
		return nil, &QueryBuilderError{Message: "UPDATE query requires data"}
	}
	if data.HasIndexed() {
		return nil, &QueryBuilderError{Message: "UPDATE query cannot accept indexed data"}
	}
	if qb.data.HasIndexed() {
		return nil, &QueryBuilderError{Message: "WHERE clause for UPDATE query requires named parameters"}
	}

	merged := slices.Grow(data.Clone(), len(qb.data))
	ub := squirrel.Update(qb.quote(qb.table))
	for _, p := range data {
		ub = ub.Set(qb.quote(p.Key.name), squirrel.Expr(":"+p.Key.name))
	}
	for _, p := range qb.data {
		merged = append(merged, Named(updateWherePrefix+p.Key.name, p.Value))
	}
	ub = ub.Where(strings.ReplaceAll(qb.where, ":", ":"+updateWherePrefix))

	query, _, err := ub.ToSql()
	if err != nil {
		return nil, &QueryBuilderError{Message: "failed to build UPDATE query", Cause: err}
	}
	return qb.client.Exec(ctx, query, merged)
}

// Delete deletes the rows matched by the WHERE condition, which is required.
func (qb *QueryBuilder) Delete(ctx context.Context) (*ExecutedQuery, error) {
	if err := qb.requireTable(); err != nil {
		return nil, err
	}
	if qb.where == whereSentinel {
		return nil, &QueryBuilderError{Message: "DELETE query requires WHERE clause"}
	}

	query, _, err := squirrel.Delete(qb.quote(qb.table)).Where(qb.where).ToSql()
	if err != nil {
		return nil, &QueryBuilderError{Message: "failed to build DELETE query", Cause: err}
	}
	return qb.client.Exec(ctx, query, qb.data)
}

// Select runs the SELECT and returns a cursor over its rows.
func (qb *QueryBuilder) Select(ctx context.Context) (*FetchQuery, error) {
	query, err := qb.selectSQL()
	if err != nil {
		return nil, err
	}
	return qb.client.Fetch(ctx, query, qb.data)
}

func (qb *QueryBuilder) selectSQL() (string, error) {
	if err := qb.requireTable(); err != nil {
		return "", err
	}

	cols := qb.columns
	if len(cols) == 0 {
		cols = []string{"*"}
	}
	sb := squirrel.Select(cols...).From(qb.quote(qb.table))
	if qb.where != whereSentinel {
		sb = sb.Where(qb.where)
	}
	if len(qb.orderBy) > 0 {
		sb = sb.OrderBy(qb.orderBy...)
	}
	if qb.limit > 0 {
		sb = sb.Limit(qb.limit)
		if qb.offset > 0 {
			sb = sb.Offset(qb.offset)
		}
	}
	if qb.lock != nil {
		if qb.client.creds.driver != MySQL {
			return "", &QueryBuilderError{Message: "row locks are only supported by the mysql driver, not " + qb.client.creds.driver.String()}
		}
		sb = sb.Suffix(qb.lock.clause())
	}

	query, _, err := sb.ToSql()
	if err != nil {
		return "", &QueryBuilderError{Message: "failed to build SELECT query", Cause: err}
	}
	return query, nil
}

func (qb *QueryBuilder) requireTable() error {
	if qb.table == "" {
		return &QueryBuilderError{Message: "table name is required"}
	}
	return nil
}

// quote quotes each dot-separated part of an identifier for the client's driver.
func (qb *QueryBuilder) quote(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = qb.client.creds.driver.quoteIdent(part)
	}
	return strings.Join(parts, ".")
}
