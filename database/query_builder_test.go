package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDialDisabled = errors.New("dialing disabled in test")

// builderClient returns a client that is never connected. Terminal operations
// that reach the pipeline would dial through the failing opener.
func builderClient(t *testing.T, driver Driver) (*Client, *int) {
	t.Helper()
	creds, err := NewCredentials(driver, "shop")
	require.NoError(t, err)

	dials := 0
	c, err := NewClient(context.Background(), creds, WithOpener(OpenerFunc(func(context.Context, *Credentials, ConnectOptions) (*sql.DB, error) {
		dials++
		return nil, errDialDisabled
	})))
	require.NoError(t, err)
	return c, &dials
}

func TestSelectSQL(t *testing.T) {
	c, _ := builderClient(t, MySQL)

	tests := []struct {
		name     string
		build    func(*QueryBuilder) *QueryBuilder
		expected string
	}{
		{
			name:     "all rows",
			build:    func(qb *QueryBuilder) *QueryBuilder { return qb.Table("users") },
			expected: "SELECT * FROM `users`",
		},
		{
			name: "columns and expressions",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").Columns("id", "users.name", "COUNT(*)")
			},
			expected: "SELECT `id`, `users`.`name`, COUNT(*) FROM `users`",
		},
		{
			name: "where sort limit offset lock",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").
					Where("`age` > :age", Map(map[string]Value{"age": Int(18)})).
					Sort(Desc, "created_at", "id").
					Limit(10).
					Offset(20).
					Lock(ForUpdate)
			},
			expected: "SELECT * FROM `users` WHERE `age` > :age ORDER BY `created_at`, `id` DESC LIMIT 10 OFFSET 20 FOR UPDATE",
		},
		{
			name: "sort without columns clears order",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").Sort(Asc, "id").Sort(Desc)
			},
			expected: "SELECT * FROM `users`",
		},
		{
			name: "offset without limit is ignored",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").Offset(5)
			},
			expected: "SELECT * FROM `users`",
		},
		{
			name: "find joins conditions",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").Find(map[string]Value{"status": Text("active"), "id": Int(1)}).Lock(InShareMode)
			},
			expected: "SELECT * FROM `users` WHERE `id` = :id AND `status` = :status LOCK IN SHARE MODE",
		},
		{
			name: "empty where clears condition",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Table("users").Where("id = :id", nil).Where("  ", nil)
			},
			expected: "SELECT * FROM `users`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := tt.build(c.QueryBuilder()).selectSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, query)
		})
	}
}

func TestSelectSQLPostgreSQLQuoting(t *testing.T) {
	c, _ := builderClient(t, PostgreSQL)

	query, err := c.QueryBuilder().Table("public.users").Columns("id").Sort(Asc, "name").Limit(1).selectSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "public"."users" ORDER BY "name" ASC LIMIT 1`, query)
}

func TestSelectLockRequiresMySQL(t *testing.T) {
	c, dials := builderClient(t, SQLite)

	_, err := c.QueryBuilder().Table("users").Lock(ForUpdate).Select(context.Background())
	var qbErr *QueryBuilderError
	require.ErrorAs(t, err, &qbErr)
	assert.Contains(t, qbErr.Message, "row locks are only supported by the mysql driver")
	assert.Zero(t, *dials)
}

func TestBuilderValidation(t *testing.T) {
	ctx := context.Background()
	c, dials := builderClient(t, MySQL)

	tests := []struct {
		name    string
		run     func() error
		message string
	}{
		{
			name: "missing table",
			run: func() error {
				_, err := c.QueryBuilder().Select(ctx)
				return err
			},
			message: "table name is required",
		},
		{
			name: "insert without data",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Insert(ctx, nil)
				return err
			},
			message: "INSERT query requires data",
		},
		{
			name: "insert with indexed data",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Insert(ctx, Args(Int(1)))
				return err
			},
			message: "INSERT query cannot accept indexed data",
		},
		{
			name: "update without where",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Update(ctx, Map(map[string]Value{"a": Int(1)}))
				return err
			},
			message: "UPDATE query requires WHERE clause",
		},
		{
			name: "update without data",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Where("id = 1", nil).Update(ctx, nil)
				return err
			},
			message: "UPDATE query requires data",
		},
		{
			name: "update with indexed data",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Where("id = 1", nil).Update(ctx, Args(Int(1)))
				return err
			},
			message: "UPDATE query cannot accept indexed data",
		},
		{
			name: "update with indexed where data",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Where("id = ?", Args(Int(1))).Update(ctx, Map(map[string]Value{"a": Int(1)}))
				return err
			},
			message: "WHERE clause for UPDATE query requires named parameters",
		},
		{
			name: "delete without where",
			run: func() error {
				_, err := c.QueryBuilder().Table("t").Delete(ctx)
				return err
			},
			message: "DELETE query requires WHERE clause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var qbErr *QueryBuilderError
			require.ErrorAs(t, tt.run(), &qbErr)
			assert.Equal(t, tt.message, qbErr.Message)
		})
	}

	assert.Zero(t, *dials)
	assert.Zero(t, c.Queries().Count())
}
