// Package db provides shared Postgres helpers for bulk table replacement.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the helpers need.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Column is a column name with its SQL type.
type Column struct {
	Name string
	Type string
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// ReplaceTable swaps the full contents of table for rows in one
// transaction: the table is created if needed, truncated, then filled with
// COPY. Readers see either the old rows or the new rows, never a mix.
func ReplaceTable(ctx context.Context, pool Pool, table string, columns []Column, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, eris.Errorf("db: replace %s: no columns specified", table)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: begin tx", table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, CreateTableSQL(table, columns)); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: create table", table)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+Identifier(table).Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: truncate", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, Identifier(table), Names(columns), pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace %s: COPY", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: commit tx", table)
	}
	return n, nil
}

// CreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement.
func CreateTableSQL(table string, columns []Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Identifier(table).Sanitize(), strings.Join(defs, ", "))
}

// Identifier splits a possibly schema-qualified table name.
func Identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}
