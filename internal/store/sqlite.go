package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/niruguard/niruguard/internal/db"
	"github.com/niruguard/niruguard/internal/model"
)

// SQLiteStore mirrors feature tables into a local SQLite file using
// modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	prefix string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, tablePrefix string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn, prefix: tablePrefix}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_version ON pipeline_runs(version);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceFeatures(ctx context.Context, v model.Version, records []model.FeatureRecord) (int64, error) {
	table := TableName(s.prefix, v)
	cols := featureColumns(v, dialectSQLite)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin replace %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, db.CreateTableSQL(table, cols)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create %s", table)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+db.Identifier(table).Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear %s", table)
	}

	names := db.Names(cols)
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	insert := `INSERT INTO ` + db.Identifier(table).Sanitize() + ` (` + strings.Join(quoted, ", ") +
		`) VALUES (` + strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ") + `)`

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range featureRows(v, records) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit replace %s", table)
	}
	return n, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	var result sql.NullString
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		result = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, version, status, result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, result = excluded.result, updated_at = excluded.updated_at`,
		run.ID, run.Version.String(), string(run.Status), result, run.CreatedAt, run.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

const sqliteRunColumns = `id, version, status, result, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*model.Run, error) {
	var (
		r       model.Run
		version string
		result  sql.NullString
	)
	if err := row.Scan(&r.ID, &version, &r.Status, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	v, err := model.ParseVersion(version)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: run %s", r.ID)
	}
	r.Version = v
	if result.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(result.String), r.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal result of run %s", r.ID)
		}
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// GetRun loads a run record by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM pipeline_runs WHERE id = ?`, id)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

// ListRuns returns runs matching filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM pipeline_runs WHERE 1=1`
	var args []any
	if filter.Version != 0 {
		query += ` AND version = ?`
		args = append(args, filter.Version.String())
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

// CountRows returns the number of rows in the feature table of v.
func (s *SQLiteStore) CountRows(ctx context.Context, v model.Version) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+db.Identifier(TableName(s.prefix, v)).Sanitize()).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count rows")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var _ Store = (*SQLiteStore)(nil)
