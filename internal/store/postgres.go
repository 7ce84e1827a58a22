package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/db"
	"github.com/niruguard/niruguard/internal/model"
)

// PostgresStore mirrors feature tables into Postgres using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	prefix  string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString, tablePrefix string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	err = db.Retry(ctx, db.DefaultRetryPolicy(), "postgres connect", func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return eris.Wrap(err, "postgres: create pool")
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return eris.Wrap(err, "postgres: ping")
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, prefix: tablePrefix, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_version ON pipeline_runs(version);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ReplaceFeatures(ctx context.Context, v model.Version, records []model.FeatureRecord) (int64, error) {
	table := TableName(s.prefix, v)
	n, err := db.ReplaceTable(ctx, s.pool, table, featureColumns(v, dialectPostgres), featureRows(v, records))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace features")
	}
	return n, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	var result []byte
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
		result = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, version, status, result, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, result = EXCLUDED.result, updated_at = EXCLUDED.updated_at`,
		run.ID, run.Version.String(), string(run.Status), result, run.CreatedAt, run.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

const postgresRunColumns = `id, version, status, result, created_at, updated_at`

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r       model.Run
		version string
		result  []byte
	)
	if err := row.Scan(&r.ID, &version, &r.Status, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	v, err := model.ParseVersion(version)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: run %s", r.ID)
	}
	r.Version = v
	if len(result) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal result of run %s", r.ID)
		}
	}
	return &r, nil
}

// GetRun loads a run record by id.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM pipeline_runs WHERE id = $1`, id)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

// ListRuns returns runs matching filter, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM pipeline_runs WHERE 1=1`
	var args []any
	if filter.Version != 0 {
		args = append(args, filter.Version.String())
		query += fmt.Sprintf(` AND version = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

var _ Store = (*PostgresStore)(nil)
