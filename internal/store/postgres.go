package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/reference"
)

// Pool is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS anchors (
	position  INTEGER PRIMARY KEY,
	fragment  TEXT NOT NULL UNIQUE,
	canonical TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS businesses (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq            BIGSERIAL,
	lookup_key     TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	place_id       TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	category_query TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	votes      INTEGER NOT NULL,
	counted    INTEGER NOT NULL,
	flagged    INTEGER NOT NULL,
	summary    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_businesses_seq ON businesses(seq);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at DESC);
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

func (s *PostgresStore) ReplaceAnchors(ctx context.Context, rules []canon.AnchorRule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace anchors")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM anchors`); err != nil {
		return eris.Wrap(err, "postgres: clear anchors")
	}
	for i, r := range rules {
		if _, err := tx.Exec(ctx,
			`INSERT INTO anchors (position, fragment, canonical) VALUES ($1, $2, $3) ON CONFLICT (fragment) DO UPDATE SET canonical = excluded.canonical`,
			i, r.Fragment, r.Canonical,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert anchor %q", r.Fragment)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit anchors")
}

func (s *PostgresStore) Anchors(ctx context.Context) ([]canon.AnchorRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT fragment, canonical FROM anchors ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list anchors")
	}
	defer rows.Close()

	var out []canon.AnchorRule
	for rows.Next() {
		var r canon.AnchorRule
		if err := rows.Scan(&r.Fragment, &r.Canonical); err != nil {
			return nil, eris.Wrap(err, "postgres: scan anchor")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate anchors")
}

func (s *PostgresStore) UpsertBusinesses(ctx context.Context, businesses []reference.Business) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert businesses")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n := 0
	for _, b := range businesses {
		if b.Name == "" {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO businesses (id, lookup_key, name, address, place_id, category, category_query, city)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (lookup_key) DO UPDATE SET
				name = EXCLUDED.name,
				address = EXCLUDED.address,
				category = EXCLUDED.category,
				category_query = EXCLUDED.category_query,
				city = EXCLUDED.city`,
			uuid.New().String(), businessKey(b), b.Name, b.Address, b.PlaceID, b.Category, b.CategoryQuery, b.City,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert business %q", b.Name)
		}
		n++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit businesses")
	}
	return n, nil
}

func (s *PostgresStore) Businesses(ctx context.Context) ([]reference.Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, address, place_id, category, category_query, city FROM businesses ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	var out []reference.Business
	for rows.Next() {
		var b reference.Business
		if err := rows.Scan(&b.Name, &b.Address, &b.PlaceID, &b.Category, &b.CategoryQuery, &b.City); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate businesses")
}

func (s *PostgresStore) SaveRun(ctx context.Context, run RunSummary) error {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, category, row_count, votes, counted, flagged, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Category, run.Rows, run.Votes, run.Counted, run.Flagged, summaryJSON, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, category, row_count, votes, counted, flagged, summary, created_at
		FROM analysis_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var summaryJSON []byte
		if err := rows.Scan(&r.ID, &r.Category, &r.Rows, &r.Votes, &r.Counted, &r.Flagged, &summaryJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(summaryJSON, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
