package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/reference"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS anchors (
	position  INTEGER PRIMARY KEY,
	fragment  TEXT NOT NULL UNIQUE,
	canonical TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS businesses (
	id             TEXT PRIMARY KEY,
	lookup_key     TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	place_id       TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	category_query TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	votes      INTEGER NOT NULL,
	counted    INTEGER NOT NULL,
	flagged    INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceAnchors(ctx context.Context, rules []canon.AnchorRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace anchors")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM anchors`); err != nil {
		return eris.Wrap(err, "sqlite: clear anchors")
	}
	for i, r := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anchors (position, fragment, canonical) VALUES (?, ?, ?) ON CONFLICT(fragment) DO UPDATE SET canonical = excluded.canonical`,
			i, r.Fragment, r.Canonical,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert anchor %q", r.Fragment)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit anchors")
}

func (s *SQLiteStore) Anchors(ctx context.Context) ([]canon.AnchorRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fragment, canonical FROM anchors ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list anchors")
	}
	defer rows.Close() //nolint:errcheck

	var out []canon.AnchorRule
	for rows.Next() {
		var r canon.AnchorRule
		if err := rows.Scan(&r.Fragment, &r.Canonical); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anchor")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate anchors")
}

func (s *SQLiteStore) UpsertBusinesses(ctx context.Context, businesses []reference.Business) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert businesses")
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, b := range businesses {
		if b.Name == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO businesses (id, lookup_key, name, address, place_id, category, category_query, city)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(lookup_key) DO UPDATE SET
				name = excluded.name,
				address = excluded.address,
				category = excluded.category,
				category_query = excluded.category_query,
				city = excluded.city`,
			uuid.New().String(), businessKey(b), b.Name, b.Address, b.PlaceID, b.Category, b.CategoryQuery, b.City,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert business %q", b.Name)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit businesses")
	}
	return n, nil
}

func (s *SQLiteStore) Businesses(ctx context.Context) ([]reference.Business, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, address, place_id, category, category_query, city FROM businesses ORDER BY rowid`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close() //nolint:errcheck

	var out []reference.Business
	for rows.Next() {
		var b reference.Business
		if err := rows.Scan(&b.Name, &b.Address, &b.PlaceID, &b.Category, &b.CategoryQuery, &b.City); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate businesses")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run RunSummary) error {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, category, row_count, votes, counted, flagged, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Category, run.Rows, run.Votes, run.Counted, run.Flagged, string(summaryJSON), run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, row_count, votes, counted, flagged, summary, created_at
		FROM analysis_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var summaryJSON string
		if err := rows.Scan(&r.ID, &r.Category, &r.Rows, &r.Votes, &r.Counted, &r.Flagged, &summaryJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
