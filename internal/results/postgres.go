package results

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id TEXT PRIMARY KEY,
		"release" TEXT NOT NULL DEFAULT '',
		gene TEXT NOT NULL DEFAULT '',
		targets INTEGER NOT NULL DEFAULT 0,
		with_codes INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		run_id TEXT NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		gene TEXT NOT NULL DEFAULT '',
		variation_id BIGINT,
		hgvs_c TEXT NOT NULL DEFAULT '',
		hgvs_p TEXT NOT NULL DEFAULT '',
		clinical_significance TEXT NOT NULL DEFAULT '',
		evidence_codes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		reliable BOOLEAN NOT NULL DEFAULT FALSE,
		conflicted BOOLEAN NOT NULL DEFAULT FALSE,
		conflict_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		review_stars INTEGER NOT NULL DEFAULT 0,
		matches JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_change ON evaluations(run_id, gene, hgvs_c, hgvs_p);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON evaluation_runs(started_at);
`

// NewPostgresStore wraps an open connection. The schema is created if it is
// missing.
func NewPostgresStore(db *sqlx.DB, logger *logrus.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return newStore(db, logger), nil
}

// NewPostgresStoreFromURL opens a lib/pq connection from a postgres:// URL.
func NewPostgresStoreFromURL(databaseURL string, logger *logrus.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
