package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id TEXT PRIMARY KEY,
		"release" TEXT NOT NULL DEFAULT '',
		gene TEXT NOT NULL DEFAULT '',
		targets INTEGER NOT NULL DEFAULT 0,
		with_codes INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		gene TEXT NOT NULL DEFAULT '',
		variation_id INTEGER,
		hgvs_c TEXT NOT NULL DEFAULT '',
		hgvs_p TEXT NOT NULL DEFAULT '',
		clinical_significance TEXT NOT NULL DEFAULT '',
		evidence_codes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		reliable BOOLEAN NOT NULL DEFAULT 0,
		conflicted BOOLEAN NOT NULL DEFAULT 0,
		conflict_score REAL NOT NULL DEFAULT 0,
		review_stars INTEGER NOT NULL DEFAULT 0,
		matches TEXT,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_change ON evaluations(run_id, gene, hgvs_c, hgvs_p);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON evaluation_runs(started_at);
`

// NewSQLiteStore opens (and creates, if needed) a SQLite results database.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite results path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return newStore(db, logger), nil
}
