package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

const (
	exportVersion     = "1.0"
	defaultListLimit  = 100
	maxExportLimit    = 1000000
	evaluationColumns = `run_id, seq, gene, variation_id, hgvs_c, hgvs_p, clinical_significance,
		evidence_codes, status, reliable, conflicted, conflict_score, review_stars, matches, created_at`
	runColumns = `id, "release", gene, targets, with_codes, started_at, finished_at`
)

// Store persists evaluation runs through sqlx, on SQLite or PostgreSQL.
type Store struct {
	db     *sqlx.DB
	driver string
	log    *logrus.Logger
}

// Open opens the store for driver ("sqlite" or "postgres").
func Open(cfg domain.ResultsConfig, logger *logrus.Logger) (*Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DSN, logger)
	case "postgres":
		return NewPostgresStoreFromURL(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported results driver %q", cfg.Driver)
	}
}

func newStore(db *sqlx.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{db: db, driver: db.DriverName(), log: logger}
}

// SaveRun inserts or updates run. An empty ID is filled with a new UUID.
func (s *Store) SaveRun(ctx context.Context, run *domain.EvaluationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO evaluation_runs (` + runColumns + `)
		VALUES (:id, :release, :gene, :targets, :with_codes, :started_at, :finished_at)
		ON CONFLICT (id) DO UPDATE SET
			"release" = EXCLUDED."release",
			gene = EXCLUDED.gene,
			targets = EXCLUDED.targets,
			with_codes = EXCLUDED.with_codes,
			finished_at = EXCLUDED.finished_at`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// SaveEvaluations replaces the evaluations stored for runID, keeping input
// order.
func (s *Store) SaveEvaluations(ctx context.Context, runID string, evaluations []domain.Evaluation) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM evaluations WHERE run_id = ?`), runID); err != nil {
		return 0, fmt.Errorf("clearing evaluations of run %s: %w", runID, err)
	}

	query := `INSERT INTO evaluations (` + evaluationColumns + `) VALUES (
		:run_id, :seq, :gene, :variation_id, :hgvs_c, :hgvs_p, :clinical_significance,
		:evidence_codes, :status, :reliable, :conflicted, :conflict_score, :review_stars, :matches, :created_at)`

	for i, ev := range evaluations {
		if _, err := tx.NamedExecContext(ctx, query, NewEvaluationRow(runID, i, ev)); err != nil {
			return 0, fmt.Errorf("saving evaluation %d of run %s: %w", i, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing evaluations: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"evaluations": len(evaluations),
	}).Debug("Saved evaluations")
	return len(evaluations), nil
}

// GetRun returns one run, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.EvaluationRun, error) {
	var run domain.EvaluationRun
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT `+runColumns+` FROM evaluation_runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return &run, nil
}

// LatestRun returns the most recently started run, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context) (*domain.EvaluationRun, error) {
	var run domain.EvaluationRun
	err := s.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM evaluation_runs ORDER BY started_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest run: %w", err)
	}
	return &run, nil
}

// GetEvaluation looks up the evaluation of one change within a run.
func (s *Store) GetEvaluation(ctx context.Context, runID, gene, hgvsC, hgvsP string) (*domain.Evaluation, error) {
	var row EvaluationRow
	query := s.db.Rebind(`SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE run_id = ? AND gene = ? AND hgvs_c = ? AND hgvs_p = ?
		ORDER BY seq LIMIT 1`)

	err := s.db.GetContext(ctx, &row, query, runID, gene, hgvsC, hgvsP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation of %s %s %s: %w", gene, hgvsC, hgvsP, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting evaluation: %w", err)
	}
	ev := row.Evaluation()
	return &ev, nil
}

// ListEvaluations returns the evaluations of a run in input order.
func (s *Store) ListEvaluations(ctx context.Context, runID string, limit, offset int) ([]domain.Evaluation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []EvaluationRow
	query := s.db.Rebind(`SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`)

	if err := s.db.SelectContext(ctx, &rows, query, runID, limit, max(offset, 0)); err != nil {
		return nil, fmt.Errorf("listing evaluations of run %s: %w", runID, err)
	}

	out := make([]domain.Evaluation, len(rows))
	for i, r := range rows {
		out[i] = r.Evaluation()
	}
	return out, nil
}

// ExportJSON writes one run and all of its evaluations to w.
func (s *Store) ExportJSON(ctx context.Context, runID string, w io.Writer) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	evaluations, err := s.ListEvaluations(ctx, runID, maxExportLimit, 0)
	if err != nil {
		return err
	}

	export := &Export{
		Version:     exportVersion,
		ExportedAt:  time.Now().UTC(),
		Run:         run,
		Count:       len(evaluations),
		Evaluations: evaluations,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store's connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
