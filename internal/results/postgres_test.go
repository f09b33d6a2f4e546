package results

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliaanaa/genekor/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS evaluation_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewPostgresStore(sqlx.NewDb(mockDB, "postgres"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil, quietLogger())
	assert.Error(t, err)
}

func TestPostgresStore_SaveRun(t *testing.T) {
	store, mock := newMockStore(t)

	run := &domain.EvaluationRun{ID: "run-1", Release: "20240507", Gene: "BRCA1", Targets: 2}
	mock.ExpectExec(`INSERT INTO evaluation_runs .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)\s+ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("run-1", "20240507", "BRCA1", 2, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveRun(context.Background(), run))
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEvaluations(t *testing.T) {
	store, mock := newMockStore(t)
	evaluations := sampleEvaluations()[:2]

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM evaluations WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO evaluations`).
		WithArgs("run-1", 0, "BRCA1", int64(101), "c.5123C>A", "p.Ala1708Glu", "uncertain_significance",
			"PS1", domain.StatusUncertain, false, false, 0.0, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO evaluations`).
		WithArgs("run-1", 1, "BRCA1", nil, "c.4837A>G", "p.Ser1613Gly", "benign",
			"BP6", "", true, false, 0.1, 2, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.SaveEvaluations(context.Background(), "run-1", evaluations)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEvaluationsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM evaluations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO evaluations`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.SaveEvaluations(context.Background(), "run-1", sampleEvaluations()[:1])
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestRun(t *testing.T) {
	store, mock := newMockStore(t)
	started := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "release", "gene", "targets", "with_codes", "started_at", "finished_at"}).
		AddRow("run-1", "20240507", "BRCA1", 3, 2, started, started.Add(time.Second))
	mock.ExpectQuery(`SELECT .* FROM evaluation_runs ORDER BY started_at DESC LIMIT 1`).WillReturnRows(rows)

	run, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 2, run.WithCodes)

	mock.ExpectQuery(`SELECT .* FROM evaluation_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = store.LatestRun(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEvaluation(t *testing.T) {
	store, mock := newMockStore(t)

	columns := []string{"run_id", "seq", "gene", "variation_id", "hgvs_c", "hgvs_p", "clinical_significance",
		"evidence_codes", "status", "reliable", "conflicted", "conflict_score", "review_stars", "matches", "created_at"}
	mock.ExpectQuery(`SELECT .* FROM evaluations\s+WHERE run_id = \$1 AND gene = \$2 AND hgvs_c = \$3 AND hgvs_p = \$4`).
		WithArgs("run-1", "BRCA1", "c.5123C>A", "p.Ala1708Glu").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"run-1", 0, "BRCA1", int64(101), "c.5123C>A", "p.Ala1708Glu", "uncertain_significance",
			"PS1,PM5", "", false, false, 0.0, 0, nil, time.Now()))

	ev, err := store.GetEvaluation(context.Background(), "run-1", "BRCA1", "c.5123C>A", "p.Ala1708Glu")
	require.NoError(t, err)
	assert.Equal(t, []domain.EvidenceCode{domain.PS1, domain.PM5}, ev.Codes)
	assert.Equal(t, int64(101), ev.Target.VariationID)
	assert.Equal(t, domain.UNCERTAIN_SIGNIFICANCE, ev.Target.Significance)
	assert.Empty(t, ev.Matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
