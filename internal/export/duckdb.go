package export

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/iliaanaa/genekor/internal/domain"
)

// DuckDBStore keeps evaluations in a DuckDB table for ad-hoc analysis.
type DuckDBStore struct {
	db   *sql.DB
	path string
}

// OpenDuckDB opens or creates a DuckDB database at path. An empty path opens
// an in-memory database.
func OpenDuckDB(path string) (*DuckDBStore, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &DuckDBStore{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct queries.
func (s *DuckDBStore) DB() *sql.DB {
	return s.db
}

func (s *DuckDBStore) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS evaluations (
		release_tag VARCHAR,
		gene VARCHAR,
		variation_id BIGINT,
		transcript_id VARCHAR,
		hgvs_c VARCHAR,
		hgvs_p VARCHAR,
		clinical_significance VARCHAR,
		status VARCHAR,
		evidence_codes VARCHAR,
		ps1 BOOLEAN,
		pm5 BOOLEAN,
		pp5 BOOLEAN,
		bp6 BOOLEAN,
		reliable BOOLEAN,
		conflicted BOOLEAN,
		conflict_score DOUBLE,
		review_stars BIGINT,
		matches BIGINT,
		written_at TIMESTAMP
	)`)
	return err
}

// WriteEvaluations appends evaluations through the Appender API.
func (s *DuckDBStore) WriteEvaluations(ctx context.Context, release string, evaluations []domain.Evaluation) (int, error) {
	if len(evaluations) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "evaluations")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	now := time.Now().UTC()
	written := 0
	for _, ev := range evaluations {
		t := ev.Target
		if t == nil {
			continue
		}
		if err := appender.AppendRow(
			release, t.GeneSymbol, t.VariationID, t.TranscriptID.String,
			t.NucleotideChange.String, t.ProteinChange.String, t.Significance.String(),
			ev.Status, strings.Join(ev.CodeStrings(), ","),
			ev.Has(domain.PS1), ev.Has(domain.PM5), ev.Has(domain.PP5), ev.Has(domain.BP6),
			ev.Reliable, ev.Conflicted, ev.ConflictScore, int64(ev.Stars), int64(len(ev.Matches)),
			now,
		); err != nil {
			return written, fmt.Errorf("append evaluation: %w", err)
		}
		written++
	}

	if err := appender.Flush(); err != nil {
		return written, fmt.Errorf("flush appender: %w", err)
	}
	return written, nil
}

// CodeCounts returns how many stored evaluations of gene carry each code.
func (s *DuckDBStore) CodeCounts(ctx context.Context, gene string) (map[domain.EvidenceCode]int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		count(*) FILTER (WHERE ps1),
		count(*) FILTER (WHERE pm5),
		count(*) FILTER (WHERE pp5),
		count(*) FILTER (WHERE bp6)
		FROM evaluations WHERE gene = ?`, gene)

	var ps1, pm5, pp5, bp6 int
	if err := row.Scan(&ps1, &pm5, &pp5, &bp6); err != nil {
		return nil, fmt.Errorf("count codes: %w", err)
	}
	return map[domain.EvidenceCode]int{
		domain.PS1: ps1,
		domain.PM5: pm5,
		domain.PP5: pp5,
		domain.BP6: bp6,
	}, nil
}
