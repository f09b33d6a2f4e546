// Package export writes evaluation results as TSV, JSON or a DuckDB table.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/iliaanaa/genekor/internal/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatTSV    Format = "tsv"
	FormatJSON   Format = "json"
	FormatDuckDB Format = "duckdb"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTSV, FormatJSON, FormatDuckDB:
		return f, nil
	case "":
		return FormatTSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want tsv, json or duckdb)", s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to TSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".duckdb", ".db":
		return FormatDuckDB
	default:
		return FormatTSV
	}
}

// Row is one line of the TSV report.
type Row struct {
	Gene          string `csv:"gene"`
	TranscriptID  string `csv:"transcript_id"`
	HGVSc         string `csv:"hgvs_c"`
	HGVSp         string `csv:"hgvs_p"`
	VariationID   string `csv:"variation_id"`
	Significance  string `csv:"clinical_significance"`
	ReviewStatus  string `csv:"review_status"`
	Status        string `csv:"status"`
	EvidenceCodes string `csv:"evidence_codes"`
	MatchTypes    string `csv:"match_type"`
	Matched       string `csv:"matched_variants"`
	Reliable      bool   `csv:"reliable"`
	Conflicted    bool   `csv:"conflicted"`
	ConflictScore string `csv:"conflict_score"`
	ReviewStars   int    `csv:"review_stars"`
}

// NewRow flattens one evaluation.
func NewRow(ev domain.Evaluation) Row {
	row := Row{
		Status:        ev.Status,
		EvidenceCodes: strings.Join(ev.CodeStrings(), ","),
		Reliable:      ev.Reliable,
		Conflicted:    ev.Conflicted,
		ConflictScore: strconv.FormatFloat(ev.ConflictScore, 'f', 3, 64),
		ReviewStars:   ev.Stars,
	}
	if t := ev.Target; t != nil {
		row.Gene = t.GeneSymbol
		row.TranscriptID = t.TranscriptID.String
		row.HGVSc = t.NucleotideChange.String
		row.HGVSp = t.ProteinChange.String
		row.Significance = t.Significance.String()
		row.ReviewStatus = t.ReviewStatus
		if t.VariationID != 0 {
			row.VariationID = strconv.FormatInt(t.VariationID, 10)
		}
	}

	var types, matched []string
	seen := make(map[domain.MatchType]bool)
	for _, m := range ev.Matches {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, string(m.Type))
		}
		matched = append(matched, fmt.Sprintf("%s:%s", m.Code, matchLabel(m)))
	}
	row.MatchTypes = strings.Join(types, ",")
	row.Matched = strings.Join(matched, ";")
	return row
}

func matchLabel(m domain.Match) string {
	switch {
	case m.ProteinChange != "" && m.NucleotideChange != "":
		return m.NucleotideChange + " (" + m.ProteinChange + ")"
	case m.NucleotideChange != "":
		return m.NucleotideChange
	case m.ProteinChange != "":
		return m.ProteinChange
	default:
		return strconv.FormatInt(m.VariationID, 10)
	}
}

// WriteTSV writes a header line and one row per evaluation.
func WriteTSV(w io.Writer, evaluations []domain.Evaluation) error {
	rows := make([]Row, len(evaluations))
	for i, ev := range evaluations {
		rows[i] = NewRow(ev)
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("writing TSV: %w", err)
	}
	return nil
}

// Report is the JSON document written by WriteJSON.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Release     string              `json:"release,omitempty"`
	Count       int                 `json:"count"`
	Evaluations []domain.Evaluation `json:"evaluations"`
}

// WriteJSON writes an indented report.
func WriteJSON(w io.Writer, release string, evaluations []domain.Evaluation) error {
	if evaluations == nil {
		evaluations = []domain.Evaluation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{
		GeneratedAt: time.Now().UTC(),
		Release:     release,
		Count:       len(evaluations),
		Evaluations: evaluations,
	})
}

// WriteFile writes evaluations to path in format. DuckDB output appends to
// the evaluations table of the database at path.
func WriteFile(ctx context.Context, path string, format Format, release string, evaluations []domain.Evaluation) error {
	if format == FormatDuckDB {
		store, err := OpenDuckDB(path)
		if err != nil {
			return err
		}
		defer store.Close()
		_, err = store.WriteEvaluations(ctx, release, evaluations)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(f, release, evaluations)
	default:
		err = WriteTSV(f, evaluations)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Write streams evaluations to w. DuckDB needs a file and is rejected.
func Write(w io.Writer, format Format, release string, evaluations []domain.Evaluation) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, release, evaluations)
	case FormatTSV, "":
		return WriteTSV(w, evaluations)
	default:
		return fmt.Errorf("format %s requires an output file", format)
	}
}
