// Package results stores evaluation runs so that finished evaluations can be
// listed, re-read and exported without re-running them.
package results

import (
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/iliaanaa/genekor/internal/domain"
)

// EvaluationRow is the stored form of one evaluation.
type EvaluationRow struct {
	RunID         string      `db:"run_id" json:"run_id"`
	Seq           int         `db:"seq" json:"seq"`
	Gene          string      `db:"gene" json:"gene"`
	VariationID   null.Int    `db:"variation_id" json:"variation_id"`
	HGVSc         string      `db:"hgvs_c" json:"hgvs_c"`
	HGVSp         string      `db:"hgvs_p" json:"hgvs_p"`
	Significance  string      `db:"clinical_significance" json:"clinical_significance"`
	EvidenceCodes string      `db:"evidence_codes" json:"evidence_codes"`
	Status        string      `db:"status" json:"status"`
	Reliable      bool        `db:"reliable" json:"reliable"`
	Conflicted    bool        `db:"conflicted" json:"conflicted"`
	ConflictScore float64     `db:"conflict_score" json:"conflict_score"`
	ReviewStars   int         `db:"review_stars" json:"review_stars"`
	Matches       null.String `db:"matches" json:"-"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// NewEvaluationRow flattens ev for storage.
func NewEvaluationRow(runID string, seq int, ev domain.Evaluation) EvaluationRow {
	row := EvaluationRow{
		RunID:         runID,
		Seq:           seq,
		EvidenceCodes: strings.Join(ev.CodeStrings(), ","),
		Status:        ev.Status,
		Reliable:      ev.Reliable,
		Conflicted:    ev.Conflicted,
		ConflictScore: ev.ConflictScore,
		ReviewStars:   ev.Stars,
		CreatedAt:     time.Now().UTC(),
	}
	if t := ev.Target; t != nil {
		row.Gene = t.GeneSymbol
		row.VariationID = null.NewInt(t.VariationID, t.VariationID != 0)
		row.HGVSc = t.NucleotideChange.String
		row.HGVSp = t.ProteinChange.String
		row.Significance = t.Significance.String()
	}
	if len(ev.Matches) > 0 {
		if data, err := json.Marshal(ev.Matches); err == nil {
			row.Matches = null.StringFrom(string(data))
		}
	}
	return row
}

// Codes splits the stored code list.
func (r EvaluationRow) Codes() []domain.EvidenceCode {
	codes := []domain.EvidenceCode{}
	for _, s := range strings.Split(r.EvidenceCodes, ",") {
		if code, err := domain.ParseEvidenceCode(s); err == nil {
			codes = append(codes, code)
		}
	}
	return codes
}

// Evaluation rebuilds the evaluation. The target carries only the
// identifying fields that were stored.
func (r EvaluationRow) Evaluation() domain.Evaluation {
	target := &domain.VariantRecord{
		VariationID:      r.VariationID.Int64,
		GeneSymbol:       r.Gene,
		NucleotideChange: null.NewString(r.HGVSc, r.HGVSc != ""),
		ProteinChange:    null.NewString(r.HGVSp, r.HGVSp != ""),
		Significance:     domain.ClinicalSignificance(r.Significance),
	}
	ev := domain.Evaluation{
		Target:        target,
		Codes:         r.Codes(),
		Conflicted:    r.Conflicted,
		Reliable:      r.Reliable,
		ConflictScore: r.ConflictScore,
		Stars:         r.ReviewStars,
		Status:        r.Status,
	}
	if r.Matches.Valid {
		_ = json.Unmarshal([]byte(r.Matches.String), &ev.Matches)
	}
	return ev
}

// Export is the JSON export format of one run.
type Export struct {
	Version     string                `json:"version"`
	ExportedAt  time.Time             `json:"exported_at"`
	Run         *domain.EvaluationRun `json:"run"`
	Count       int                   `json:"count"`
	Evaluations []domain.Evaluation   `json:"evaluations"`
}
