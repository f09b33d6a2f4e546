package domain

import "time"

// MatchType describes how a reference record relates to the target.
type MatchType string

const (
	MatchExactNucleotide MatchType = "exact nucleotide"
	MatchExactProtein    MatchType = "exact protein"
	MatchCodon           MatchType = "codon match"
)

// Match is a reference record that supported one evidence code.
type Match struct {
	Code             EvidenceCode         `json:"code"`
	Type             MatchType            `json:"match_type"`
	VariationID      int64                `json:"variation_id,omitempty"`
	NucleotideChange string               `json:"hgvs_c,omitempty"`
	ProteinChange    string               `json:"hgvs_p,omitempty"`
	Significance     ClinicalSignificance `json:"clinical_significance"`
	ReviewStatus     string               `json:"review_status,omitempty"`
}

// Evaluation is the outcome of evaluating one target variant.
type Evaluation struct {
	Target        *VariantRecord `json:"target"`
	Codes         []EvidenceCode `json:"evidence_codes"`
	Conflicted    bool           `json:"conflicted"`
	Reliable      bool           `json:"reliable"`
	ConflictScore float64        `json:"conflict_score"`
	Stars         int            `json:"review_stars"`
	Status        string         `json:"status,omitempty"`
	Matches       []Match        `json:"matches,omitempty"`
}

// Has reports whether code was emitted.
func (e Evaluation) Has(code EvidenceCode) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// CodeStrings returns the evidence codes as plain strings.
func (e Evaluation) CodeStrings() []string {
	out := make([]string, len(e.Codes))
	for i, c := range e.Codes {
		out[i] = c.String()
	}
	return out
}

// StatusFor returns the descriptive label for a target's own significance.
// Definitive pathogenic or benign classifications carry no label.
func StatusFor(s ClinicalSignificance, conflicted bool) string {
	switch {
	case conflicted || s == CONFLICTING:
		return StatusConflicting
	case s == UNCERTAIN_SIGNIFICANCE:
		return StatusUncertain
	case s.IsPathogenicLeaning() || s.IsBenignLeaning():
		return ""
	default:
		return StatusUnclassified
	}
}

// EvaluationRun groups the evaluations produced in one batch.
type EvaluationRun struct {
	ID         string    `json:"id" db:"id"`
	Release    string    `json:"release" db:"release"`
	Gene       string    `json:"gene" db:"gene"`
	Targets    int       `json:"targets" db:"targets"`
	WithCodes  int       `json:"with_codes" db:"with_codes"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}
