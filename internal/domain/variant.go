package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"
)

// MaxCodonPosition is the sanity ceiling for residue numbers. Larger values
// come from mis-parsed names and are treated as absent.
const MaxCodonPosition = 10000

// RawVariant is one variant row as handed over by an ingestion source, before
// any HGVS parsing or normalization.
type RawVariant struct {
	VariationID         int64
	GeneSymbol          string
	Name                string
	TranscriptID        string
	NucleotideChange    string
	ProteinChange       string
	ConsequenceLabel    string
	SignificanceText    string
	ReviewStatus        string
	SubmitterCount      int
	SubmitterCategories []int
	Assembly            string
	Chromosome          string
	RCVAccessions       []string
	PhenotypeList       string
	LastEvaluated       time.Time
}

// VariantRecord is the normalized representation of one variant and its
// classification metadata. Apart from EvidenceCodes, a record is not
// modified after it has been built.
type VariantRecord struct {
	VariationID      int64                `json:"variation_id,omitempty"`
	GeneSymbol       string               `json:"gene_symbol"`
	TranscriptID     null.String          `json:"transcript_id"`
	NucleotideChange null.String          `json:"hgvs_c"`
	ProteinChange    null.String          `json:"hgvs_p"`
	CodonPosition    null.Int             `json:"codon_position"`
	OtherDescriptor  string               `json:"other_descriptor,omitempty"`
	Consequence      MolecularConsequence `json:"molecular_consequence"`
	Significance     ClinicalSignificance `json:"clinical_significance"`
	SignificanceText string               `json:"significance_text,omitempty"`
	ReviewStatus     string               `json:"review_status,omitempty"`
	SubmitterCount   int                  `json:"submitter_count"`

	SubmitterCategories     []int                  `json:"submitter_categories,omitempty"`
	SubmissionSignificances []ClinicalSignificance `json:"submission_significances,omitempty"`

	Assembly      string    `json:"assembly,omitempty"`
	Chromosome    string    `json:"chromosome,omitempty"`
	RCVAccessions []string  `json:"rcv_accessions,omitempty"`
	PhenotypeList string    `json:"phenotype_list,omitempty"`
	LastEvaluated null.Time `json:"last_evaluated"`

	EvidenceCodes []EvidenceCode `json:"evidence_codes"`
	evidenceSet   bool
}

// Validate checks the structural invariants of a built record.
func (v *VariantRecord) Validate() error {
	if strings.TrimSpace(v.GeneSymbol) == "" {
		return fmt.Errorf("variant validation: %w", ErrMissingGene)
	}
	if v.SubmitterCount < 0 {
		return fmt.Errorf("variant validation: %w", errors.New("submitter count must not be negative"))
	}
	if v.CodonPosition.Valid {
		if !v.ProteinChange.Valid {
			return fmt.Errorf("variant validation: %w", errors.New("codon position without protein change"))
		}
		if v.CodonPosition.Int64 <= 0 || v.CodonPosition.Int64 > MaxCodonPosition {
			return fmt.Errorf("variant validation: codon position %d out of range", v.CodonPosition.Int64)
		}
	}
	if v.Significance != "" && !v.Significance.IsValid() {
		return fmt.Errorf("variant validation: %w", ErrInvalidSignificance)
	}
	return nil
}

// HasNucleotideChange reports whether an HGVS.c change is present.
func (v *VariantRecord) HasNucleotideChange() bool {
	return v.NucleotideChange.Valid && v.NucleotideChange.String != ""
}

// HasProteinChange reports whether an HGVS.p change is present.
func (v *VariantRecord) HasProteinChange() bool {
	return v.ProteinChange.Valid && v.ProteinChange.String != ""
}

// Codon returns the residue number, if one was extracted.
func (v *VariantRecord) Codon() (int, bool) {
	if !v.CodonPosition.Valid {
		return 0, false
	}
	return int(v.CodonPosition.Int64), true
}

// SameUnderlyingChange reports whether two records describe the same DNA
// change: same gene and identical nucleotide change.
func (v *VariantRecord) SameUnderlyingChange(other *VariantRecord) bool {
	if other == nil || !v.HasNucleotideChange() || !other.HasNucleotideChange() {
		return false
	}
	return v.GeneSymbol == other.GeneSymbol && v.NucleotideChange.String == other.NucleotideChange.String
}

// IsSameRecord reports record identity: the same pointer, or the same
// non-zero ClinVar variation ID.
func (v *VariantRecord) IsSameRecord(other *VariantRecord) bool {
	if other == nil {
		return false
	}
	if v == other {
		return true
	}
	return v.VariationID != 0 && v.VariationID == other.VariationID
}

// SetEvidence assigns the evaluation output. It may be called once per record.
func (v *VariantRecord) SetEvidence(codes []EvidenceCode) error {
	if v.evidenceSet {
		return ErrEvidenceAlreadySet
	}
	v.EvidenceCodes = make([]EvidenceCode, len(codes))
	copy(v.EvidenceCodes, codes)
	v.evidenceSet = true
	return nil
}

// EvidenceAssigned reports whether SetEvidence has been called.
func (v *VariantRecord) EvidenceAssigned() bool {
	return v.evidenceSet
}

// Key identifies the change a record describes, for caches and logs.
func (v *VariantRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s", v.GeneSymbol, v.NucleotideChange.String, v.ProteinChange.String)
}

// LogFields returns structured logging fields.
func (v *VariantRecord) LogFields() map[string]any {
	return map[string]any{
		"variation_id": v.VariationID,
		"gene":         v.GeneSymbol,
		"hgvs_c":       v.NucleotideChange.String,
		"hgvs_p":       v.ProteinChange.String,
		"significance": v.Significance.String(),
		"consequence":  v.Consequence.String(),
	}
}

// Submission is one SCV row from submission_summary.
type Submission struct {
	SCV               string               `json:"scv" db:"scv"`
	VariationID       int64                `json:"variation_id" db:"variation_id"`
	Significance      ClinicalSignificance `json:"clinical_significance" db:"clinical_significance"`
	SignificanceText  string               `json:"significance_text" db:"significance_text"`
	ReviewStatus      string               `json:"review_status" db:"review_status"`
	CollectionMethod  string               `json:"collection_method" db:"collection_method"`
	Submitter         string               `json:"submitter" db:"submitter"`
	SubmittedGene     string               `json:"submitted_gene_symbol" db:"submitted_gene_symbol"`
	DateLastEvaluated null.Time            `json:"date_last_evaluated" db:"date_last_evaluated"`
}

// Release identifies one monthly ClinVar data release.
type Release struct {
	Date         time.Time `json:"release_date"`
	Version      string    `json:"version"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
}

// Tag renders the release as YYYYMMDD, the form used in ClinVar's README.
func (r Release) Tag() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("20060102")
}
