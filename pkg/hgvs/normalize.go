package hgvs

import (
	"fmt"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/iliaanaa/genekor/internal/domain"
)

// NewVariantRecord builds a validated VariantRecord from a raw ingestion row.
//
// Explicit HGVS columns win over values parsed from the free-text name. An
// explicit consequence label is used when it is recognised; otherwise the
// consequence is derived from the HGVS text. Malformed numeric data degrades
// to absent or zero values. Only a missing gene symbol is an error.
func NewVariantRecord(raw domain.RawVariant) (*domain.VariantRecord, error) {
	gene := strings.TrimSpace(raw.GeneSymbol)
	if gene == "" {
		return nil, fmt.Errorf("building variant %d: %w", raw.VariationID, domain.ErrMissingGene)
	}

	parts := ParseName(raw.Name)
	c := firstNonEmpty(raw.NucleotideChange, parts.NucleotideChange)
	p := firstNonEmpty(raw.ProteinChange, parts.ProteinChange)
	transcript := firstNonEmpty(raw.TranscriptID, parts.TranscriptID)

	rec := &domain.VariantRecord{
		VariationID:      raw.VariationID,
		GeneSymbol:       gene,
		TranscriptID:     optional(transcript),
		NucleotideChange: optional(c),
		ProteinChange:    optional(p),
		Significance:     domain.NormalizeSignificance(raw.SignificanceText),
		SignificanceText: strings.TrimSpace(raw.SignificanceText),
		ReviewStatus:     strings.TrimSpace(raw.ReviewStatus),
		SubmitterCount:   raw.SubmitterCount,
		Assembly:         raw.Assembly,
		Chromosome:       raw.Chromosome,
		RCVAccessions:    raw.RCVAccessions,
		PhenotypeList:    raw.PhenotypeList,
		LastEvaluated:    null.NewTime(raw.LastEvaluated, !raw.LastEvaluated.IsZero()),
	}
	if rec.SubmitterCount < 0 {
		rec.SubmitterCount = 0
	}
	for _, cat := range raw.SubmitterCategories {
		if cat > 0 {
			rec.SubmitterCategories = append(rec.SubmitterCategories, cat)
		}
	}

	if p != "" {
		if pos, ok := ExtractCodon(p); ok {
			rec.CodonPosition = null.IntFrom(int64(pos))
		}
	}
	if c == "" && p == "" {
		rec.OtherDescriptor = parts.Other
	}

	rec.Consequence = DeriveConsequence(c, p)
	if label, ok := ParseConsequenceLabel(raw.ConsequenceLabel); ok && label != domain.ConsequenceOther {
		rec.Consequence = label
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("building variant %d: %w", raw.VariationID, err)
	}
	return rec, nil
}

func optional(s string) null.String {
	return null.NewString(s, s != "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
