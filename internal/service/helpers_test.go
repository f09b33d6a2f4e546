package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/pkg/hgvs"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// variant builds a record through the normal ingestion path.
func variant(t *testing.T, id int64, gene, c, p, significance string) *domain.VariantRecord {
	t.Helper()
	rec, err := hgvs.NewVariantRecord(domain.RawVariant{
		VariationID:      id,
		GeneSymbol:       gene,
		NucleotideChange: c,
		ProteinChange:    p,
		SignificanceText: significance,
	})
	require.NoError(t, err)
	return rec
}

func withSubmitters(rec *domain.VariantRecord, count int, categories ...int) *domain.VariantRecord {
	rec.SubmitterCount = count
	rec.SubmitterCategories = categories
	return rec
}

func expertPanel(rec *domain.VariantRecord) *domain.VariantRecord {
	rec.ReviewStatus = "reviewed by expert panel"
	return rec
}

func withSubmissions(rec *domain.VariantRecord, sigs ...domain.ClinicalSignificance) *domain.VariantRecord {
	rec.SubmissionSignificances = sigs
	return rec
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(NewReliabilityAssessor(DefaultReliabilityPolicy()), EvaluationPolicy{}, quietLogger())
}
