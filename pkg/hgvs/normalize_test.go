package hgvs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliaanaa/genekor/internal/domain"
)

func TestNewVariantRecordFromName(t *testing.T) {
	raw := domain.RawVariant{
		VariationID:         12375,
		GeneSymbol:          " TP53 ",
		Name:                "NM_000546.6(TP53):c.524G>A (p.Arg175His)",
		SignificanceText:    "Pathogenic",
		ReviewStatus:        "reviewed by expert panel",
		SubmitterCount:      12,
		SubmitterCategories: []int{2, 3},
		LastEvaluated:       time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	rec, err := NewVariantRecord(raw)
	require.NoError(t, err)

	assert.Equal(t, "TP53", rec.GeneSymbol)
	assert.Equal(t, "c.524G>A", rec.NucleotideChange.String)
	assert.Equal(t, "p.Arg175His", rec.ProteinChange.String)
	assert.Equal(t, "NM_000546.6", rec.TranscriptID.String)
	assert.Equal(t, int64(175), rec.CodonPosition.Int64)
	assert.True(t, rec.CodonPosition.Valid)
	assert.Equal(t, domain.ConsequenceMissense, rec.Consequence)
	assert.Equal(t, domain.PATHOGENIC, rec.Significance)
	assert.True(t, rec.LastEvaluated.Valid)
}

func TestNewVariantRecordExplicitColumnsWin(t *testing.T) {
	rec, err := NewVariantRecord(domain.RawVariant{
		GeneSymbol:       "BRCA1",
		Name:             "NM_007294.4(BRCA1):c.68_69del (p.Glu23fs)",
		NucleotideChange: "c.70A>G",
		ProteinChange:    "p.Lys24Glu",
	})
	require.NoError(t, err)

	assert.Equal(t, "c.70A>G", rec.NucleotideChange.String)
	assert.Equal(t, "p.Lys24Glu", rec.ProteinChange.String)
	assert.Equal(t, "NM_007294.4", rec.TranscriptID.String)
	assert.Equal(t, domain.ConsequenceMissense, rec.Consequence)
}

func TestNewVariantRecordConsequenceLabel(t *testing.T) {
	rec, err := NewVariantRecord(domain.RawVariant{
		GeneSymbol:       "BRCA1",
		NucleotideChange: "c.100A>G",
		ConsequenceLabel: "missense_variant",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConsequenceMissense, rec.Consequence)

	rec, err = NewVariantRecord(domain.RawVariant{
		GeneSymbol:       "BRCA1",
		NucleotideChange: "c.100A>G",
		ConsequenceLabel: "not a real label",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConsequenceUnknown, rec.Consequence)
}

func TestNewVariantRecordDegradesMalformedData(t *testing.T) {
	rec, err := NewVariantRecord(domain.RawVariant{
		GeneSymbol:          "BRCA2",
		ProteinChange:       "p.Arg99999His",
		SubmitterCount:      -4,
		SubmitterCategories: []int{-1, 0, 2},
	})
	require.NoError(t, err)

	assert.False(t, rec.CodonPosition.Valid)
	assert.Equal(t, 0, rec.SubmitterCount)
	assert.Equal(t, []int{2}, rec.SubmitterCategories)
	assert.Equal(t, domain.NOT_PROVIDED, rec.Significance)
}

func TestNewVariantRecordUnparsedName(t *testing.T) {
	rec, err := NewVariantRecord(domain.RawVariant{
		GeneSymbol: "BRCA1",
		Name:       "GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1",
	})
	require.NoError(t, err)

	assert.False(t, rec.HasNucleotideChange())
	assert.False(t, rec.HasProteinChange())
	assert.Equal(t, "GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1", rec.OtherDescriptor)
	assert.Equal(t, domain.ConsequenceUnknown, rec.Consequence)
}

func TestNewVariantRecordMissingGene(t *testing.T) {
	_, err := NewVariantRecord(domain.RawVariant{VariationID: 7, Name: "c.1A>G"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingGene))
}
