package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliaanaa/genekor/internal/domain"
)

func codes(ev domain.Evaluation) []domain.EvidenceCode {
	return ev.Codes
}

func TestEvaluate_PS1SameProteinDifferentNucleotide(t *testing.T) {
	ev := newTestEvaluator()
	ref := expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"))
	target := variant(t, 0, "BRCA1", "c.1510A>G", "p.Arg504Gly", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.Equal(t, []domain.EvidenceCode{domain.PS1}, codes(result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, domain.MatchExactProtein, result.Matches[0].Type)
	assert.Equal(t, int64(1), result.Matches[0].VariationID)
}

func TestEvaluate_PS1FromReferenceWithMinorityVote(t *testing.T) {
	ev := newTestEvaluator()
	ref := withSubmissions(withSubmitters(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"), 4, 2, 3),
		domain.PATHOGENIC, domain.PATHOGENIC, domain.PATHOGENIC, domain.LIKELY_PATHOGENIC)
	target := variant(t, 0, "BRCA1", "c.1510A>G", "p.Arg504Gly", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.Equal(t, []domain.EvidenceCode{domain.PS1}, codes(result))
}

func TestEvaluate_PM5SameCodonDifferentResidue(t *testing.T) {
	ev := newTestEvaluator()
	ref := expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"))
	target := variant(t, 0, "BRCA1", "c.999C>T", "p.Arg504Ser", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.Equal(t, []domain.EvidenceCode{domain.PM5}, codes(result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, domain.MatchCodon, result.Matches[0].Type)
}

func TestEvaluate_PP5FromReliableExactMatch(t *testing.T) {
	ev := newTestEvaluator()
	ref := withSubmitters(variant(t, 1, "BRCA1", "c.123G>A", "p.Trp41*", "Pathogenic"), 3, 2, 3)
	target := variant(t, 0, "BRCA1", "c.123G>A", "p.Trp41*", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.Equal(t, []domain.EvidenceCode{domain.PP5}, codes(result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, domain.MatchExactNucleotide, result.Matches[0].Type)
}

func TestEvaluate_BP6FromReliableExactMatch(t *testing.T) {
	ev := newTestEvaluator()
	ref := withSubmitters(variant(t, 1, "BRCA2", "c.7242A>G", "p.Ser2414=", "Benign"), 4, 2, 3)
	target := variant(t, 0, "BRCA2", "c.7242A>G", "p.Ser2414=", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.Equal(t, []domain.EvidenceCode{domain.BP6}, codes(result))
}

func TestEvaluate_NoIdentifyingFields(t *testing.T) {
	ev := newTestEvaluator()
	ref := expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"))
	target := &domain.VariantRecord{GeneSymbol: "BRCA1", OtherDescriptor: "GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1"}

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))

	assert.NotNil(t, result.Codes)
	assert.Empty(t, result.Codes)
	assert.Empty(t, result.Matches)
}

func TestEvaluate_NilInputs(t *testing.T) {
	ev := newTestEvaluator()
	target := variant(t, 0, "BRCA1", "c.1A>G", "", "")

	assert.Empty(t, ev.Evaluate(nil, ev.BuildIndex(nil)).Codes)
	assert.Empty(t, ev.Evaluate(target, nil).Codes)
	assert.Empty(t, ev.Evaluate(target, ev.BuildIndex(nil)).Codes)
}

func TestEvaluate_ConflictedReferencesExcludedFromVote(t *testing.T) {
	ev := newTestEvaluator()
	conflictedA := withSubmissions(expertPanel(variant(t, 1, "MLH1", "c.100A>G", "", "Pathogenic")),
		domain.PATHOGENIC, domain.UNCERTAIN_SIGNIFICANCE)
	conflictedB := withSubmissions(expertPanel(variant(t, 2, "MLH1", "c.100A>G", "", "Pathogenic")),
		domain.PATHOGENIC, domain.BENIGN)
	benign := withSubmitters(variant(t, 3, "MLH1", "c.100A>G", "", "Likely benign"), 3, 2)
	target := variant(t, 0, "MLH1", "c.100A>G", "", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{conflictedA, conflictedB, benign}))

	assert.Equal(t, []domain.EvidenceCode{domain.BP6}, codes(result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, int64(3), result.Matches[0].VariationID)
}

func TestEvaluate_TieYieldsNeitherPP5NorBP6(t *testing.T) {
	ev := newTestEvaluator()
	p := expertPanel(variant(t, 1, "MLH1", "c.100A>G", "", "Pathogenic"))
	b := expertPanel(variant(t, 2, "MLH1", "c.100A>G", "", "Benign"))
	target := variant(t, 0, "MLH1", "c.100A>G", "", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{p, b}))

	assert.Empty(t, result.Codes)
}

func TestEvaluate_TargetVotes(t *testing.T) {
	ev := newTestEvaluator()
	p := expertPanel(variant(t, 1, "MLH1", "c.100A>G", "", "Pathogenic"))
	b := expertPanel(variant(t, 2, "MLH1", "c.100A>G", "", "Benign"))
	target := variant(t, 3, "MLH1", "c.100A>G", "", "Likely benign")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{p, b, target}))

	assert.Equal(t, []domain.EvidenceCode{domain.BP6}, codes(result))
	require.Len(t, result.Matches, 1, "the target is a voter, not a match")
	assert.Equal(t, int64(2), result.Matches[0].VariationID)
}

func TestEvaluate_UnreliableVotesNeedReliableSupport(t *testing.T) {
	ev := newTestEvaluator()
	p := withSubmitters(variant(t, 1, "MLH1", "c.100A>G", "", "Pathogenic"), 1, 1)
	lp := withSubmitters(variant(t, 2, "MLH1", "c.100A>G", "", "Likely pathogenic"), 2, 2)
	target := variant(t, 0, "MLH1", "c.100A>G", "", "")

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{p, lp}))

	assert.Empty(t, result.Codes)
}

func TestEvaluate_ExactVoteIgnoresReliability(t *testing.T) {
	ev := newTestEvaluator()
	build := func(count int) []*domain.VariantRecord {
		return []*domain.VariantRecord{
			expertPanel(variant(t, 1, "MLH1", "c.100A>G", "", "Benign")),
			withSubmitters(variant(t, 2, "MLH1", "c.100A>G", "", "Pathogenic"), count, 2),
			withSubmitters(variant(t, 3, "MLH1", "c.100A>G", "", "Likely benign"), 1, 1),
		}
	}

	t.Run("reference becomes reliable", func(t *testing.T) {
		target := variant(t, 0, "MLH1", "c.100A>G", "", "")
		for _, count := range []int{2, 3} {
			result := ev.Evaluate(target, ev.BuildIndex(build(count)))
			assert.Equal(t, []domain.EvidenceCode{domain.BP6}, codes(result), "submitters=%d", count)
		}
	})

	t.Run("target becomes reliable", func(t *testing.T) {
		for _, count := range []int{2, 3} {
			target := withSubmitters(variant(t, 9, "MLH1", "c.100A>G", "", "Pathogenic"), count, 2)
			records := build(1)
			result := ev.Evaluate(target, ev.BuildIndex(append(records, target)))
			assert.Empty(t, result.Codes, "submitters=%d", count)
		}
	})
}

func TestEvaluate_LonelyTargetGetsNoExactEvidence(t *testing.T) {
	ev := newTestEvaluator()
	target := expertPanel(variant(t, 1, "MLH1", "c.100A>G", "", "Pathogenic"))

	result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{target}))

	assert.Empty(t, result.Codes)
	assert.True(t, result.Reliable)
}

func TestEvaluate_PS1Requirements(t *testing.T) {
	tests := []struct {
		name string
		ref  func(t *testing.T) *domain.VariantRecord
	}{
		{"same nucleotide change", func(t *testing.T) *domain.VariantRecord {
			return expertPanel(variant(t, 1, "BRCA1", "c.1510A>G", "p.Arg504Gly", "Pathogenic"))
		}},
		{"benign reference", func(t *testing.T) *domain.VariantRecord {
			return expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Benign"))
		}},
		{"unreliable reference", func(t *testing.T) *domain.VariantRecord {
			return withSubmitters(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"), 1, 2)
		}},
		{"non-missense reference", func(t *testing.T) *domain.VariantRecord {
			rec := expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic"))
			rec.Consequence = domain.ConsequenceOther
			return rec
		}},
		{"other gene", func(t *testing.T) *domain.VariantRecord {
			return expertPanel(variant(t, 1, "BRCA2", "c.1510A>T", "p.Arg504Gly", "Pathogenic"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newTestEvaluator()
			target := variant(t, 0, "BRCA1", "c.1510A>G", "p.Arg504Gly", "")
			result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{tt.ref(t)}))
			assert.False(t, result.Has(domain.PS1))
		})
	}

	t.Run("likely pathogenic reference is enough", func(t *testing.T) {
		ev := newTestEvaluator()
		ref := expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Likely pathogenic"))
		target := variant(t, 0, "BRCA1", "c.1510A>G", "p.Arg504Gly", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref}))
		assert.True(t, result.Has(domain.PS1))
	})
}

func TestEvaluate_PM5Requirements(t *testing.T) {
	ref := func(t *testing.T, sig string) *domain.VariantRecord {
		return expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", sig))
	}

	t.Run("likely pathogenic neighbour rejected by default", func(t *testing.T) {
		ev := newTestEvaluator()
		target := variant(t, 0, "BRCA1", "c.1511G>C", "p.Arg504Pro", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref(t, "Likely pathogenic")}))
		assert.False(t, result.Has(domain.PM5))
	})

	t.Run("likely pathogenic neighbour accepted by policy", func(t *testing.T) {
		ev := NewEvaluator(NewReliabilityAssessor(DefaultReliabilityPolicy()),
			EvaluationPolicy{PM5AcceptLikelyPathogenic: true}, quietLogger())
		target := variant(t, 0, "BRCA1", "c.1511G>C", "p.Arg504Pro", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref(t, "Likely pathogenic")}))
		assert.True(t, result.Has(domain.PM5))
	})

	t.Run("nonsense target qualifies", func(t *testing.T) {
		ev := newTestEvaluator()
		target := variant(t, 0, "BRCA1", "c.1510A>T", "p.Arg504*", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref(t, "Pathogenic")}))
		assert.True(t, result.Has(domain.PM5))
	})

	t.Run("frameshift target never qualifies", func(t *testing.T) {
		ev := newTestEvaluator()
		target := variant(t, 0, "BRCA1", "c.1510del", "p.Arg504fs", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref(t, "Pathogenic")}))
		assert.False(t, result.Has(domain.PM5))
	})

	t.Run("known protein change is not novel", func(t *testing.T) {
		ev := newTestEvaluator()
		known := variant(t, 2, "BRCA1", "c.1511G>C", "p.Arg504Pro", "Uncertain significance")
		target := variant(t, 0, "BRCA1", "c.1511G>C", "p.Arg504Pro", "")
		result := ev.Evaluate(target, ev.BuildIndex([]*domain.VariantRecord{ref(t, "Pathogenic"), known}))
		assert.False(t, result.Has(domain.PM5))
	})
}

func TestEvaluate_StatusLabels(t *testing.T) {
	ev := newTestEvaluator()
	idx := ev.BuildIndex(nil)

	vus := variant(t, 1, "BRCA1", "c.1A>G", "", "Uncertain significance")
	conflicting := variant(t, 2, "BRCA1", "c.2A>G", "", "Conflicting classifications of pathogenicity")
	unclassified := variant(t, 3, "BRCA1", "c.3A>G", "", "not provided")
	pathogenic := variant(t, 4, "BRCA1", "c.4A>G", "", "Pathogenic")

	assert.Equal(t, domain.StatusUncertain, ev.Evaluate(vus, idx).Status)
	assert.Equal(t, domain.StatusConflicting, ev.Evaluate(conflicting, idx).Status)
	assert.True(t, ev.Evaluate(conflicting, idx).Conflicted)
	assert.Equal(t, domain.StatusUnclassified, ev.Evaluate(unclassified, idx).Status)
	assert.Equal(t, "", ev.Evaluate(pathogenic, idx).Status)

	for _, r := range []*domain.VariantRecord{vus, conflicting, unclassified} {
		assert.Empty(t, ev.Evaluate(r, idx).Codes, "status text is never an evidence code")
	}
}

// cohort mixes every rule's positive and negative cases for property checks.
func cohort(t *testing.T) []*domain.VariantRecord {
	return []*domain.VariantRecord{
		expertPanel(variant(t, 1, "BRCA1", "c.1510A>T", "p.Arg504Gly", "Pathogenic")),
		withSubmitters(variant(t, 2, "BRCA1", "c.1510A>G", "p.Arg504Gly", "Likely pathogenic"), 3, 2, 3),
		withSubmitters(variant(t, 3, "BRCA1", "c.1511G>C", "p.Arg504Pro", "Uncertain significance"), 1, 1),
		withSubmitters(variant(t, 4, "BRCA1", "c.123G>A", "p.Trp41*", "Pathogenic"), 3, 2, 3),
		withSubmitters(variant(t, 5, "BRCA1", "c.123G>A", "p.Trp41*", "Benign"), 2, 2),
		expertPanel(variant(t, 6, "BRCA1", "c.300C>T", "p.Leu100=", "Benign")),
		withSubmissions(expertPanel(variant(t, 7, "BRCA1", "c.300C>T", "p.Leu100=", "Pathogenic")),
			domain.PATHOGENIC, domain.BENIGN),
		variant(t, 8, "BRCA1", "c.400+1G>A", "", "Pathogenic"),
		withSubmitters(variant(t, 9, "BRCA1", "c.400+1G>A", "", "Pathogenic"), 5, 3),
		expertPanel(variant(t, 10, "BRCA1", "c.500A>C", "p.Lys167Thr", "Pathogenic")),
		variant(t, 11, "BRCA1", "c.501G>T", "p.Lys167Asn", ""),
		withSubmitters(variant(t, 12, "BRCA1", "c.123G>A", "p.Trp41*", "Likely pathogenic"), 1, 1),
	}
}

func targets(t *testing.T) []*domain.VariantRecord {
	return []*domain.VariantRecord{
		variant(t, 0, "BRCA1", "c.1510A>C", "p.Arg504Gly", ""),
		variant(t, 0, "BRCA1", "c.1512A>T", "p.Arg504Ser", ""),
		variant(t, 0, "BRCA1", "c.123G>A", "p.Trp41*", ""),
		variant(t, 0, "BRCA1", "c.300C>T", "p.Leu100=", ""),
		variant(t, 0, "BRCA1", "c.400+1G>A", "", ""),
		variant(t, 0, "BRCA1", "c.502A>G", "p.Lys167Glu", ""),
		variant(t, 0, "BRCA1", "c.900A>G", "", ""),
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	ev := newTestEvaluator()
	idx := ev.BuildIndex(cohort(t))

	for _, target := range append(targets(t), cohort(t)...) {
		first := ev.Evaluate(target, idx)
		for i := 0; i < 5; i++ {
			again := ev.Evaluate(target, idx)
			assert.Equal(t, first.Codes, again.Codes)
			assert.Equal(t, first.Matches, again.Matches)
		}
	}
}

func TestEvaluate_Properties(t *testing.T) {
	ev := newTestEvaluator()
	records := cohort(t)
	idx := ev.BuildIndex(records)

	for _, target := range append(targets(t), records...) {
		result := ev.Evaluate(target, idx)

		assert.False(t, result.Has(domain.PP5) && result.Has(domain.BP6), "PP5 and BP6 together for %s", target.Key())

		for _, m := range result.Matches {
			switch m.Code {
			case domain.PS1:
				assert.Equal(t, target.ProteinChange.String, m.ProteinChange)
				assert.NotEqual(t, target.NucleotideChange.String, m.NucleotideChange)
			case domain.PM5:
				assert.NotEqual(t, target.ProteinChange.String, m.ProteinChange)
			case domain.PP5, domain.BP6:
				assert.Equal(t, target.NucleotideChange.String, m.NucleotideChange)
			}
			assert.NotEqual(t, target.VariationID, m.VariationID, "a record never supports itself")
		}
	}
}

func TestEvaluate_ExpectedCohortCodes(t *testing.T) {
	ev := newTestEvaluator()
	idx := ev.BuildIndex(cohort(t))
	ts := targets(t)

	expected := [][]domain.EvidenceCode{
		{domain.PS1},
		{domain.PM5},
		{domain.PP5},
		{domain.BP6},
		{domain.PP5},
		{domain.PM5},
		{},
	}

	for i, target := range ts {
		assert.Equal(t, expected[i], ev.Evaluate(target, idx).Codes, "target %s", target.Key())
	}
}

func TestEvaluate_ReliabilityMonotonic(t *testing.T) {
	ev := newTestEvaluator()

	for _, target := range targets(t) {
		for count := 0; count < 3; count++ {
			low := cohort(t)
			high := cohort(t)
			for i := range low {
				if low[i].ReviewStatus != "" {
					continue
				}
				low[i].SubmitterCount = count
				high[i].SubmitterCount = 3
			}

			lowCodes := ev.Evaluate(target, ev.BuildIndex(low)).Codes
			highCodes := ev.Evaluate(target, ev.BuildIndex(high)).Codes
			for _, c := range lowCodes {
				assert.Contains(t, highCodes, c, "raising submitters dropped %s for %s", c, target.Key())
			}
		}
	}
}

func TestEvaluate_PS1AndPM5MonotonicInAnyCohort(t *testing.T) {
	ev := newTestEvaluator()

	for _, target := range targets(t) {
		low := cohort(t)
		high := cohort(t)
		for i := range low {
			if low[i].ReviewStatus == "" {
				low[i].SubmitterCount = 1
				high[i].SubmitterCount = 3
			}
		}

		lowResult := ev.Evaluate(target, ev.BuildIndex(low))
		highResult := ev.Evaluate(target, ev.BuildIndex(high))
		for _, c := range []domain.EvidenceCode{domain.PS1, domain.PM5} {
			if lowResult.Has(c) {
				assert.True(t, highResult.Has(c), "raising submitters dropped %s for %s", c, target.Key())
			}
		}
	}
}

func TestEvaluateCohort(t *testing.T) {
	ev := newTestEvaluator()
	records := cohort(t)

	results := ev.EvaluateCohort(records)
	require.Len(t, results, len(records))

	for i, rec := range records {
		assert.True(t, rec.EvidenceAssigned())
		assert.Equal(t, results[i].Codes, rec.EvidenceCodes)
	}

	// a second pass must not overwrite assigned evidence
	again := ev.EvaluateCohort(records)
	require.Len(t, again, len(records))
}
