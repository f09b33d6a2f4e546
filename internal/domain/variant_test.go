package domain

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/guregu/null.v3"
)

func TestVariantRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  VariantRecord
		wantErr error
		anyErr  bool
	}{
		{
			name:   "minimal record",
			record: VariantRecord{GeneSymbol: "BRCA1"},
		},
		{
			name:    "missing gene",
			record:  VariantRecord{GeneSymbol: "  "},
			wantErr: ErrMissingGene,
		},
		{
			name: "codon without protein change",
			record: VariantRecord{
				GeneSymbol:    "TP53",
				CodonPosition: null.IntFrom(175),
			},
			anyErr: true,
		},
		{
			name: "invalid significance",
			record: VariantRecord{
				GeneSymbol:   "TP53",
				Significance: ClinicalSignificance("sort of bad"),
			},
			wantErr: ErrInvalidSignificance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.anyErr {
				if err == nil {
					t.Error("Expected validation error")
				}
				return
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVariantRecordCodonRange(t *testing.T) {
	v := VariantRecord{
		GeneSymbol:    "TP53",
		ProteinChange: null.StringFrom("p.Arg175His"),
		CodonPosition: null.IntFrom(MaxCodonPosition + 1),
	}
	if err := v.Validate(); err == nil {
		t.Error("Expected codon above ceiling to fail validation")
	}

	v.CodonPosition = null.IntFrom(175)
	if err := v.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if c, ok := v.Codon(); !ok || c != 175 {
		t.Errorf("Expected codon 175, got %d (%v)", c, ok)
	}
}

func TestSameUnderlyingChange(t *testing.T) {
	a := &VariantRecord{GeneSymbol: "BRCA1", NucleotideChange: null.StringFrom("c.68_69del")}
	b := &VariantRecord{GeneSymbol: "BRCA1", NucleotideChange: null.StringFrom("c.68_69del")}
	c := &VariantRecord{GeneSymbol: "BRCA2", NucleotideChange: null.StringFrom("c.68_69del")}
	d := &VariantRecord{GeneSymbol: "BRCA1"}

	if !a.SameUnderlyingChange(b) {
		t.Error("Expected identical gene and change to match")
	}
	if a.SameUnderlyingChange(c) {
		t.Error("Different genes must not match")
	}
	if a.SameUnderlyingChange(d) || d.SameUnderlyingChange(d) {
		t.Error("Records without a nucleotide change never match")
	}
}

func TestIsSameRecord(t *testing.T) {
	a := &VariantRecord{VariationID: 12345, GeneSymbol: "BRCA1"}
	b := &VariantRecord{VariationID: 12345, GeneSymbol: "BRCA1"}
	x := &VariantRecord{GeneSymbol: "BRCA1"}
	y := &VariantRecord{GeneSymbol: "BRCA1"}

	if !a.IsSameRecord(a) || !a.IsSameRecord(b) {
		t.Error("Expected pointer and variation ID identity")
	}
	if x.IsSameRecord(y) {
		t.Error("Zero variation IDs must not be treated as identical")
	}
	if a.IsSameRecord(nil) {
		t.Error("nil is never the same record")
	}
}

func TestSetEvidenceWriteOnce(t *testing.T) {
	v := &VariantRecord{GeneSymbol: "BRCA1"}
	codes := []EvidenceCode{PS1, PP5}

	if err := v.SetEvidence(codes); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	codes[0] = BP6
	if v.EvidenceCodes[0] != PS1 {
		t.Error("SetEvidence must copy its input")
	}
	if !v.EvidenceAssigned() {
		t.Error("Expected evidence to be marked assigned")
	}
	if err := v.SetEvidence(nil); !errors.Is(err, ErrEvidenceAlreadySet) {
		t.Errorf("Expected ErrEvidenceAlreadySet, got %v", err)
	}
}

func TestReleaseTag(t *testing.T) {
	r := Release{Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)}
	if r.Tag() != "20240507" {
		t.Errorf("Expected 20240507, got %s", r.Tag())
	}
	if (Release{}).Tag() != "" {
		t.Error("Expected empty tag for zero release")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		sig        ClinicalSignificance
		conflicted bool
		want       string
	}{
		{UNCERTAIN_SIGNIFICANCE, false, StatusUncertain},
		{CONFLICTING, false, StatusConflicting},
		{PATHOGENIC, true, StatusConflicting},
		{PATHOGENIC, false, ""},
		{LIKELY_BENIGN, false, ""},
		{NOT_PROVIDED, false, StatusUnclassified},
		{OTHER_SIGNIFICANCE, false, StatusUnclassified},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.sig, tt.conflicted); got != tt.want {
			t.Errorf("StatusFor(%s, %v) = %q, want %q", tt.sig, tt.conflicted, got, tt.want)
		}
	}
}

func TestEvaluationHas(t *testing.T) {
	e := Evaluation{Codes: []EvidenceCode{PM5, BP6}}
	if !e.Has(PM5) || e.Has(PS1) {
		t.Error("Unexpected Has result")
	}
	got := e.CodeStrings()
	if len(got) != 2 || got[0] != "PM5" || got[1] != "BP6" {
		t.Errorf("Unexpected code strings %v", got)
	}
}
