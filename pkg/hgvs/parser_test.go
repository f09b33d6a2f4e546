package hgvs

import (
	"testing"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected NameParts
	}{
		{
			name:  "missense with transcript",
			input: "NM_000546.6(TP53):c.524G>A (p.Arg175His)",
			expected: NameParts{
				NucleotideChange: "c.524G>A",
				ProteinChange:    "p.Arg175His",
				TranscriptID:     "NM_000546.6",
				Gene:             "TP53",
				CodonPosition:    175,
				HasCodon:         true,
			},
		},
		{
			name:  "frameshift deletion",
			input: "NM_007294.4(BRCA1):c.68_69del (p.Glu23fs)",
			expected: NameParts{
				NucleotideChange: "c.68_69del",
				ProteinChange:    "p.Glu23fs",
				TranscriptID:     "NM_007294.4",
				Gene:             "BRCA1",
				CodonPosition:    23,
				HasCodon:         true,
			},
		},
		{
			name:  "nonsense with star",
			input: "NM_007294.4(BRCA1):c.123G>A (p.Trp41*)",
			expected: NameParts{
				NucleotideChange: "c.123G>A",
				ProteinChange:    "p.Trp41*",
				TranscriptID:     "NM_007294.4",
				Gene:             "BRCA1",
				CodonPosition:    41,
				HasCodon:         true,
			},
		},
		{
			name:  "three prime UTR numbering",
			input: "NM_000059.4(BRCA2):c.*105A>G",
			expected: NameParts{
				NucleotideChange: "c.*105A>G",
				TranscriptID:     "NM_000059.4",
				Gene:             "BRCA2",
			},
		},
		{
			name:  "intronic without protein",
			input: "NM_000546.6(TP53):c.375+1G>A",
			expected: NameParts{
				NucleotideChange: "c.375+1G>A",
				TranscriptID:     "NM_000546.6",
				Gene:             "TP53",
			},
		},
		{
			name:  "in-frame deletion has no codon",
			input: "NM_000492.4(CFTR):c.1521_1523del (p.Phe508del)",
			expected: NameParts{
				NucleotideChange: "c.1521_1523del",
				ProteinChange:    "p.Phe508del",
				TranscriptID:     "NM_000492.4",
				Gene:             "CFTR",
			},
		},
		{
			name:  "transcript glued to a word is ignored",
			input: "XNM_000546.6(TP53):c.1A>G",
			expected: NameParts{
				NucleotideChange: "c.1A>G",
			},
		},
		{
			name:  "codon above ceiling is discarded",
			input: "p.Arg99999His",
			expected: NameParts{
				ProteinChange: "p.Arg99999His",
			},
		},
		{
			name:  "copy number description kept verbatim",
			input: "GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1",
			expected: NameParts{
				Other: "GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1",
			},
		},
		{
			name:     "empty name",
			input:    "   ",
			expected: NameParts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseName(tt.input)
			if got != tt.expected {
				t.Errorf("ParseName(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseNameIdempotent(t *testing.T) {
	names := []string{
		"NM_000546.6(TP53):c.524G>A (p.Arg175His)",
		"NM_007294.4(BRCA1):c.68_69del (p.Glu23fs)",
		"NM_000059.4(BRCA2):c.*105A>G",
		"NM_000546.6(TP53):c.1A>G (p.Met1?)",
		"c.100-2A>G",
		"(p.Arg175=)",
		"GRCh38/hg38 17q21.31(chr17:43044295-43125483)x1",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			first := ParseName(name)
			second := ParseName(first.String())
			if first != second {
				t.Errorf("re-parsing %q changed fields: %+v != %+v", first.String(), first, second)
			}
		})
	}
}

func TestExtractCodon(t *testing.T) {
	tests := []struct {
		protein string
		pos     int
		ok      bool
	}{
		{"p.Arg175His", 175, true},
		{"p.Trp41*", 41, true},
		{"p.Arg213Ter", 213, true},
		{"p.Glu23fs", 23, true},
		{"p.Glu23GlyfsTer5", 23, true},
		{"p.Arg175=", 0, false},
		{"p.(Arg175His)", 175, true},
		{"p.Arg10000His", 10000, true},
		{"p.Arg10001His", 0, false},
		{"p.Arg0His", 0, false},
		{"p.?", 0, false},
		{"p.Phe508del", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.protein, func(t *testing.T) {
			pos, ok := ExtractCodon(tt.protein)
			if pos != tt.pos || ok != tt.ok {
				t.Errorf("ExtractCodon(%q) = (%d, %v), want (%d, %v)", tt.protein, pos, ok, tt.pos, tt.ok)
			}
		})
	}
}

func TestShortProtein(t *testing.T) {
	tests := map[string]string{
		"p.Arg175His": "p.R175H",
		"p.Trp41Ter":  "p.W41*",
		"p.Glu23fs":   "p.E23fs",
		"c.524G>A":    "c.524G>A",
	}
	for in, want := range tests {
		if got := ShortProtein(in); got != want {
			t.Errorf("ShortProtein(%q) = %q, want %q", in, got, want)
		}
	}
}
