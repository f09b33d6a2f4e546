// Package hgvs extracts structured HGVS fields from ClinVar variant names and
// derives molecular consequences from them.
//
// Parsing is best effort and total: a name that does not contain a token simply
// leaves the corresponding field empty.
package hgvs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iliaanaa/genekor/internal/domain"
)

var (
	// Coding change without UTR star numbering: c.524G>A, c.68_69del, c.-12C>T
	nucleotidePattern = regexp.MustCompile(`c\.[^\s*]+`)

	// 3' UTR numbering, tried only when the plain pattern fails: c.*103_*106del
	nucleotideStarPattern = regexp.MustCompile(`c\.\*[\d_]+[^\s)]*`)

	// Protein change, terminated by whitespace or a closing parenthesis
	proteinPattern = regexp.MustCompile(`p\.[^\s)]+`)

	// RefSeq mRNA transcript directly followed by the parenthesised gene
	transcriptPattern = regexp.MustCompile(`NM_\d{5,}(?:\.\d{1,2})?\(`)

	// Residue number: three-letter residue, digits, then residue, stop or fs
	codonPattern = regexp.MustCompile(`[A-Z][a-z]{2}(\d+)(?:[A-Z][a-z]{2}|\*|fs)`)

	// Three-letter to one-letter amino acid codes
	aminoAcidCodes = map[string]string{
		"Ala": "A", "Arg": "R", "Asn": "N", "Asp": "D", "Cys": "C",
		"Gln": "Q", "Glu": "E", "Gly": "G", "His": "H", "Ile": "I",
		"Leu": "L", "Lys": "K", "Met": "M", "Phe": "F", "Pro": "P",
		"Ser": "S", "Thr": "T", "Trp": "W", "Tyr": "Y", "Val": "V",
		"Sec": "U", "Pyl": "O", "Ter": "*",
	}
)

// NameParts holds the fields extracted from one free-text variant name.
type NameParts struct {
	NucleotideChange string `json:"hgvs_c,omitempty"`
	ProteinChange    string `json:"hgvs_p,omitempty"`
	TranscriptID     string `json:"transcript_id,omitempty"`
	Gene             string `json:"gene,omitempty"`
	Other            string `json:"other,omitempty"`
	CodonPosition    int    `json:"codon_position,omitempty"`
	HasCodon         bool   `json:"-"`
}

// ParseName extracts the nucleotide change, protein change, transcript and
// codon position from a ClinVar style name such as
// "NM_000546.6(TP53):c.524G>A (p.Arg175His)".
func ParseName(name string) NameParts {
	var parts NameParts
	name = strings.TrimSpace(name)
	if name == "" {
		return parts
	}

	if m := nucleotidePattern.FindString(name); m != "" {
		parts.NucleotideChange = m
	} else if m := nucleotideStarPattern.FindString(name); m != "" {
		parts.NucleotideChange = m
	}

	parts.ProteinChange = proteinPattern.FindString(name)
	parts.TranscriptID, parts.Gene = findTranscript(name)

	if parts.ProteinChange != "" {
		parts.CodonPosition, parts.HasCodon = ExtractCodon(parts.ProteinChange)
	}

	if parts.NucleotideChange == "" && parts.ProteinChange == "" {
		parts.Other = name
	}
	return parts
}

// findTranscript returns the first NM_ accession that is not glued to a
// preceding word character, and the gene symbol in the parentheses after it.
func findTranscript(name string) (transcript, gene string) {
	for _, loc := range transcriptPattern.FindAllStringIndex(name, -1) {
		if loc[0] > 0 && isWordByte(name[loc[0]-1]) {
			continue
		}
		transcript = name[loc[0] : loc[1]-1]
		if end := strings.IndexByte(name[loc[1]:], ')'); end >= 0 {
			gene = name[loc[1] : loc[1]+end]
		}
		return transcript, gene
	}
	return "", ""
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ExtractCodon returns the residue number encoded in a protein change.
// Positions above domain.MaxCodonPosition, or not positive, are mis-parses and
// reported as absent.
func ExtractCodon(protein string) (int, bool) {
	m := codonPattern.FindStringSubmatch(protein)
	if m == nil {
		return 0, false
	}
	pos, err := strconv.Atoi(m[1])
	if err != nil || pos <= 0 || pos > domain.MaxCodonPosition {
		return 0, false
	}
	return pos, true
}

// String renders the parts as a canonical ClinVar style name. Parsing the
// result yields the same fields again.
func (p NameParts) String() string {
	if p.NucleotideChange == "" && p.ProteinChange == "" {
		return p.Other
	}

	var b strings.Builder
	if p.TranscriptID != "" {
		b.WriteString(p.TranscriptID)
		b.WriteString("(")
		b.WriteString(p.Gene)
		b.WriteString(")")
	}
	if p.NucleotideChange != "" {
		if b.Len() > 0 {
			b.WriteString(":")
		}
		b.WriteString(p.NucleotideChange)
	}
	if p.ProteinChange != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(")
		b.WriteString(p.ProteinChange)
		b.WriteString(")")
	}
	return b.String()
}

// ShortProtein converts a three-letter protein change to its one-letter form,
// e.g. p.Arg175His to p.R175H. Unknown residues are left as they are.
func ShortProtein(protein string) string {
	if !strings.HasPrefix(protein, "p.") {
		return protein
	}
	body := protein[2:]
	var b strings.Builder
	b.WriteString("p.")
	for i := 0; i < len(body); {
		if i+3 <= len(body) {
			if one, ok := aminoAcidCodes[body[i:i+3]]; ok {
				b.WriteString(one)
				i += 3
				continue
			}
		}
		b.WriteByte(body[i])
		i++
	}
	return b.String()
}
