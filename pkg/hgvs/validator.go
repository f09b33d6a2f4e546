package hgvs

import (
	"regexp"
	"strings"

	"github.com/iliaanaa/genekor/internal/domain"
)

// Request-level shape checks
var (
	// HGNC symbol: uppercase letters, digits and hyphens; orf genes keep a lowercase "orf"
	geneSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]*(orf[0-9]+)?$`)

	// RefSeq transcript, optionally versioned
	refSeqTranscriptPattern = regexp.MustCompile(`^(NM_|NR_|XM_|XR_)\d+(\.\d+)?$`)

	// Coding change token: c. followed by a position (possibly -, * or offset)
	codingTokenPattern = regexp.MustCompile(`^c\.[-*]?\d+[^\s]*$`)

	// Protein change token: p. with a residue, a no-change marker or p.?
	proteinTokenPattern = regexp.MustCompile(`^p\.(\(?[A-Z][a-z]{2}\d+[^\s]*|\(?=\)?|\?|0)$`)
)

// Validator checks user supplied target fields before they are evaluated
type Validator struct {
	knownGenes map[string]bool
}

// NewValidator creates a new validator. When genes are given, ValidateGeneSymbol
// additionally requires the symbol to be one of them.
func NewValidator(knownGenes ...string) *Validator {
	v := &Validator{knownGenes: make(map[string]bool)}
	for _, g := range knownGenes {
		v.AddKnownGene(g)
	}
	return v
}

// AddKnownGene adds a gene symbol to the known genes list
func (v *Validator) AddKnownGene(symbol string) {
	v.knownGenes[strings.ToUpper(strings.TrimSpace(symbol))] = true
}

// IsKnownGene reports whether the symbol was registered
func (v *Validator) IsKnownGene(symbol string) bool {
	return v.knownGenes[strings.ToUpper(strings.TrimSpace(symbol))]
}

// ValidateGeneSymbol validates gene symbols according to HUGO standards
func (v *Validator) ValidateGeneSymbol(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.NewValidationError("gene", "Gene symbol is required", symbol)
	}
	if !geneSymbolPattern.MatchString(symbol) {
		return domain.NewValidationError("gene",
			"Gene symbol must follow HUGO nomenclature (uppercase letters, numbers and hyphens)", symbol)
	}
	if strings.HasSuffix(symbol, "-") || strings.Contains(symbol, "--") {
		return domain.NewValidationError("gene", "Gene symbol has a misplaced hyphen", symbol)
	}
	if len(symbol) > 15 {
		return domain.NewValidationError("gene", "Gene symbol should not exceed 15 characters", symbol)
	}
	if len(v.knownGenes) > 0 && !v.IsKnownGene(symbol) {
		return domain.NewValidationError("gene", "Gene is not part of the loaded reference data", symbol)
	}
	return nil
}

// ValidateTranscript validates RefSeq transcript IDs. The transcript is optional.
func (v *Validator) ValidateTranscript(transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}
	if !refSeqTranscriptPattern.MatchString(transcript) {
		return domain.NewValidationError("transcript",
			"Transcript ID must be a RefSeq (NM_/NR_/XM_/XR_) accession", transcript)
	}
	return nil
}

// ValidateNucleotideChange checks the shape of a c. token. Empty is allowed.
func (v *Validator) ValidateNucleotideChange(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return nil
	}
	if !codingTokenPattern.MatchString(c) {
		return domain.NewValidationError("hgvs_c", "Nucleotide change must look like c.123A>G", c)
	}
	return nil
}

// ValidateProteinChange checks the shape of a p. token. Empty is allowed.
func (v *Validator) ValidateProteinChange(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil
	}
	if !proteinTokenPattern.MatchString(p) {
		return domain.NewValidationError("hgvs_p", "Protein change must look like p.Arg175His", p)
	}
	return nil
}

// ValidateTarget validates a complete evaluation target. At least one of
// name, c. or p. must be present.
func (v *Validator) ValidateTarget(gene, name, c, p, transcript string) []error {
	var errs []error

	if err := v.ValidateGeneSymbol(gene); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(name) == "" && strings.TrimSpace(c) == "" && strings.TrimSpace(p) == "" {
		errs = append(errs, domain.NewValidationError("name", "One of name, hgvs_c or hgvs_p is required", ""))
	}
	if err := v.ValidateNucleotideChange(c); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateProteinChange(p); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateTranscript(transcript); err != nil {
		errs = append(errs, err)
	}

	return errs
}
