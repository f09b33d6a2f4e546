package hgvs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iliaanaa/genekor/internal/domain"
)

var (
	missensePattern   = regexp.MustCompile(`^p\.\(?[A-Z][a-z]{2}\d+[A-Z][a-z]{2}\)?$`)
	stopPattern       = regexp.MustCompile(`^p\.\(?[A-Z][a-z]{2}\d+(?:Ter|X)\)?$`)
	synonymousPattern = regexp.MustCompile(`^p\.\(?(?:[A-Z][a-z]{2}\d+)?=\)?$`)
	intronOffset      = regexp.MustCompile(`\d[+-](\d+)`)
)

// DeriveConsequence classifies a variant from its HGVS text. The protein
// change takes precedence; the nucleotide change is only consulted when no
// protein change is present. The first matching pattern wins.
func DeriveConsequence(nucleotide, protein string) domain.MolecularConsequence {
	protein = strings.TrimSpace(protein)
	nucleotide = strings.TrimSpace(nucleotide)

	if protein != "" {
		return proteinConsequence(protein)
	}
	if nucleotide != "" {
		return nucleotideConsequence(nucleotide)
	}
	return domain.ConsequenceUnknown
}

func proteinConsequence(p string) domain.MolecularConsequence {
	switch {
	case strings.Contains(p, "fs"):
		return domain.ConsequenceFrameshift
	case strings.Contains(p, "*"), stopPattern.MatchString(p):
		return domain.ConsequenceNonsense
	case strings.Contains(p, "del"):
		return domain.ConsequenceInframeDeletion
	case strings.Contains(p, "dup"):
		return domain.ConsequenceDuplication
	case strings.Contains(p, "ins"):
		return domain.ConsequenceInframeInsertion
	case synonymousPattern.MatchString(p):
		return domain.ConsequenceSynonymous
	case missensePattern.MatchString(p):
		return domain.ConsequenceMissense
	default:
		return domain.ConsequenceOther
	}
}

func nucleotideConsequence(c string) domain.MolecularConsequence {
	if offsets := intronOffset.FindAllStringSubmatch(c, -1); len(offsets) > 0 {
		for _, m := range offsets {
			if n, err := strconv.Atoi(m[1]); err == nil && (n == 1 || n == 2) {
				return domain.ConsequenceSpliceDonorAcceptor
			}
		}
		return domain.ConsequenceSpliceRegion
	}
	switch {
	case strings.HasPrefix(c, "c.-"):
		return domain.ConsequenceFivePrimeUTR
	case strings.Contains(c, "*"):
		return domain.ConsequenceThreePrimeUTR
	default:
		return domain.ConsequenceUnknown
	}
}

var consequenceLabels = map[string]domain.MolecularConsequence{
	"missense":                domain.ConsequenceMissense,
	"missense_variant":        domain.ConsequenceMissense,
	"nonsense":                domain.ConsequenceNonsense,
	"stop_gained":             domain.ConsequenceNonsense,
	"frameshift":              domain.ConsequenceFrameshift,
	"frameshift_variant":      domain.ConsequenceFrameshift,
	"synonymous":              domain.ConsequenceSynonymous,
	"synonymous_variant":      domain.ConsequenceSynonymous,
	"inframe_insertion":       domain.ConsequenceInframeInsertion,
	"inframe_deletion":        domain.ConsequenceInframeDeletion,
	"inframe_indel":           domain.ConsequenceIndel,
	"duplication":             domain.ConsequenceDuplication,
	"splice_donor_variant":    domain.ConsequenceSpliceDonorAcceptor,
	"splice_acceptor_variant": domain.ConsequenceSpliceDonorAcceptor,
	"splice_donor_acceptor":   domain.ConsequenceSpliceDonorAcceptor,
	"splice_region":           domain.ConsequenceSpliceRegion,
	"splice_region_variant":   domain.ConsequenceSpliceRegion,
	"5_prime_utr_variant":     domain.ConsequenceFivePrimeUTR,
	"five_prime_utr":          domain.ConsequenceFivePrimeUTR,
	"five_prime_utr_variant":  domain.ConsequenceFivePrimeUTR,
	"3_prime_utr_variant":     domain.ConsequenceThreePrimeUTR,
	"three_prime_utr":         domain.ConsequenceThreePrimeUTR,
	"three_prime_utr_variant": domain.ConsequenceThreePrimeUTR,
	"intron_variant":          domain.ConsequenceIntronic,
	"intronic_variant":        domain.ConsequenceIntronic,
	"intronic":                domain.ConsequenceIntronic,
	"substitution":            domain.ConsequenceSubstitution,
	"indel":                   domain.ConsequenceIndel,
	"delins":                  domain.ConsequenceIndel,
	"deletion":                domain.ConsequenceIndel,
	"insertion":               domain.ConsequenceIndel,
	"other":                   domain.ConsequenceOther,
	"unknown":                 domain.ConsequenceUnknown,
}

// ParseConsequenceLabel maps an externally supplied consequence label onto the
// consequence enum. It accepts Sequence Ontology terms ("missense_variant"),
// ClinVar's "SO:0001583|missense variant" form and comma separated lists, in
// which case the first recognised term is used. The boolean is false when no
// label was supplied; unrecognised labels map to ConsequenceOther.
func ParseConsequenceLabel(label string) (domain.MolecularConsequence, bool) {
	label = strings.TrimSpace(label)
	if label == "" || label == "-" {
		return "", false
	}
	for _, term := range strings.Split(label, ",") {
		if i := strings.LastIndexByte(term, '|'); i >= 0 {
			term = term[i+1:]
		}
		key := strings.ToLower(strings.TrimSpace(term))
		key = strings.ReplaceAll(key, " ", "_")
		if c, ok := consequenceLabels[key]; ok {
			return c, true
		}
		if c := domain.MolecularConsequence(key); c.IsValid() {
			return c, true
		}
	}
	return domain.ConsequenceOther, true
}
