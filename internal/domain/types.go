// Package domain contains the core entities for evaluating ClinVar variants
// against the population and database evidence criteria of the ACMG/AMP
// guidelines (PS1, PM5, PP5, BP6).
//
// Reference: Richards et al. (2015) Standards and guidelines for the interpretation of sequence variants.
// Genet Med. 17(5):405-24. doi: 10.1038/gim.2015.30
package domain

import (
	"errors"
	"strings"
)

// ClinicalSignificance is the normalized form of a ClinVar clinical significance label.
type ClinicalSignificance string

const (
	PATHOGENIC             ClinicalSignificance = "pathogenic"
	LIKELY_PATHOGENIC      ClinicalSignificance = "likely_pathogenic"
	BENIGN                 ClinicalSignificance = "benign"
	LIKELY_BENIGN          ClinicalSignificance = "likely_benign"
	UNCERTAIN_SIGNIFICANCE ClinicalSignificance = "uncertain_significance"
	CONFLICTING            ClinicalSignificance = "conflicting"
	NOT_PROVIDED           ClinicalSignificance = "not_provided"
	OTHER_SIGNIFICANCE     ClinicalSignificance = "other"
)

// MolecularConsequence categorizes the effect of a variant, derived from its
// HGVS text or taken from an explicit consequence label.
type MolecularConsequence string

const (
	ConsequenceMissense            MolecularConsequence = "missense"
	ConsequenceNonsense            MolecularConsequence = "nonsense"
	ConsequenceFrameshift          MolecularConsequence = "frameshift"
	ConsequenceSynonymous          MolecularConsequence = "synonymous"
	ConsequenceInframeInsertion    MolecularConsequence = "inframe_insertion"
	ConsequenceInframeDeletion     MolecularConsequence = "inframe_deletion"
	ConsequenceDuplication         MolecularConsequence = "duplication"
	ConsequenceSpliceDonorAcceptor MolecularConsequence = "splice_donor_acceptor"
	ConsequenceSpliceRegion        MolecularConsequence = "splice_region"
	ConsequenceFivePrimeUTR        MolecularConsequence = "five_prime_utr"
	ConsequenceThreePrimeUTR       MolecularConsequence = "three_prime_utr"
	ConsequenceIntronic            MolecularConsequence = "intronic"
	ConsequenceSubstitution        MolecularConsequence = "substitution"
	ConsequenceIndel               MolecularConsequence = "indel"
	ConsequenceOther               MolecularConsequence = "other"
	ConsequenceUnknown             MolecularConsequence = "unknown"
)

// EvidenceCode is an ACMG/AMP criterion emitted by the evaluator.
type EvidenceCode string

const (
	PS1 EvidenceCode = "PS1"
	PM5 EvidenceCode = "PM5"
	PP5 EvidenceCode = "PP5"
	BP6 EvidenceCode = "BP6"
)

// RuleStrength represents the strength of ACMG/AMP evidence rules
type RuleStrength string

const (
	STRONG     RuleStrength = "STRONG"
	MODERATE   RuleStrength = "MODERATE"
	SUPPORTING RuleStrength = "SUPPORTING"
)

// RuleCategory represents the direction of an ACMG/AMP rule
type RuleCategory string

const (
	PATHOGENIC_RULE RuleCategory = "PATHOGENIC"
	BENIGN_RULE     RuleCategory = "BENIGN"
)

// Status labels reported next to evidence codes. They describe the target's
// own classification and are never emitted as evidence.
const (
	StatusUncertain    = "Uncertain significance"
	StatusConflicting  = "Conflicting classifications"
	StatusUnclassified = "Unclassified variant"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingGene         = errors.New("gene symbol is required")
	ErrEvidenceAlreadySet  = errors.New("evidence codes already assigned")
	ErrInvalidSignificance = errors.New("invalid clinical significance")
	ErrInvalidEvidenceCode = errors.New("invalid evidence code")
	ErrEmptyCohort         = errors.New("no reference variants for gene")
)

// IsValid reports whether s is one of the normalized significance values.
func (s ClinicalSignificance) IsValid() bool {
	switch s {
	case PATHOGENIC, LIKELY_PATHOGENIC, BENIGN, LIKELY_BENIGN,
		UNCERTAIN_SIGNIFICANCE, CONFLICTING, NOT_PROVIDED, OTHER_SIGNIFICANCE:
		return true
	default:
		return false
	}
}

func (s ClinicalSignificance) String() string {
	return string(s)
}

// IsPathogenicLeaning is true for pathogenic and likely pathogenic.
func (s ClinicalSignificance) IsPathogenicLeaning() bool {
	return s == PATHOGENIC || s == LIKELY_PATHOGENIC
}

// IsBenignLeaning is true for benign and likely benign.
func (s ClinicalSignificance) IsBenignLeaning() bool {
	return s == BENIGN || s == LIKELY_BENIGN
}

// NormalizeSignificance maps a free-text ClinVar label onto ClinicalSignificance.
// Matching is case-insensitive and substring based. Conflict markers win, and
// "likely" forms are tested before the bare terms so that "Likely pathogenic"
// is not read as "pathogenic".
func NormalizeSignificance(text string) ClinicalSignificance {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "" || t == "-" || strings.Contains(t, "not provided"):
		return NOT_PROVIDED
	case strings.Contains(t, "conflict"):
		return CONFLICTING
	case strings.Contains(t, "likely pathogenic"), strings.Contains(t, "likely_pathogenic"):
		return LIKELY_PATHOGENIC
	case strings.Contains(t, "likely benign"), strings.Contains(t, "likely_benign"):
		return LIKELY_BENIGN
	case strings.Contains(t, "pathogenic"):
		return PATHOGENIC
	case strings.Contains(t, "benign"):
		return BENIGN
	case strings.Contains(t, "uncertain"):
		return UNCERTAIN_SIGNIFICANCE
	default:
		return OTHER_SIGNIFICANCE
	}
}

// ParseSignificance accepts an already normalized value, or falls back to
// NormalizeSignificance for source labels.
func ParseSignificance(value string) (ClinicalSignificance, error) {
	if s := ClinicalSignificance(strings.ToLower(strings.TrimSpace(value))); s.IsValid() {
		return s, nil
	}
	if strings.TrimSpace(value) == "" {
		return "", ErrInvalidSignificance
	}
	return NormalizeSignificance(value), nil
}

// IsValid reports whether c is a known consequence category.
func (c MolecularConsequence) IsValid() bool {
	switch c {
	case ConsequenceMissense, ConsequenceNonsense, ConsequenceFrameshift, ConsequenceSynonymous,
		ConsequenceInframeInsertion, ConsequenceInframeDeletion, ConsequenceDuplication,
		ConsequenceSpliceDonorAcceptor, ConsequenceSpliceRegion, ConsequenceFivePrimeUTR,
		ConsequenceThreePrimeUTR, ConsequenceIntronic, ConsequenceSubstitution, ConsequenceIndel,
		ConsequenceOther, ConsequenceUnknown:
		return true
	default:
		return false
	}
}

func (c MolecularConsequence) String() string {
	return string(c)
}

// IsValid reports whether e is one of the implemented criteria.
func (e EvidenceCode) IsValid() bool {
	switch e {
	case PS1, PM5, PP5, BP6:
		return true
	default:
		return false
	}
}

func (e EvidenceCode) String() string {
	return string(e)
}

// ParseEvidenceCode parses a code such as "pm5" or "PM5".
func ParseEvidenceCode(value string) (EvidenceCode, error) {
	code := EvidenceCode(strings.ToUpper(strings.TrimSpace(value)))
	if !code.IsValid() {
		return "", ErrInvalidEvidenceCode
	}
	return code, nil
}

// IsValid validates the rule strength according to ACMG/AMP guidelines.
func (rs RuleStrength) IsValid() bool {
	switch rs {
	case STRONG, MODERATE, SUPPORTING:
		return true
	default:
		return false
	}
}

// IsValid validates the rule category
func (rc RuleCategory) IsValid() bool {
	switch rc {
	case PATHOGENIC_RULE, BENIGN_RULE:
		return true
	default:
		return false
	}
}

// ReviewStars converts a ClinVar review status into its gold-star rating.
func ReviewStars(reviewStatus string) int {
	switch strings.ToLower(strings.TrimSpace(reviewStatus)) {
	case "practice guideline", "reviewed by practice guideline", "reviewed by professional society":
		return 4
	case "reviewed by expert panel":
		return 3
	case "criteria provided, multiple submitters, no conflicts", "criteria provided, multiple submitters":
		return 2
	case "criteria provided, single submitter", "criteria provided, conflicting interpretations",
		"criteria provided, conflicting classifications":
		return 1
	default:
		return 0
	}
}
