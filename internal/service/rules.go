package service

import (
	"github.com/iliaanaa/genekor/internal/domain"
)

// EvaluationPolicy holds rule-level switches.
type EvaluationPolicy struct {
	// PM5AcceptLikelyPathogenic lets likely pathogenic codon neighbours support
	// PM5. Off by default: only pathogenic neighbours count.
	PM5AcceptLikelyPathogenic bool
}

// ruleInput is everything a rule may look at for one target.
type ruleInput struct {
	target *domain.VariantRecord
	self   Assessment
	index  *ReferenceIndex
	policy EvaluationPolicy
}

// EvidenceRule represents an individual ACMG/AMP criterion implementation
type EvidenceRule struct {
	Code        domain.EvidenceCode
	Name        string
	Category    domain.RuleCategory
	Strength    domain.RuleStrength
	Description string
	evaluate    func(in ruleInput) (bool, []domain.Match)
}

// evidenceRules is the ordered rule table. Evaluation output follows this order.
var evidenceRules = []EvidenceRule{
	{
		Code:        domain.PS1,
		Name:        "Same amino acid change as established pathogenic variant",
		Category:    domain.PATHOGENIC_RULE,
		Strength:    domain.STRONG,
		Description: "Same protein change as a reliable pathogenic missense variant, caused by a different nucleotide change",
		evaluate:    evaluatePS1,
	},
	{
		Code:        domain.PM5,
		Name:        "Novel missense change at a pathogenic residue",
		Category:    domain.PATHOGENIC_RULE,
		Strength:    domain.MODERATE,
		Description: "Different amino acid change at a codon where a reliable pathogenic missense variant is known",
		evaluate:    evaluatePM5,
	},
	{
		Code:        domain.PP5,
		Name:        "Reputable source reports variant as pathogenic",
		Category:    domain.PATHOGENIC_RULE,
		Strength:    domain.SUPPORTING,
		Description: "Unconflicted classifications of the same DNA change lean pathogenic, backed by a reliable record",
		evaluate:    evaluatePP5,
	},
	{
		Code:        domain.BP6,
		Name:        "Reputable source reports variant as benign",
		Category:    domain.BENIGN_RULE,
		Strength:    domain.SUPPORTING,
		Description: "Unconflicted classifications of the same DNA change lean benign, backed by a reliable record",
		evaluate:    evaluateBP6,
	},
}

// Rules returns the rule table in evaluation order.
func Rules() []EvidenceRule {
	return append([]EvidenceRule(nil), evidenceRules...)
}

// evaluatePS1: the same protein change, reached through a different DNA change,
// is a reliable pathogenic missense variant.
func evaluatePS1(in ruleInput) (bool, []domain.Match) {
	t := in.target
	if !t.HasNucleotideChange() || !t.HasProteinChange() {
		return false, nil
	}

	var matches []domain.Match
	for _, e := range in.index.ByProteinChange(t) {
		ref := e.Record
		if ref.NucleotideChange.String == t.NucleotideChange.String {
			continue
		}
		if !ref.Significance.IsPathogenicLeaning() || ref.Consequence != domain.ConsequenceMissense || !e.Reliable {
			continue
		}
		matches = append(matches, newMatch(domain.PS1, domain.MatchExactProtein, ref))
	}
	return len(matches) > 0, matches
}

// evaluatePM5: the target is a novel missense or nonsense change at a codon
// where a reliable pathogenic missense change is known.
func evaluatePM5(in ruleInput) (bool, []domain.Match) {
	t := in.target
	if _, ok := t.Codon(); !ok || !t.HasProteinChange() {
		return false, nil
	}
	if t.Consequence != domain.ConsequenceMissense && t.Consequence != domain.ConsequenceNonsense {
		return false, nil
	}
	if len(in.index.ByProteinChange(t)) > 0 {
		return false, nil
	}

	var matches []domain.Match
	for _, e := range in.index.ByCodonPosition(t) {
		ref := e.Record
		if !e.Reliable || ref.Consequence != domain.ConsequenceMissense {
			continue
		}
		switch {
		case ref.Significance == domain.PATHOGENIC:
		case ref.Significance == domain.LIKELY_PATHOGENIC && in.policy.PM5AcceptLikelyPathogenic:
		default:
			continue
		}
		matches = append(matches, newMatch(domain.PM5, domain.MatchCodon, ref))
	}
	return len(matches) > 0, matches
}

func evaluatePP5(in ruleInput) (bool, []domain.Match) {
	v := tallyExactVotes(in)
	if v.pathogenic <= v.benign {
		return false, nil
	}
	matches := v.matches(domain.PP5, func(s domain.ClinicalSignificance) bool { return s.IsPathogenicLeaning() })
	return len(matches) > 0, matches
}

func evaluateBP6(in ruleInput) (bool, []domain.Match) {
	v := tallyExactVotes(in)
	if v.benign <= v.pathogenic {
		return false, nil
	}
	matches := v.matches(domain.BP6, func(s domain.ClinicalSignificance) bool { return s.IsBenignLeaning() })
	return len(matches) > 0, matches
}

type exactVotes struct {
	pathogenic int
	benign     int
	supporters []*domain.VariantRecord
}

// tallyExactVotes counts pathogenic and benign leaning classifications among
// unconflicted records of the same DNA change, the target included. Reliability
// does not move the vote; it only decides which records may support the
// winning side.
func tallyExactVotes(in ruleInput) exactVotes {
	var v exactVotes
	bucket := in.index.ByNucleotideChange(in.target)
	if len(bucket) == 0 {
		return v
	}

	vote := func(s domain.ClinicalSignificance) {
		switch {
		case s.IsPathogenicLeaning():
			v.pathogenic++
		case s.IsBenignLeaning():
			v.benign++
		}
	}

	for _, e := range bucket {
		if e.Conflicted {
			continue
		}
		vote(e.Record.Significance)
		if e.Reliable {
			v.supporters = append(v.supporters, e.Record)
		}
	}
	if !in.self.Conflicted {
		vote(in.target.Significance)
	}
	return v
}

func (v exactVotes) matches(code domain.EvidenceCode, side func(domain.ClinicalSignificance) bool) []domain.Match {
	var out []domain.Match
	for _, rec := range v.supporters {
		if side(rec.Significance) {
			out = append(out, newMatch(code, domain.MatchExactNucleotide, rec))
		}
	}
	return out
}

func newMatch(code domain.EvidenceCode, kind domain.MatchType, ref *domain.VariantRecord) domain.Match {
	return domain.Match{
		Code:             code,
		Type:             kind,
		VariationID:      ref.VariationID,
		NucleotideChange: ref.NucleotideChange.String,
		ProteinChange:    ref.ProteinChange.String,
		Significance:     ref.Significance,
		ReviewStatus:     ref.ReviewStatus,
	}
}
