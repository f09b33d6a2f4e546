package service

import (
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

// Evaluator applies the evidence rule table to target variants.
//
// Evaluate is pure and total: it never fails on data quality and never logs
// per call, so it can run from many goroutines over one shared index.
type Evaluator struct {
	assessor *ReliabilityAssessor
	policy   EvaluationPolicy
	rules    []EvidenceRule
	logger   *logrus.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(assessor *ReliabilityAssessor, policy EvaluationPolicy, logger *logrus.Logger) *Evaluator {
	if assessor == nil {
		assessor = NewReliabilityAssessor(DefaultReliabilityPolicy())
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{
		assessor: assessor,
		policy:   policy,
		rules:    evidenceRules,
		logger:   logger,
	}
}

// NewEvaluatorFromConfig wires an evaluator from the evaluation settings.
func NewEvaluatorFromConfig(cfg domain.EvaluationConfig, logger *logrus.Logger) *Evaluator {
	return NewEvaluator(
		NewReliabilityAssessor(PolicyFromConfig(cfg)),
		EvaluationPolicy{PM5AcceptLikelyPathogenic: cfg.PM5AcceptLikelyPathogenic},
		logger,
	)
}

// Assessor returns the reliability assessor shared with index builds.
func (e *Evaluator) Assessor() *ReliabilityAssessor {
	return e.assessor
}

// BuildIndex indexes a cohort with the evaluator's assessor.
func (e *Evaluator) BuildIndex(records []*domain.VariantRecord) *ReferenceIndex {
	return BuildIndex(records, e.assessor)
}

// Evaluate computes the evidence codes for target against index. A target
// without identifying fields, or an empty index, yields an empty code set.
func (e *Evaluator) Evaluate(target *domain.VariantRecord, index *ReferenceIndex) domain.Evaluation {
	result := domain.Evaluation{
		Target: target,
		Codes:  []domain.EvidenceCode{},
	}
	if target == nil {
		return result
	}

	self := e.assessor.Assess(target)
	result.Reliable = self.Reliable
	result.Conflicted = self.Conflicted
	result.ConflictScore = self.ConflictScore
	result.Stars = self.Stars
	result.Status = domain.StatusFor(target.Significance, self.Conflicted)

	if index == nil || (!target.HasNucleotideChange() && !target.HasProteinChange()) {
		return result
	}

	in := ruleInput{target: target, self: self, index: index, policy: e.policy}
	for _, rule := range e.rules {
		ok, matches := rule.evaluate(in)
		if !ok {
			continue
		}
		result.Codes = append(result.Codes, rule.Code)
		result.Matches = append(result.Matches, matches...)
	}

	return result
}

// EvaluateCohort evaluates every record of a cohort against the cohort itself
// and assigns the resulting codes to the records. Records that already carry
// evidence are left untouched and reported in the log.
func (e *Evaluator) EvaluateCohort(records []*domain.VariantRecord) []domain.Evaluation {
	index := e.BuildIndex(records)
	out := make([]domain.Evaluation, 0, len(records))
	withCodes := 0

	for _, rec := range records {
		if rec == nil {
			continue
		}
		ev := e.Evaluate(rec, index)
		if err := rec.SetEvidence(ev.Codes); err != nil {
			e.logger.WithFields(logrus.Fields(rec.LogFields())).WithError(err).Warn("Skipping evidence assignment")
		}
		if len(ev.Codes) > 0 {
			withCodes++
		}
		out = append(out, ev)
	}

	e.logger.WithFields(logrus.Fields{
		"records":    len(out),
		"with_codes": withCodes,
		"genes":      index.Genes(),
	}).Info("Completed cohort evaluation")

	return out
}
