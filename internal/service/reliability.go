package service

import (
	"strings"

	"github.com/iliaanaa/genekor/internal/domain"
)

// Default reliability thresholds
const (
	DefaultMinSubmitters = 3
)

// DefaultAdmissibleCategories are ClinVar submitter categories 2 (criteria
// provided, single submitter) and 3 (criteria provided, multiple submitters).
var DefaultAdmissibleCategories = []int{2, 3}

// DefaultExpertReviewMarkers are review-status fragments that make a record
// reliable on their own.
var DefaultExpertReviewMarkers = []string{"reviewed by expert panel", "practice guideline"}

// ReliabilityPolicy holds the thresholds a reference record must meet to
// contribute evidence.
type ReliabilityPolicy struct {
	MinSubmitters        int
	AdmissibleCategories []int
	ExpertReviewMarkers  []string
}

// DefaultReliabilityPolicy returns the policy used when nothing is configured.
func DefaultReliabilityPolicy() ReliabilityPolicy {
	return ReliabilityPolicy{
		MinSubmitters:        DefaultMinSubmitters,
		AdmissibleCategories: append([]int(nil), DefaultAdmissibleCategories...),
		ExpertReviewMarkers:  append([]string(nil), DefaultExpertReviewMarkers...),
	}
}

// PolicyFromConfig builds a policy from configuration, filling unset fields
// with the defaults.
func PolicyFromConfig(cfg domain.EvaluationConfig) ReliabilityPolicy {
	p := DefaultReliabilityPolicy()
	if cfg.MinSubmitters > 0 {
		p.MinSubmitters = cfg.MinSubmitters
	}
	if len(cfg.AdmissibleCategories) > 0 {
		p.AdmissibleCategories = append([]int(nil), cfg.AdmissibleCategories...)
	}
	return p
}

// Assessment is the cached verdict for one record.
type Assessment struct {
	Reliable      bool    `json:"reliable"`
	Conflicted    bool    `json:"conflicted"`
	ConflictScore float64 `json:"conflict_score"`
	Stars         int     `json:"review_stars"`
}

// ReliabilityAssessor decides whether a record's own classification history is
// consistent enough to be used as reference evidence. It holds no mutable
// state and is safe for concurrent use.
type ReliabilityAssessor struct {
	policy     ReliabilityPolicy
	categories map[int]bool
	markers    []string
}

// NewReliabilityAssessor creates an assessor for policy.
func NewReliabilityAssessor(policy ReliabilityPolicy) *ReliabilityAssessor {
	a := &ReliabilityAssessor{
		policy:     policy,
		categories: make(map[int]bool, len(policy.AdmissibleCategories)),
	}
	for _, c := range policy.AdmissibleCategories {
		a.categories[c] = true
	}
	for _, m := range policy.ExpertReviewMarkers {
		a.markers = append(a.markers, strings.ToLower(m))
	}
	return a
}

// Policy returns the policy the assessor was built with.
func (a *ReliabilityAssessor) Policy() ReliabilityPolicy {
	return a.policy
}

// IsExpertReviewed reports whether the review status carries an expert panel
// or practice guideline marker.
func (a *ReliabilityAssessor) IsExpertReviewed(rec *domain.VariantRecord) bool {
	status := strings.ToLower(rec.ReviewStatus)
	for _, m := range a.markers {
		if strings.Contains(status, m) {
			return true
		}
	}
	return false
}

// IsReliable reports whether rec may contribute evidence for other variants.
// Disagreement among submissions is reported by IsConflicted and does not
// affect reliability.
func (a *ReliabilityAssessor) IsReliable(rec *domain.VariantRecord) bool {
	if rec == nil {
		return false
	}
	if a.IsExpertReviewed(rec) {
		return true
	}
	if rec.SubmitterCount < a.policy.MinSubmitters {
		return false
	}
	if len(rec.SubmitterCategories) == 0 {
		return false
	}
	for _, c := range rec.SubmitterCategories {
		if !a.categories[c] {
			return false
		}
	}
	return rec.Significance != domain.CONFLICTING
}

// IsConflicted reports whether submitters disagree. When no submissions were
// joined to the record, its own aggregate significance is consulted instead.
func (a *ReliabilityAssessor) IsConflicted(rec *domain.VariantRecord) bool {
	if rec == nil {
		return false
	}
	if len(rec.SubmissionSignificances) == 0 {
		return rec.Significance == domain.CONFLICTING
	}
	return len(distinctSignificances(rec.SubmissionSignificances)) > 1
}

// ConflictScore is 1 - (largest agreeing group / total submissions). It is 0
// for a unanimous record and approaches 1 as opinions spread out.
func (a *ReliabilityAssessor) ConflictScore(rec *domain.VariantRecord) float64 {
	if rec == nil {
		return 0
	}
	counts := distinctSignificances(rec.SubmissionSignificances)
	total := 0
	largest := 0
	for _, n := range counts {
		total += n
		if n > largest {
			largest = n
		}
	}
	if total <= 1 {
		return 0
	}
	return 1 - float64(largest)/float64(total)
}

// Assess computes every verdict at once.
func (a *ReliabilityAssessor) Assess(rec *domain.VariantRecord) Assessment {
	if rec == nil {
		return Assessment{}
	}
	return Assessment{
		Reliable:      a.IsReliable(rec),
		Conflicted:    a.IsConflicted(rec),
		ConflictScore: a.ConflictScore(rec),
		Stars:         domain.ReviewStars(rec.ReviewStatus),
	}
}

// distinctSignificances counts submissions per significance, ignoring
// submissions that did not provide one.
func distinctSignificances(sigs []domain.ClinicalSignificance) map[domain.ClinicalSignificance]int {
	counts := make(map[domain.ClinicalSignificance]int, len(sigs))
	for _, s := range sigs {
		if s == domain.NOT_PROVIDED || s == "" {
			continue
		}
		counts[s]++
	}
	return counts
}
