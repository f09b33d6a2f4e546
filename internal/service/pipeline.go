package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

// Pipeline loads a gene cohort, reuses its index and evaluates targets
// against it. Cache, sink and release tracker are optional.
type Pipeline struct {
	source    domain.VariantSource
	evaluator *Evaluator
	indexes   *IndexCache
	cache     domain.EvaluationCache
	sink      domain.EvidenceSink
	releases  domain.ReleaseTracker
	workers   int
	logger    *logrus.Logger
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

// WithEvaluationCache stores finished evaluations, keyed by release.
func WithEvaluationCache(c domain.EvaluationCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithEvidenceSink persists codes assigned to cohort members.
func WithEvidenceSink(s domain.EvidenceSink) PipelineOption {
	return func(p *Pipeline) { p.sink = s }
}

// WithReleaseTracker scopes cached indexes and evaluations to a release.
func WithReleaseTracker(r domain.ReleaseTracker) PipelineOption {
	return func(p *Pipeline) { p.releases = r }
}

// WithWorkers sets the evaluation pool size. Zero means runtime.NumCPU().
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) { p.workers = n }
}

// NewPipeline creates a pipeline.
func NewPipeline(source domain.VariantSource, evaluator *Evaluator, indexes *IndexCache, logger *logrus.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:    source,
		evaluator: evaluator,
		indexes:   indexes,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EvaluateGene evaluates targets against the stored cohort of gene. With no
// targets, every cohort member is evaluated and the resulting codes are
// assigned to the members and handed to the evidence sink.
func (p *Pipeline) EvaluateGene(ctx context.Context, gene string, targets []*domain.VariantRecord) ([]domain.Evaluation, error) {
	start := time.Now()
	release := p.currentRelease(ctx)

	index, err := p.indexes.GetOrBuild(ctx, release, gene, p.loadIndex)
	if err != nil {
		return nil, err
	}

	cohortRun := len(targets) == 0
	if cohortRun {
		targets, err = p.source.ListByGene(ctx, gene)
		if err != nil {
			return nil, fmt.Errorf("loading cohort for %s: %w", gene, err)
		}
	}

	evaluations := make([]domain.Evaluation, len(targets))
	var misses []*domain.VariantRecord
	var missPos []int
	for i, t := range targets {
		if cached, ok := p.fromCache(ctx, release, t); ok {
			evaluations[i] = *cached
			continue
		}
		misses = append(misses, t)
		missPos = append(missPos, i)
	}

	fresh, err := p.evaluator.EvaluateAll(ctx, misses, index, p.workers)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", gene, err)
	}
	for i, ev := range fresh {
		evaluations[missPos[i]] = ev
		if p.cache != nil && release != "" {
			if err := p.cache.Set(ctx, release, &fresh[i]); err != nil {
				p.logger.WithError(err).WithField("gene", gene).Warn("Failed to cache evaluation")
			}
		}
	}

	if cohortRun {
		p.assign(ctx, gene, evaluations)
	}

	p.logger.WithFields(logrus.Fields{
		"gene":        gene,
		"release":     release,
		"cohort":      index.GeneSize(gene),
		"targets":     len(targets),
		"cache_hits":  len(targets) - len(misses),
		"with_codes":  countWithCodes(evaluations),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Completed gene evaluation")

	return evaluations, nil
}

// Invalidate drops cached indexes for gene after its cohort changed.
func (p *Pipeline) Invalidate(gene string) {
	n := p.indexes.Invalidate(gene)
	p.logger.WithFields(logrus.Fields{"gene": gene, "indexes": n}).Debug("Invalidated reference indexes")
}

func (p *Pipeline) loadIndex(ctx context.Context, gene string) (*ReferenceIndex, error) {
	records, err := p.source.ListByGene(ctx, gene)
	if err != nil {
		return nil, fmt.Errorf("loading cohort for %s: %w", gene, err)
	}
	if len(records) == 0 {
		p.logger.WithField("gene", gene).WithError(domain.ErrEmptyCohort).Warn("Evaluating against an empty cohort")
	}
	return p.evaluator.BuildIndex(records), nil
}

func (p *Pipeline) currentRelease(ctx context.Context) string {
	if p.releases == nil {
		return ""
	}
	rel, err := p.releases.LatestRelease(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.WithError(err).Warn("Could not determine current release")
		}
		return ""
	}
	return rel.Tag()
}

func (p *Pipeline) fromCache(ctx context.Context, release string, target *domain.VariantRecord) (*domain.Evaluation, bool) {
	if p.cache == nil || release == "" || target == nil {
		return nil, false
	}
	cached, ok := p.cache.Get(ctx, release, target)
	if !ok {
		return nil, false
	}
	cached.Target = target
	return cached, true
}

func (p *Pipeline) assign(ctx context.Context, gene string, evaluations []domain.Evaluation) {
	for _, ev := range evaluations {
		if ev.Target == nil || ev.Target.EvidenceAssigned() {
			continue
		}
		if err := ev.Target.SetEvidence(ev.Codes); err != nil {
			p.logger.WithFields(logrus.Fields(ev.Target.LogFields())).WithError(err).Warn("Skipping evidence assignment")
		}
	}
	if p.sink == nil {
		return
	}
	if err := p.sink.SaveEvidence(ctx, evaluations); err != nil {
		p.logger.WithError(err).WithField("gene", gene).Error("Failed to persist evidence codes")
	}
}

func countWithCodes(evaluations []domain.Evaluation) int {
	n := 0
	for _, ev := range evaluations {
		if len(ev.Codes) > 0 {
			n++
		}
	}
	return n
}
