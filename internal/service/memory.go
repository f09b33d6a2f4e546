package service

import (
	"context"
	"sync"

	"github.com/iliaanaa/genekor/internal/domain"
)

// MemorySource serves a cohort loaded from files, for runs without a
// database. It also reports the release the files came from, if known.
type MemorySource struct {
	mu      sync.RWMutex
	byGene  map[string][]*domain.VariantRecord
	release *domain.Release
}

// NewMemorySource groups records by gene symbol.
func NewMemorySource(records []*domain.VariantRecord, release *domain.Release) *MemorySource {
	s := &MemorySource{byGene: make(map[string][]*domain.VariantRecord), release: release}
	s.Add(records...)
	return s
}

// Add appends records to their genes' cohorts.
func (s *MemorySource) Add(records ...*domain.VariantRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		s.byGene[rec.GeneSymbol] = append(s.byGene[rec.GeneSymbol], rec)
	}
}

// ListByGene returns the cohort of gene in load order.
func (s *MemorySource) ListByGene(_ context.Context, gene string) ([]*domain.VariantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.VariantRecord(nil), s.byGene[gene]...), nil
}

// LatestRelease returns the release given at construction.
func (s *MemorySource) LatestRelease(context.Context) (*domain.Release, error) {
	if s.release == nil || s.release.Date.IsZero() {
		return nil, domain.ErrNotFound
	}
	r := *s.release
	return &r, nil
}
