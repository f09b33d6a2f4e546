package service

import (
	"sort"

	"github.com/iliaanaa/genekor/internal/domain"
)

// IndexEntry is one reference record with its verdicts computed at build time.
type IndexEntry struct {
	Record *domain.VariantRecord
	Assessment
}

type changeKey struct {
	gene   string
	change string
}

type codonKey struct {
	gene  string
	codon int
}

// ReferenceIndex groups a gene cohort by nucleotide change, protein change and
// codon position. It is read-only once built and safe for concurrent readers.
type ReferenceIndex struct {
	byNucleotide map[changeKey][]*IndexEntry
	byProtein    map[changeKey][]*IndexEntry
	byCodon      map[codonKey][]*IndexEntry
	genes        map[string]int
	size         int
}

// BuildIndex indexes records in a single pass. Records without the field a
// bucket is keyed on are simply absent from that bucket.
func BuildIndex(records []*domain.VariantRecord, assessor *ReliabilityAssessor) *ReferenceIndex {
	idx := &ReferenceIndex{
		byNucleotide: make(map[changeKey][]*IndexEntry),
		byProtein:    make(map[changeKey][]*IndexEntry),
		byCodon:      make(map[codonKey][]*IndexEntry),
		genes:        make(map[string]int),
	}

	for _, rec := range records {
		if rec == nil || rec.GeneSymbol == "" {
			continue
		}
		entry := &IndexEntry{Record: rec, Assessment: assessor.Assess(rec)}
		idx.size++
		idx.genes[rec.GeneSymbol]++

		if rec.HasNucleotideChange() {
			k := changeKey{rec.GeneSymbol, rec.NucleotideChange.String}
			idx.byNucleotide[k] = append(idx.byNucleotide[k], entry)
		}
		if rec.HasProteinChange() {
			k := changeKey{rec.GeneSymbol, rec.ProteinChange.String}
			idx.byProtein[k] = append(idx.byProtein[k], entry)
		}
		if codon, ok := rec.Codon(); ok {
			k := codonKey{rec.GeneSymbol, codon}
			idx.byCodon[k] = append(idx.byCodon[k], entry)
		}
	}

	return idx
}

// ByNucleotideChange returns DNA-identical entries, excluding the target itself.
func (idx *ReferenceIndex) ByNucleotideChange(target *domain.VariantRecord) []*IndexEntry {
	if target == nil || !target.HasNucleotideChange() {
		return nil
	}
	bucket := idx.byNucleotide[changeKey{target.GeneSymbol, target.NucleotideChange.String}]
	return excluding(bucket, target, "")
}

// ByProteinChange returns entries with the same protein change, excluding the
// target itself.
func (idx *ReferenceIndex) ByProteinChange(target *domain.VariantRecord) []*IndexEntry {
	if target == nil || !target.HasProteinChange() {
		return nil
	}
	bucket := idx.byProtein[changeKey{target.GeneSymbol, target.ProteinChange.String}]
	return excluding(bucket, target, "")
}

// ByCodonPosition returns entries at the target's codon whose protein change
// differs from the target's.
func (idx *ReferenceIndex) ByCodonPosition(target *domain.VariantRecord) []*IndexEntry {
	if target == nil {
		return nil
	}
	codon, ok := target.Codon()
	if !ok {
		return nil
	}
	bucket := idx.byCodon[codonKey{target.GeneSymbol, codon}]
	return excluding(bucket, target, target.ProteinChange.String)
}

// Size is the number of indexed records.
func (idx *ReferenceIndex) Size() int {
	return idx.size
}

// Genes returns the indexed gene symbols in sorted order.
func (idx *ReferenceIndex) Genes() []string {
	genes := make([]string, 0, len(idx.genes))
	for g := range idx.genes {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// GeneSize is the number of indexed records for gene.
func (idx *ReferenceIndex) GeneSize(gene string) int {
	return idx.genes[gene]
}

// excluding filters out the target and, when protein is set, entries carrying
// that protein change. The result is a fresh slice; buckets are never handed out.
func excluding(bucket []*IndexEntry, target *domain.VariantRecord, protein string) []*IndexEntry {
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*IndexEntry, 0, len(bucket))
	for _, e := range bucket {
		if e.Record.IsSameRecord(target) {
			continue
		}
		if protein != "" && e.Record.ProteinChange.String == protein {
			continue
		}
		out = append(out, e)
	}
	return out
}
