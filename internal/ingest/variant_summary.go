package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/pkg/hgvs"
)

const (
	// DefaultAssembly is the genome build kept when a filter names none.
	DefaultAssembly = "GRCh38"
	// AnyAssembly keeps rows of every build.
	AnyAssembly = "*"
)

// variantSummaryRow is one line of variant_summary.txt. Numeric columns are
// read as text because ClinVar writes "-" for missing values.
type variantSummaryRow struct {
	AlleleID             string `csv:"#AlleleID"`
	Type                 string `csv:"Type"`
	Name                 string `csv:"Name"`
	GeneSymbol           string `csv:"GeneSymbol"`
	ClinicalSignificance string `csv:"ClinicalSignificance"`
	ClinSigSimple        string `csv:"ClinSigSimple"`
	LastEvaluated        string `csv:"LastEvaluated"`
	RCVaccession         string `csv:"RCVaccession"`
	PhenotypeList        string `csv:"PhenotypeList"`
	Assembly             string `csv:"Assembly"`
	Chromosome           string `csv:"Chromosome"`
	Start                string `csv:"Start"`
	Stop                 string `csv:"Stop"`
	ReferenceAllele      string `csv:"ReferenceAllele"`
	AlternateAllele      string `csv:"AlternateAllele"`
	ReviewStatus         string `csv:"ReviewStatus"`
	NumberSubmitters     string `csv:"NumberSubmitters"`
	SubmitterCategories  string `csv:"SubmitterCategories"`
	VariationID          string `csv:"VariationID"`
}

func (row variantSummaryRow) raw() domain.RawVariant {
	return domain.RawVariant{
		VariationID:         parseInt64(row.VariationID),
		GeneSymbol:          clean(row.GeneSymbol),
		Name:                clean(row.Name),
		SignificanceText:    clean(row.ClinicalSignificance),
		ReviewStatus:        clean(row.ReviewStatus),
		SubmitterCount:      parseInt(row.NumberSubmitters),
		SubmitterCategories: parseCategories(row.SubmitterCategories),
		Assembly:            clean(row.Assembly),
		Chromosome:          clean(row.Chromosome),
		RCVAccessions:       splitList(row.RCVaccession, "|"),
		PhenotypeList:       clean(row.PhenotypeList),
		LastEvaluated:       parseDate(row.LastEvaluated),
	}
}

// Filter selects the variant_summary rows to keep.
type Filter struct {
	Genes    []string
	Assembly string
}

func (f Filter) geneSet() map[string]struct{} {
	if len(f.Genes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(f.Genes))
	for _, g := range f.Genes {
		if g = strings.TrimSpace(g); g != "" {
			set[g] = struct{}{}
		}
	}
	return set
}

// VariantSummaryReader turns variant_summary rows into variant records.
type VariantSummaryReader struct {
	filter Filter
	logger *logrus.Logger
}

// NewVariantSummaryReader creates a reader. An empty assembly keeps GRCh38.
func NewVariantSummaryReader(filter Filter, logger *logrus.Logger) *VariantSummaryReader {
	if filter.Assembly == "" {
		filter.Assembly = DefaultAssembly
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &VariantSummaryReader{filter: filter, logger: logger}
}

// ReadFile reads a plain or compressed variant_summary file.
func (r *VariantSummaryReader) ReadFile(ctx context.Context, path string) ([]*domain.VariantRecord, Stats, error) {
	in, dt, err := OpenMaybeCompressed(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer in.Close()

	r.logger.WithFields(logrus.Fields{"path": path, "format": dt.String()}).Debug("Reading variant summary")
	return r.Read(ctx, in)
}

// Read parses variant_summary content. Rows outside the filter, rows without
// a gene symbol and repeated variation IDs are skipped, not reported as
// errors.
func (r *VariantSummaryReader) Read(ctx context.Context, in io.Reader) ([]*domain.VariantRecord, Stats, error) {
	start := time.Now()
	useTabReader()

	genes := r.filter.geneSet()
	assembly := r.filter.Assembly
	seen := make(map[int64]struct{})

	var (
		stats   Stats
		records []*domain.VariantRecord
	)
	err := gocsv.UnmarshalToCallbackWithError(in, func(row variantSummaryRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Read++

		raw := row.raw()
		if assembly != AnyAssembly && !strings.EqualFold(raw.Assembly, assembly) {
			stats.Skipped++
			return nil
		}
		if genes != nil {
			if _, ok := genes[raw.GeneSymbol]; !ok {
				stats.Skipped++
				return nil
			}
		}
		if raw.VariationID != 0 {
			if _, dup := seen[raw.VariationID]; dup {
				stats.Skipped++
				return nil
			}
			seen[raw.VariationID] = struct{}{}
		}

		rec, err := hgvs.NewVariantRecord(raw)
		if err != nil {
			stats.Skipped++
			return nil
		}
		stats.Kept++
		records = append(records, rec)
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("reading variant summary: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"read":        stats.Read,
		"kept":        stats.Kept,
		"skipped":     stats.Skipped,
		"genes":       r.filter.Genes,
		"assembly":    assembly,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Loaded variant summary")

	return records, stats, nil
}
