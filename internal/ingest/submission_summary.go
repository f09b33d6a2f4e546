package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

// submissionRow is one SCV line of submission_summary.txt.
type submissionRow struct {
	VariationID          string `csv:"#VariationID"`
	ClinicalSignificance string `csv:"ClinicalSignificance"`
	DateLastEvaluated    string `csv:"DateLastEvaluated"`
	Description          string `csv:"Description"`
	ReviewStatus         string `csv:"ReviewStatus"`
	CollectionMethod     string `csv:"CollectionMethod"`
	Submitter            string `csv:"Submitter"`
	SCV                  string `csv:"SCV"`
	SubmittedGeneSymbol  string `csv:"SubmittedGeneSymbol"`
}

func (row submissionRow) submission() domain.Submission {
	text := clean(row.ClinicalSignificance)
	return domain.Submission{
		SCV:               clean(row.SCV),
		VariationID:       parseInt64(row.VariationID),
		Significance:      domain.NormalizeSignificance(text),
		SignificanceText:  text,
		ReviewStatus:      clean(row.ReviewStatus),
		CollectionMethod:  clean(row.CollectionMethod),
		Submitter:         clean(row.Submitter),
		SubmittedGene:     clean(row.SubmittedGeneSymbol),
		DateLastEvaluated: nullDate(row.DateLastEvaluated),
	}
}

// SubmissionSummaryReader reads per-submitter classifications, keeping only
// the variation IDs it was given. An empty ID set keeps every row.
type SubmissionSummaryReader struct {
	ids    map[int64]struct{}
	logger *logrus.Logger
}

// NewSubmissionSummaryReader creates a reader restricted to variationIDs.
func NewSubmissionSummaryReader(variationIDs []int64, logger *logrus.Logger) *SubmissionSummaryReader {
	r := &SubmissionSummaryReader{logger: logger}
	if r.logger == nil {
		r.logger = logrus.New()
	}
	if len(variationIDs) > 0 {
		r.ids = make(map[int64]struct{}, len(variationIDs))
		for _, id := range variationIDs {
			r.ids[id] = struct{}{}
		}
	}
	return r
}

// ForRecords restricts a reader to the variation IDs of records.
func ForRecords(records []*domain.VariantRecord, logger *logrus.Logger) *SubmissionSummaryReader {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if rec != nil && rec.VariationID != 0 {
			ids = append(ids, rec.VariationID)
		}
	}
	return NewSubmissionSummaryReader(ids, logger)
}

// ReadFile reads a plain or compressed submission_summary file.
func (r *SubmissionSummaryReader) ReadFile(ctx context.Context, path string) ([]domain.Submission, Stats, error) {
	in, _, err := OpenMaybeCompressed(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer in.Close()
	return r.Read(ctx, in)
}

// Read parses submission_summary content, skipping its "##" preamble.
func (r *SubmissionSummaryReader) Read(ctx context.Context, in io.Reader) ([]domain.Submission, Stats, error) {
	start := time.Now()
	useTabReader()

	var (
		stats Stats
		subs  []domain.Submission
	)
	body, err := skipPreamble(in)
	if err != nil {
		return nil, stats, fmt.Errorf("reading submission summary preamble: %w", err)
	}

	err = gocsv.UnmarshalToCallbackWithError(body, func(row submissionRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Read++
		sub := row.submission()
		if sub.VariationID == 0 {
			stats.Skipped++
			return nil
		}
		if r.ids != nil {
			if _, ok := r.ids[sub.VariationID]; !ok {
				stats.Skipped++
				return nil
			}
		}
		stats.Kept++
		subs = append(subs, sub)
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("reading submission summary: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"read":        stats.Read,
		"kept":        stats.Kept,
		"skipped":     stats.Skipped,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Loaded submission summary")

	return subs, stats, nil
}

// AttachSubmissions joins submissions onto records by variation ID, filling
// the per-submitter significances. A record whose summary row reported no
// submitters takes the number of distinct submitters instead. It returns the
// number of records that received submissions.
func AttachSubmissions(records []*domain.VariantRecord, submissions []domain.Submission) int {
	byID := make(map[int64][]domain.Submission)
	for _, s := range submissions {
		byID[s.VariationID] = append(byID[s.VariationID], s)
	}

	attached := 0
	for _, rec := range records {
		if rec == nil || rec.VariationID == 0 {
			continue
		}
		subs, ok := byID[rec.VariationID]
		if !ok {
			continue
		}
		sigs := make([]domain.ClinicalSignificance, 0, len(subs))
		submitters := make(map[string]struct{})
		for _, s := range subs {
			sigs = append(sigs, s.Significance)
			key := s.Submitter
			if key == "" {
				key = s.SCV
			}
			submitters[key] = struct{}{}
		}
		rec.SubmissionSignificances = sigs
		if rec.SubmitterCount == 0 {
			rec.SubmitterCount = len(submitters)
		}
		attached++
	}
	return attached
}
