package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
	batchSize         = 1000
)

// VariantRepository stores the ClinVar reference cohort in PostgreSQL.
type VariantRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewVariantRepository creates a new variant repository
func NewVariantRepository(db *pgxpool.Pool, logger *logrus.Logger) *VariantRepository {
	return &VariantRepository{
		db:  db,
		log: logger,
	}
}

// VariantFilter narrows Query results. Zero values do not filter.
type VariantFilter struct {
	Gene         string
	Significance domain.ClinicalSignificance
	Conflicted   *bool
	Limit        int
	Offset       int
}

const variantColumns = `
	variation_id, gene_symbol, transcript_id, hgvs_c, hgvs_p, codon_position,
	other_descriptor, molecular_consequence, clinical_significance, significance_text,
	review_status, submitter_count, submitter_categories, assembly, chromosome,
	rcv_accessions, phenotype_list, last_evaluated, evidence_codes`

const upsertVariantSQL = `
	INSERT INTO variants (` + variantColumns + `, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULL, NOW())
	ON CONFLICT (variation_id) DO UPDATE SET
		gene_symbol = EXCLUDED.gene_symbol,
		transcript_id = EXCLUDED.transcript_id,
		hgvs_c = EXCLUDED.hgvs_c,
		hgvs_p = EXCLUDED.hgvs_p,
		codon_position = EXCLUDED.codon_position,
		other_descriptor = EXCLUDED.other_descriptor,
		molecular_consequence = EXCLUDED.molecular_consequence,
		clinical_significance = EXCLUDED.clinical_significance,
		significance_text = EXCLUDED.significance_text,
		review_status = EXCLUDED.review_status,
		submitter_count = EXCLUDED.submitter_count,
		submitter_categories = EXCLUDED.submitter_categories,
		assembly = EXCLUDED.assembly,
		chromosome = EXCLUDED.chromosome,
		rcv_accessions = EXCLUDED.rcv_accessions,
		phenotype_list = EXCLUDED.phenotype_list,
		last_evaluated = EXCLUDED.last_evaluated,
		evidence_codes = NULL,
		conflicted = NULL,
		conflict_score = NULL,
		updated_at = NOW()`

// UpsertVariants inserts or replaces records keyed by VariationID. Stored
// evidence is cleared, since it was computed against the previous cohort.
// Records without a VariationID are skipped.
func (r *VariantRepository) UpsertVariants(ctx context.Context, records []*domain.VariantRecord) (int, error) {
	start := time.Now()
	written := 0

	for lo := 0; lo < len(records); lo += batchSize {
		hi := min(lo+batchSize, len(records))

		batch := &pgx.Batch{}
		for _, rec := range records[lo:hi] {
			if rec == nil || rec.VariationID == 0 {
				continue
			}
			batch.Queue(upsertVariantSQL,
				rec.VariationID,
				rec.GeneSymbol,
				rec.TranscriptID,
				rec.NucleotideChange,
				rec.ProteinChange,
				rec.CodonPosition,
				rec.OtherDescriptor,
				rec.Consequence.String(),
				rec.Significance.String(),
				rec.SignificanceText,
				rec.ReviewStatus,
				rec.SubmitterCount,
				nonNilInts(rec.SubmitterCategories),
				rec.Assembly,
				rec.Chromosome,
				nonNilStrings(rec.RCVAccessions),
				rec.PhenotypeList,
				rec.LastEvaluated,
			)
		}
		if batch.Len() == 0 {
			continue
		}

		if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
			r.log.WithFields(logrus.Fields{
				"offset": lo,
				"error":  err,
			}).Error("Failed to upsert variant batch")
			return written, fmt.Errorf("upserting variants: %w", err)
		}
		written += batch.Len()
	}

	r.log.WithFields(logrus.Fields{
		"variants":    written,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Upserted variants")
	return written, nil
}

// ListByGene returns the whole stored cohort of gene, with the per-submission
// significances attached.
func (r *VariantRepository) ListByGene(ctx context.Context, gene string) ([]*domain.VariantRecord, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE gene_symbol = $1 ORDER BY variation_id`

	records, err := r.queryVariants(ctx, query, gene)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"gene_symbol": gene,
			"error":       err,
		}).Error("Failed to get variants by gene")
		return nil, fmt.Errorf("getting variants by gene: %w", err)
	}

	sigs, err := r.SubmissionSignificances(ctx, gene)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec.SubmissionSignificances = sigs[rec.VariationID]
	}
	return records, nil
}

// GetByVariationID retrieves one variant by its ClinVar VariationID.
func (r *VariantRepository) GetByVariationID(ctx context.Context, id int64) (*domain.VariantRecord, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE variation_id = $1`

	rec, err := scanVariant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("variant %d: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"variation_id": id,
			"error":        err,
		}).Error("Failed to get variant by ID")
		return nil, fmt.Errorf("getting variant by ID: %w", err)
	}

	sigs, err := r.submissionSignificancesWhere(ctx, "variation_id = $1", id)
	if err != nil {
		return nil, err
	}
	rec.SubmissionSignificances = sigs[id]
	return rec, nil
}

// Query lists variants matching filter, ordered by VariationID.
func (r *VariantRepository) Query(ctx context.Context, filter VariantFilter) ([]*domain.VariantRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Gene != "" {
		add("gene_symbol = $%d", filter.Gene)
	}
	if filter.Significance != "" {
		add("clinical_significance = $%d", filter.Significance.String())
	}
	if filter.Conflicted != nil {
		add("COALESCE(conflicted, false) = $%d", *filter.Conflicted)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	limit = min(limit, maxQueryLimit)
	offset := max(filter.Offset, 0)

	query := `SELECT ` + variantColumns + ` FROM variants`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY variation_id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	records, err := r.queryVariants(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	return records, nil
}

// SaveEvidence stores the evaluation output of cohort members.
func (r *VariantRepository) SaveEvidence(ctx context.Context, evaluations []domain.Evaluation) error {
	batch := &pgx.Batch{}
	for _, ev := range evaluations {
		if ev.Target == nil || ev.Target.VariationID == 0 {
			continue
		}
		codes, err := json.Marshal(nonNilCodes(ev.Codes))
		if err != nil {
			return fmt.Errorf("encoding evidence codes: %w", err)
		}
		batch.Queue(`
			UPDATE variants
			SET evidence_codes = $2, conflicted = $3, conflict_score = $4, updated_at = NOW()
			WHERE variation_id = $1`,
			ev.Target.VariationID, codes, ev.Conflicted, ev.ConflictScore)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		r.log.WithError(err).Error("Failed to save evidence codes")
		return fmt.Errorf("saving evidence: %w", err)
	}

	r.log.WithField("variants", batch.Len()).Debug("Saved evidence codes")
	return nil
}

// UpsertSubmissions inserts or replaces SCV rows.
func (r *VariantRepository) UpsertSubmissions(ctx context.Context, subs []domain.Submission) (int, error) {
	const query = `
		INSERT INTO submissions (
			scv, variation_id, clinical_significance, significance_text, review_status,
			collection_method, submitter, submitted_gene_symbol, date_last_evaluated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (scv) DO UPDATE SET
			variation_id = EXCLUDED.variation_id,
			clinical_significance = EXCLUDED.clinical_significance,
			significance_text = EXCLUDED.significance_text,
			review_status = EXCLUDED.review_status,
			collection_method = EXCLUDED.collection_method,
			submitter = EXCLUDED.submitter,
			submitted_gene_symbol = EXCLUDED.submitted_gene_symbol,
			date_last_evaluated = EXCLUDED.date_last_evaluated`

	written := 0
	for lo := 0; lo < len(subs); lo += batchSize {
		hi := min(lo+batchSize, len(subs))

		batch := &pgx.Batch{}
		for _, s := range subs[lo:hi] {
			if s.SCV == "" {
				continue
			}
			batch.Queue(query,
				s.SCV, s.VariationID, s.Significance.String(), s.SignificanceText, s.ReviewStatus,
				s.CollectionMethod, s.Submitter, s.SubmittedGene, s.DateLastEvaluated)
		}
		if batch.Len() == 0 {
			continue
		}
		if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
			return written, fmt.Errorf("upserting submissions: %w", err)
		}
		written += batch.Len()
	}

	r.log.WithField("submissions", written).Info("Upserted submissions")
	return written, nil
}

// SubmissionSignificances returns the per-SCV significances of every variant
// of gene, keyed by VariationID.
func (r *VariantRepository) SubmissionSignificances(ctx context.Context, gene string) (map[int64][]domain.ClinicalSignificance, error) {
	return r.submissionSignificancesWhere(ctx,
		"variation_id IN (SELECT variation_id FROM variants WHERE gene_symbol = $1)", gene)
}

func (r *VariantRepository) submissionSignificancesWhere(ctx context.Context, cond string, arg any) (map[int64][]domain.ClinicalSignificance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT variation_id, clinical_significance FROM submissions WHERE `+cond+` ORDER BY variation_id, scv`, arg)
	if err != nil {
		return nil, fmt.Errorf("getting submission significances: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.ClinicalSignificance)
	for rows.Next() {
		var (
			id  int64
			sig string
		)
		if err := rows.Scan(&id, &sig); err != nil {
			return nil, fmt.Errorf("scanning submission row: %w", err)
		}
		out[id] = append(out[id], domain.ClinicalSignificance(sig))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission rows: %w", err)
	}
	return out, nil
}

// RecordRelease marks release as ingested.
func (r *VariantRepository) RecordRelease(ctx context.Context, release domain.Release, variants, submissions int) error {
	downloaded := release.DownloadedAt
	if downloaded.IsZero() {
		downloaded = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO clinvar_releases (release_date, version, downloaded_at, variants, submissions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (release_date) DO UPDATE SET
			version = EXCLUDED.version,
			downloaded_at = EXCLUDED.downloaded_at,
			variants = EXCLUDED.variants,
			submissions = EXCLUDED.submissions`,
		release.Date, release.Tag(), downloaded, variants, submissions)
	if err != nil {
		return fmt.Errorf("recording release %s: %w", release.Tag(), err)
	}
	return nil
}

// LatestRelease returns the newest ingested release, or ErrNotFound.
func (r *VariantRepository) LatestRelease(ctx context.Context) (*domain.Release, error) {
	var rel domain.Release
	err := r.db.QueryRow(ctx, `
		SELECT release_date, version, downloaded_at
		FROM clinvar_releases ORDER BY release_date DESC LIMIT 1`,
	).Scan(&rel.Date, &rel.Version, &rel.DownloadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("latest release: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting latest release: %w", err)
	}
	return &rel, nil
}

func (r *VariantRepository) queryVariants(ctx context.Context, query string, args ...any) ([]*domain.VariantRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.VariantRecord
	for rows.Next() {
		rec, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning variant row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variant rows: %w", err)
	}
	return records, nil
}

func scanVariant(row pgx.Row) (*domain.VariantRecord, error) {
	var (
		rec          domain.VariantRecord
		consequence  string
		significance string
		evidence     []byte
	)
	err := row.Scan(
		&rec.VariationID,
		&rec.GeneSymbol,
		&rec.TranscriptID,
		&rec.NucleotideChange,
		&rec.ProteinChange,
		&rec.CodonPosition,
		&rec.OtherDescriptor,
		&consequence,
		&significance,
		&rec.SignificanceText,
		&rec.ReviewStatus,
		&rec.SubmitterCount,
		&rec.SubmitterCategories,
		&rec.Assembly,
		&rec.Chromosome,
		&rec.RCVAccessions,
		&rec.PhenotypeList,
		&rec.LastEvaluated,
		&evidence,
	)
	if err != nil {
		return nil, err
	}

	rec.Consequence = domain.MolecularConsequence(consequence)
	rec.Significance = domain.ClinicalSignificance(significance)

	if evidence != nil {
		var codes []domain.EvidenceCode
		if err := json.Unmarshal(evidence, &codes); err != nil {
			return nil, fmt.Errorf("decoding evidence codes of %d: %w", rec.VariationID, err)
		}
		if err := rec.SetEvidence(codes); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilCodes(v []domain.EvidenceCode) []domain.EvidenceCode {
	if v == nil {
		return []domain.EvidenceCode{}
	}
	return v
}
