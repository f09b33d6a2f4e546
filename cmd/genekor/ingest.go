package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliaanaa/genekor/internal/database"
	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/internal/ingest"
	"github.com/iliaanaa/genekor/internal/repository"
	"github.com/iliaanaa/genekor/pkg/external"
)

type ingestOptions struct {
	variants    string
	submissions string
	genes       []string
	assembly    string
	release     string
}

func newIngestCmd(e *env) *cobra.Command {
	var o ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load ClinVar summaries into PostgreSQL",
		Example: `  genekor ingest --gene BRCA1 --gene BRCA2
  genekor ingest --variants variant_summary.txt.gz --submissions submission_summary.txt.gz --release 20240502`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.defaults(e)
			return runIngest(cmd, e, o)
		},
	}

	cmd.Flags().StringVar(&o.variants, "variants", "", "variant_summary file (default: downloaded release)")
	cmd.Flags().StringVar(&o.submissions, "submissions", "", "submission_summary file (default: downloaded release, skipped if absent)")
	cmd.Flags().StringSliceVar(&o.genes, "gene", nil, "genes to keep (repeatable; default: all)")
	cmd.Flags().StringVar(&o.assembly, "assembly", "", "genome assembly to keep, or * for any (default: clinvar.assembly)")
	cmd.Flags().StringVar(&o.release, "release", "", "release date YYYYMMDD (default: from download metadata)")
	return cmd
}

func (o *ingestOptions) defaults(e *env) {
	dir := e.lite.DownloadDir()
	if o.variants == "" {
		o.variants = filepath.Join(dir, path.Base(external.VariantSummaryFile))
	}
	if o.submissions == "" {
		candidate := filepath.Join(dir, path.Base(external.SubmissionSummaryFile))
		if _, err := os.Stat(candidate); err == nil {
			o.submissions = candidate
		}
	}
	if o.assembly == "" {
		o.assembly = e.cfg().ClinVar.Assembly
	}
}

// resolveRelease picks the release from the flag or the download metadata.
func resolveRelease(e *env, flag string) (*domain.Release, error) {
	if flag != "" {
		d, err := time.Parse("20060102", flag)
		if err != nil {
			return nil, fmt.Errorf("invalid --release %q: %w", flag, err)
		}
		return &domain.Release{Date: d, Version: flag}, nil
	}
	meta, err := external.LoadMetadata(e.lite.MetadataPath())
	if err != nil || meta == nil {
		return nil, err
	}
	d, err := meta.Release()
	if err != nil {
		return nil, err
	}
	return &domain.Release{Date: d, Version: meta.ReleaseDate}, nil
}

// loadCohort reads variant and, when given, submission summaries and joins them.
func loadCohort(cmd *cobra.Command, e *env, variantsPath, submissionsPath string, filter ingest.Filter) ([]*domain.VariantRecord, []domain.Submission, error) {
	ctx := cmd.Context()

	records, stats, err := ingest.NewVariantSummaryReader(filter, e.logger).ReadFile(ctx, variantsPath)
	if err != nil {
		return nil, nil, err
	}
	e.logger.WithFields(logrus.Fields{"read": stats.Read, "kept": stats.Kept, "skipped": stats.Skipped}).Info("Variant summary loaded")

	if submissionsPath == "" {
		return records, nil, nil
	}
	subs, _, err := ingest.ForRecords(records, e.logger).ReadFile(ctx, submissionsPath)
	if err != nil {
		return nil, nil, err
	}
	attached := ingest.AttachSubmissions(records, subs)
	e.logger.WithFields(logrus.Fields{"submissions": len(subs), "records": attached}).Info("Submissions attached")
	return records, subs, nil
}

func runIngest(cmd *cobra.Command, e *env, o ingestOptions) error {
	ctx := cmd.Context()
	cfg := e.cfg()

	release, err := resolveRelease(e, o.release)
	if err != nil {
		return err
	}

	records, subs, err := loadCohort(cmd, e, o.variants, o.submissions, ingest.Filter{Genes: o.genes, Assembly: o.assembly})
	if err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, cfg.Database, e.logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(database.URL(cfg.Database), cfg.Database.MigrationsPath, e.logger); err != nil {
		return err
	}

	repo := repository.NewVariantRepository(db.Pool, e.logger)
	nVariants, err := repo.UpsertVariants(ctx, records)
	if err != nil {
		return err
	}
	nSubs, err := repo.UpsertSubmissions(ctx, subs)
	if err != nil {
		return err
	}

	if release != nil {
		if err := repo.RecordRelease(ctx, *release, nVariants, nSubs); err != nil {
			return err
		}
		invalidateCache(cmd, e, release.Tag())
	} else {
		e.logger.Warn("Release unknown; run download first or pass --release")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d variants and %d submissions\n", nVariants, nSubs)
	return nil
}

// invalidateCache drops cached evaluations of a release that was re-ingested.
func invalidateCache(cmd *cobra.Command, e *env, tag string) {
	cfg := e.cfg().Cache
	if cfg.RedisURL == "" {
		return
	}
	cache, err := external.NewResultCache(cfg, e.logger)
	if err != nil {
		e.logger.WithError(err).Warn("Evaluation cache unavailable; stale entries may remain")
		return
	}
	defer cache.Close()

	n, err := cache.InvalidateRelease(cmd.Context(), tag)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to invalidate evaluation cache")
		return
	}
	e.logger.WithFields(logrus.Fields{"release": tag, "entries": n}).Info("Invalidated cached evaluations")
}
