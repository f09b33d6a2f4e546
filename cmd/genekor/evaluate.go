package main

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliaanaa/genekor/internal/app"
	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/internal/export"
	"github.com/iliaanaa/genekor/internal/ingest"
	"github.com/iliaanaa/genekor/internal/results"
	"github.com/iliaanaa/genekor/internal/service"
	"github.com/iliaanaa/genekor/pkg/external"
)

type evaluateOptions struct {
	variants    string
	submissions string
	gene        string
	targets     string
	name        string
	format      string
	out         string
	workers     int
	useDB       bool
	save        bool
	release     string
}

func newEvaluateCmd(e *env) *cobra.Command {
	var o evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Assign PS1, PM5, PP5 and BP6 to target variants",
		Long: `evaluate builds the reference cohort of one gene, either from ClinVar
summary files or, with --db, from PostgreSQL, and evaluates the targets
against it. Without --targets or --name every cohort member is evaluated
against the rest of the cohort.`,
		Example: `  genekor evaluate --gene BRCA1 --name "NM_007294.4(BRCA1):c.5123C>T (p.Ala1708Val)"
  genekor evaluate --gene TP53 --targets targets.tsv --format json --out tp53.json
  genekor evaluate --gene BRCA2 --db --out brca2.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.targets != "" && o.name != "" {
				return errors.New("--targets and --name are mutually exclusive")
			}
			if cmd.Flags().Changed("workers") {
				e.cfg().Evaluation.Workers = o.workers
			}
			return runEvaluate(cmd, e, o)
		},
	}

	cmd.Flags().StringVar(&o.gene, "gene", "", "gene whose cohort is the reference (required)")
	cmd.Flags().StringVar(&o.variants, "variants", "", "variant_summary file (default: downloaded release)")
	cmd.Flags().StringVar(&o.submissions, "submissions", "", "submission_summary file (default: downloaded release, skipped if absent)")
	cmd.Flags().StringVar(&o.targets, "targets", "", "TSV or CSV file of targets")
	cmd.Flags().StringVar(&o.name, "name", "", "single target as a ClinVar-style name")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format: tsv, json or duckdb (default: from --out extension, else tsv)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "evaluation workers (default: evaluation.workers, 0 = one per CPU)")
	cmd.Flags().BoolVar(&o.useDB, "db", false, "read the cohort from PostgreSQL instead of files")
	cmd.Flags().BoolVar(&o.save, "save", true, "record the run in the results database")
	cmd.Flags().StringVar(&o.release, "release", "", "release date YYYYMMDD for file cohorts (default: from download metadata)")
	_ = cmd.MarkFlagRequired("gene")

	return cmd
}

func runEvaluate(cmd *cobra.Command, e *env, o evaluateOptions) error {
	ctx := cmd.Context()
	gene := strings.TrimSpace(o.gene)

	format, err := outputFormat(o.format, o.out)
	if err != nil {
		return err
	}

	targets, err := loadTargets(gene, o.targets, o.name)
	if err != nil {
		return err
	}

	var (
		pipeline *service.Pipeline
		tracker  domain.ReleaseTracker
		store    *results.Store
	)
	if o.useDB {
		a, err := app.Open(ctx, e.cfg(), e.logger)
		if err != nil {
			return err
		}
		defer a.Close()
		pipeline, tracker, store = a.Pipeline, a.Variants, a.Results
	} else {
		pipeline, tracker, err = filePipeline(cmd, e, o, gene)
		if err != nil {
			return err
		}
		if o.save {
			if err := e.lite.EnsureDataDir(); err != nil {
				return err
			}
			store, err = results.NewSQLiteStore(e.lite.ResultsDBPath(), e.logger)
			if err != nil {
				return err
			}
			defer store.Close()
		}
	}

	started := time.Now().UTC()
	evaluations, err := pipeline.EvaluateGene(ctx, gene, targets)
	if err != nil {
		return err
	}

	releaseTag := ""
	if rel, err := tracker.LatestRelease(ctx); err == nil {
		releaseTag = rel.Tag()
	}

	if o.out == "" {
		err = export.Write(cmd.OutOrStdout(), format, releaseTag, evaluations)
	} else {
		err = export.WriteFile(ctx, o.out, format, releaseTag, evaluations)
	}
	if err != nil {
		return err
	}

	if o.save && store != nil {
		if err := saveRun(ctx, store, e.logger, gene, releaseTag, started, evaluations); err != nil {
			e.logger.WithError(err).Warn("Failed to record evaluation run")
		}
	}
	return nil
}

func outputFormat(flag, out string) (export.Format, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if out != "" {
		return export.FormatFromPath(out), nil
	}
	return export.FormatTSV, nil
}

// loadTargets returns nil for a cohort run.
func loadTargets(gene, file, name string) ([]*domain.VariantRecord, error) {
	switch {
	case file != "":
		return ingest.ReadTargets(file, gene)
	case name != "":
		t, err := ingest.TargetFromName(gene, name)
		if err != nil {
			return nil, err
		}
		return []*domain.VariantRecord{t}, nil
	default:
		return nil, nil
	}
}

// filePipeline loads the cohort of gene from summary files into memory.
func filePipeline(cmd *cobra.Command, e *env, o evaluateOptions, gene string) (*service.Pipeline, domain.ReleaseTracker, error) {
	dir := e.lite.DownloadDir()
	variants := o.variants
	if variants == "" {
		variants = filepath.Join(dir, path.Base(external.VariantSummaryFile))
	}
	submissions := o.submissions
	if submissions == "" {
		candidate := filepath.Join(dir, path.Base(external.SubmissionSummaryFile))
		if _, err := os.Stat(candidate); err == nil {
			submissions = candidate
		}
	}

	release, err := resolveRelease(e, o.release)
	if err != nil {
		return nil, nil, err
	}

	cfg := e.cfg()
	records, _, err := loadCohort(cmd, e, variants, submissions, ingest.Filter{Genes: []string{gene}, Assembly: cfg.ClinVar.Assembly})
	if err != nil {
		return nil, nil, err
	}

	source := service.NewMemorySource(records, release)
	evaluator := service.NewEvaluatorFromConfig(cfg.Evaluation, e.logger)
	indexes := service.NewIndexCache(e.lite.IndexCacheSize, e.lite.IndexCacheTTL, e.logger)
	pipeline := service.NewPipeline(source, evaluator, indexes, e.logger,
		service.WithReleaseTracker(source),
		service.WithWorkers(cfg.Evaluation.Workers),
	)
	return pipeline, source, nil
}

func saveRun(ctx context.Context, store *results.Store, logger *logrus.Logger, gene, release string, started time.Time, evaluations []domain.Evaluation) error {
	run := &domain.EvaluationRun{
		ID:         uuid.NewString(),
		Release:    release,
		Gene:       gene,
		Targets:    len(evaluations),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	for _, ev := range evaluations {
		if len(ev.Codes) > 0 {
			run.WithCodes++
		}
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}
	if _, err := store.SaveEvaluations(ctx, run.ID, evaluations); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"run_id": run.ID, "gene": gene, "with_codes": run.WithCodes}).Info("Recorded evaluation run")
	return nil
}
