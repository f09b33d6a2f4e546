// Package main provides the genekor command-line tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliaanaa/genekor/internal/config"
	"github.com/iliaanaa/genekor/internal/domain"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// env carries what every subcommand needs once the root has loaded it.
type env struct {
	configFile string
	logLevel   string

	manager *config.Manager
	lite    *config.LiteConfig
	logger  *logrus.Logger
	closer  io.Closer
}

func (e *env) cfg() *domain.Config {
	return e.manager.GetConfig()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:   "genekor",
		Short: "Evaluate ClinVar variants against the PS1, PM5, PP5 and BP6 criteria",
		Long: `genekor downloads ClinVar releases, loads them into PostgreSQL or reads
them straight from disk, and assigns the database evidence codes of the
ACMG/AMP guidelines (PS1, PM5, PP5, BP6) to target variants.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.closer != nil {
				e.closer.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&e.configFile, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/genekor/config.yaml)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newDownloadCmd(e))
	cmd.AddCommand(newUpdateCmd(e))
	cmd.AddCommand(newIngestCmd(e))
	cmd.AddCommand(newEvaluateCmd(e))
	cmd.AddCommand(newServeCmd(e))
	cmd.AddCommand(newConfigCmd(e))

	return cmd
}

// load reads configuration and builds the logger.
func (e *env) load() error {
	e.lite = config.LoadLiteConfig()

	m, err := config.NewManager(e.configFile)
	if err != nil {
		return err
	}
	e.manager = m

	logCfg := m.GetConfig().Logging
	if e.logLevel != "" {
		logCfg.Level = e.logLevel
	}
	// stdout carries command output
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, closer, err := config.NewLogger(logCfg)
	if err != nil {
		return err
	}
	e.logger, e.closer = logger, closer
	return nil
}
