package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliaanaa/genekor/pkg/external"
)

func newDownloadCmd(e *env) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the latest ClinVar variant and submission summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = e.lite.DownloadDir()
			}
			return runDownload(cmd, e, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "download directory (default: $GENEKOR_DATA_DIR/data)")
	return cmd
}

func newUpdateCmd(e *env) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download a new ClinVar release if one was published",
		Long: `update compares the release date in ClinVar's README with the locally
recorded one and downloads only when the remote release is newer. ClinVar
publishes on the first Thursday of the month, so the check runs from the
following Friday on; --force skips both the window and the date comparison.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = e.lite.DownloadDir()
			}
			return runUpdate(cmd, e, dir, force)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "download directory (default: $GENEKOR_DATA_DIR/data)")
	cmd.Flags().BoolVar(&force, "force", false, "download even when up to date or outside the release window")
	return cmd
}

func runDownload(cmd *cobra.Command, e *env, dir string) error {
	ctx := cmd.Context()
	client := external.NewClinVarClient(e.cfg().ClinVar, e.logger)

	release, err := client.LatestRelease(ctx)
	if err != nil {
		return err
	}
	variants, submissions, err := client.DownloadRelease(ctx, dir)
	if err != nil {
		return err
	}
	if err := external.SaveMetadata(e.lite.MetadataPath(), release.Date, time.Now()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ClinVar release %s\n  %s\n  %s\n", release.Tag(), variants, submissions)
	return nil
}

func runUpdate(cmd *cobra.Command, e *env, dir string, force bool) error {
	now := time.Now()
	if !force && !external.UpdateWindowOpen(now) {
		fmt.Fprintf(cmd.OutOrStdout(), "No update check before %s\n",
			external.FirstThursday(now).AddDate(0, 0, 1).Format("2006-01-02"))
		return nil
	}

	local, err := external.LoadMetadata(e.lite.MetadataPath())
	if err != nil {
		return err
	}

	client := external.NewClinVarClient(e.cfg().ClinVar, e.logger)
	remote, err := client.LatestRelease(cmd.Context())
	if err != nil {
		return err
	}

	fields := logrus.Fields{"remote": remote.Tag(), "force": force}
	if local != nil {
		fields["local"] = local.ReleaseDate
	}
	if !external.NeedsUpdate(remote.Date, local, force) {
		e.logger.WithFields(fields).Info("ClinVar data is up to date")
		fmt.Fprintf(cmd.OutOrStdout(), "Up to date (release %s)\n", remote.Tag())
		return nil
	}

	e.logger.WithFields(fields).Info("Downloading new ClinVar release")
	return runDownload(cmd, e, dir)
}
