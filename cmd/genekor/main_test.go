package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliaanaa/genekor/internal/results"
)

const summaryFixture = "#AlleleID\tType\tName\tGeneSymbol\tClinicalSignificance\tClinSigSimple\tLastEvaluated\tRCVaccession\tPhenotypeList\tAssembly\tChromosome\tReviewStatus\tNumberSubmitters\tSubmitterCategories\tVariationID\n" +
	"15040\tsingle nucleotide variant\tNM_007294.4(BRCA1):c.1510A>T (p.Arg504Gly)\tBRCA1\tPathogenic\t1\tJun 03, 2019\tRCV000031104\t-\tGRCh38\t17\treviewed by expert panel\t4\t3\t55555\n" +
	"15041\tsingle nucleotide variant\tNM_007294.4(BRCA1):c.300C>T (p.Leu100=)\tBRCA1\tBenign\t0\t-\t-\t-\tGRCh38\t17\tcriteria provided, multiple submitters, no conflicts\t3\t2\t55556\n"

// execute runs the root command with a fresh config file and data dir.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GENEKOR_DATA_DIR", dataDir)

	cfgPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o644))
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSummary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "variant_summary.txt")
	require.NoError(t, os.WriteFile(path, []byte(summaryFixture), 0o644))
	return path
}

func TestConfigGetSet(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "config", "get", "evaluation.min_submitters")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, dir, "config", "set", "evaluation.min_submitters", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Set evaluation.min_submitters = 5")

	out, err = execute(t, dir, "config", "get", "evaluation.min_submitters")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = execute(t, dir, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "min_submitters: 5")

	_, err = execute(t, dir, "config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestEvaluateFromFiles(t *testing.T) {
	dir := t.TempDir()
	variants := writeSummary(t, dir)

	out, err := execute(t, dir, "evaluate",
		"--variants", variants,
		"--gene", "BRCA1",
		"--name", "NM_007294.4(BRCA1):c.1510A>C (p.Arg504Gly)",
		"--release", "20240502",
	)
	require.NoError(t, err, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "gene\t"))
	assert.Contains(t, lines[1], "c.1510A>C")
	assert.Contains(t, lines[1], "PS1")

	store, err := results.NewSQLiteStore(filepath.Join(dir, "results.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BRCA1", run.Gene)
	assert.Equal(t, "20240502", run.Release)
	assert.Equal(t, 1, run.WithCodes)
}

func TestEvaluateCohortToJSON(t *testing.T) {
	dir := t.TempDir()
	variants := writeSummary(t, dir)
	outPath := filepath.Join(dir, "brca1.json")

	_, err := execute(t, dir, "evaluate",
		"--variants", variants,
		"--gene", "BRCA1",
		"--out", outPath,
		"--save=false",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var report struct {
		Count       int               `json:"count"`
		Evaluations []json.RawMessage `json:"evaluations"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Count)
	assert.Len(t, report.Evaluations, 2)

	_, err = os.Stat(filepath.Join(dir, "results.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestEvaluateFlagErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "evaluate", "--name", "c.1A>G")
	assert.Error(t, err, "gene is required")

	_, err = execute(t, dir, "evaluate", "--gene", "BRCA1", "--name", "x", "--targets", "y")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = execute(t, dir, "evaluate", "--gene", "BRCA1", "--format", "xml", "--variants", writeSummary(t, dir))
	assert.ErrorContains(t, err, "unknown export format")
}
