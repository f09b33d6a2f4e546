package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, ".genekor", filepath.Base(cfg.DataDir))
	assert.Equal(t, 64, cfg.IndexCacheSize)
	assert.Zero(t, cfg.IndexCacheTTL)
	assert.Zero(t, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 64, cfg.IndexCacheSize)
	assert.Equal(t, "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/", cfg.ClinVarBaseURL)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("GENEKOR_DATA_DIR", "/tmp/test-genekor")
	t.Setenv("GENEKOR_INDEX_CACHE_SIZE", "8")
	t.Setenv("GENEKOR_INDEX_CACHE_TTL", "12h")
	t.Setenv("GENEKOR_CLINVAR_BASE_URL", "http://mirror.local/clinvar/")
	t.Setenv("GENEKOR_WORKERS", "4")
	t.Setenv("GENEKOR_LOG_LEVEL", "debug")
	t.Setenv("GENEKOR_LOG_FORMAT", "json")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-genekor", cfg.DataDir)
	assert.Equal(t, 8, cfg.IndexCacheSize)
	assert.Equal(t, 12*time.Hour, cfg.IndexCacheTTL)
	assert.Equal(t, "http://mirror.local/clinvar/", cfg.ClinVarBaseURL)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_IgnoresInvalidNumbers(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("GENEKOR_INDEX_CACHE_SIZE", "-3")
	t.Setenv("GENEKOR_WORKERS", "many")

	cfg := LoadLiteConfig()

	assert.Equal(t, 64, cfg.IndexCacheSize)
	assert.Zero(t, cfg.Workers)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.genekor"}

	assert.Equal(t, "/home/user/.genekor/results.db", cfg.ResultsDBPath())
	assert.Equal(t, "/home/user/.genekor/data", cfg.DownloadDir())
	assert.Equal(t, "/home/user/.genekor/metadata/clinvar_metadata.json", cfg.MetadataPath())
	assert.Equal(t, "/home/user/.genekor/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "genekor")}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	for _, dir := range []string{cfg.DataDir, cfg.DownloadDir(), filepath.Dir(cfg.MetadataPath()), cfg.ExportDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"GENEKOR_DATA_DIR",
		"GENEKOR_INDEX_CACHE_SIZE",
		"GENEKOR_INDEX_CACHE_TTL",
		"GENEKOR_CLINVAR_BASE_URL",
		"GENEKOR_WORKERS",
		"GENEKOR_LOG_LEVEL",
		"GENEKOR_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the original value after the test.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
