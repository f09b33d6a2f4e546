// Package config loads genekor settings. Manager reads config.yaml and
// GENEKOR_* overrides through viper; LiteConfig covers the standalone CLI,
// which needs no database server.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for downloads, metadata and results

	// Index cache
	IndexCacheSize int           // Maximum reference indexes kept in memory
	IndexCacheTTL  time.Duration // Zero keeps indexes until evicted

	// ClinVar mirror
	ClinVarBaseURL string

	// Evaluation
	Workers int // Zero means one per CPU

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".genekor")

	return &LiteConfig{
		DataDir:        dataDir,
		IndexCacheSize: 64,
		ClinVarBaseURL: "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("GENEKOR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("GENEKOR_INDEX_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IndexCacheSize = n
		}
	}
	if v := os.Getenv("GENEKOR_INDEX_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IndexCacheTTL = d
		}
	}

	if v := os.Getenv("GENEKOR_CLINVAR_BASE_URL"); v != "" {
		cfg.ClinVarBaseURL = v
	}

	if v := os.Getenv("GENEKOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("GENEKOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GENEKOR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ResultsDBPath returns the path to the evaluation results SQLite database.
func (c *LiteConfig) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// DownloadDir returns the directory ClinVar dumps are downloaded to.
func (c *LiteConfig) DownloadDir() string {
	return filepath.Join(c.DataDir, "data")
}

// MetadataPath returns the release metadata file.
func (c *LiteConfig) MetadataPath() string {
	return filepath.Join(c.DataDir, "metadata", "clinvar_metadata.json")
}

// ExportDir returns the directory for evaluation exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory tree if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.DownloadDir(), filepath.Dir(c.MetadataPath()), c.ExportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
