package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/iliaanaa/genekor/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. GENEKOR_SERVER_PORT.
const EnvPrefix = "GENEKOR"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager loads configuration from file (when non-empty), otherwise from
// config.yaml in the usual search paths, then from the environment.
func NewManager(file string) (*Manager, error) {
	m := &Manager{v: viper.New(), file: file}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v
	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/genekor/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Without an explicit file, a missing config.yaml is fine: defaults and
	// environment still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.environment", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "clinvar")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.index_cache_size", 64)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")

	// ClinVar defaults
	v.SetDefault("clinvar.base_url", "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/")
	v.SetDefault("clinvar.timeout", "10m")
	v.SetDefault("clinvar.rate_limit", 3)
	v.SetDefault("clinvar.retry_count", 3)
	v.SetDefault("clinvar.retry_backoff", "1.5s")
	v.SetDefault("clinvar.download_dir", "data")
	v.SetDefault("clinvar.metadata_file", "metadata/clinvar_metadata.json")
	v.SetDefault("clinvar.variant_file", "")
	v.SetDefault("clinvar.submission_file", "")
	v.SetDefault("clinvar.assembly", "GRCh38")

	// Evaluation defaults
	v.SetDefault("evaluation.min_submitters", 3)
	v.SetDefault("evaluation.admissible_categories", []int{2, 3})
	v.SetDefault("evaluation.pm5_accept_likely_pathogenic", false)
	v.SetDefault("evaluation.workers", 0)

	// Results defaults
	v.SetDefault("results.driver", "sqlite")
	v.SetDefault("results.dsn", "data/results.db")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetEvaluationConfig returns the reliability and rule settings
func (m *Manager) GetEvaluationConfig() *domain.EvaluationConfig {
	return &m.config.Evaluation
}

// Get returns the effective value of one dotted key.
func (m *Manager) Get(key string) any {
	return m.v.Get(key)
}

// AllSettings returns the merged settings as nested maps.
func (m *Manager) AllSettings() map[string]any {
	return m.v.AllSettings()
}

// IsSet reports whether key is known, from defaults or any source.
func (m *Manager) IsSet(key string) bool {
	return m.v.IsSet(key)
}

// Set overrides key and, when path is non-empty, writes the merged settings
// there.
func (m *Manager) Set(key string, value any, path string) error {
	m.v.Set(key, value)
	if path != "" {
		if err := m.v.WriteConfigAs(path); err != nil {
			return fmt.Errorf("writing config %s: %w", path, err)
		}
	}
	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = config
	return nil
}

// ConfigFileUsed returns the file the settings were read from, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	m.v = viper.New()
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.ClinVar.BaseURL == "" {
		return fmt.Errorf("ClinVar base URL is required")
	}
	if _, err := url.ParseRequestURI(config.ClinVar.BaseURL); err != nil {
		return fmt.Errorf("invalid ClinVar base URL: %w", err)
	}

	if config.Evaluation.MinSubmitters < 1 {
		return fmt.Errorf("evaluation.min_submitters must be at least 1, got %d", config.Evaluation.MinSubmitters)
	}
	if config.Evaluation.Workers < 0 {
		return fmt.Errorf("evaluation.workers must not be negative")
	}

	switch config.Results.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported results driver: %s", config.Results.Driver)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Server.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Server.Environment)
	return env == "development" || env == "dev" || env == ""
}
