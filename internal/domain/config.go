package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	ClinVar    ClinVarConfig    `mapstructure:"clinvar" yaml:"clinvar"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Results    ResultsConfig    `mapstructure:"results" yaml:"results"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Database        string        `mapstructure:"database" yaml:"database"`
	Username        string        `mapstructure:"username" yaml:"username"`
	Password        string        `mapstructure:"password" yaml:"-"`
	SSLMode         string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path" yaml:"migrations_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL       string        `mapstructure:"redis_url" yaml:"redis_url"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	PoolSize       int           `mapstructure:"pool_size" yaml:"pool_size"`
	PoolTimeout    time.Duration `mapstructure:"pool_timeout" yaml:"pool_timeout"`
	IndexCacheSize int           `mapstructure:"index_cache_size" yaml:"index_cache_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	Format   string `mapstructure:"format" yaml:"format"`
	Output   string `mapstructure:"output" yaml:"output"`
	Filename string `mapstructure:"filename" yaml:"filename"`
}

// ClinVarConfig represents the ClinVar FTP mirror and local download settings
type ClinVarConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	RetryCount     int           `mapstructure:"retry_count" yaml:"retry_count"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	DownloadDir    string        `mapstructure:"download_dir" yaml:"download_dir"`
	MetadataFile   string        `mapstructure:"metadata_file" yaml:"metadata_file"`
	VariantFile    string        `mapstructure:"variant_file" yaml:"variant_file"`
	SubmissionFile string        `mapstructure:"submission_file" yaml:"submission_file"`
	Assembly       string        `mapstructure:"assembly" yaml:"assembly"`
}

// EvaluationConfig holds the reliability and rule policy knobs
type EvaluationConfig struct {
	MinSubmitters             int   `mapstructure:"min_submitters" yaml:"min_submitters"`
	AdmissibleCategories      []int `mapstructure:"admissible_categories" yaml:"admissible_categories"`
	PM5AcceptLikelyPathogenic bool  `mapstructure:"pm5_accept_likely_pathogenic" yaml:"pm5_accept_likely_pathogenic"`
	Workers                   int   `mapstructure:"workers" yaml:"workers"`
}

// ResultsConfig selects where evaluation runs are stored
type ResultsConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}
