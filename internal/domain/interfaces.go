package domain

import (
	"context"
)

// VariantSource supplies the reference cohort for a gene
type VariantSource interface {
	ListByGene(ctx context.Context, gene string) ([]*VariantRecord, error)
}

// EvidenceSink persists evidence codes assigned to cohort members
type EvidenceSink interface {
	SaveEvidence(ctx context.Context, evaluations []Evaluation) error
}

// EvaluationCache stores finished evaluations keyed by release and change
type EvaluationCache interface {
	Get(ctx context.Context, release string, target *VariantRecord) (*Evaluation, bool)
	Set(ctx context.Context, release string, evaluation *Evaluation) error
}

// ReleaseTracker reports the ClinVar release the stored cohort came from
type ReleaseTracker interface {
	LatestRelease(ctx context.Context) (*Release, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetEvaluationConfig() *EvaluationConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
