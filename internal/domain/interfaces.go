package domain

import (
	"context"
)

// RuleStore is the read interface of the external, administrator-editable
// rule collection. The engine reads it, never writes it.
type RuleStore interface {
	// Version returns the current store version marker. Any change an
	// administrator makes bumps the version.
	Version(ctx context.Context) (string, error)
	// LoadSnapshot bulk-fetches all rule tables into a validated,
	// consistent snapshot.
	LoadSnapshot(ctx context.Context) (*RuleSnapshot, error)
}

// SnapshotResolver supplies the consistent rule snapshot an evaluation runs
// against, caching by store version.
type SnapshotResolver interface {
	Resolve(ctx context.Context) (*RuleSnapshot, error)
}

// RemoteDiagnosisProvider is the external AI collaborator. The engine only
// consumes its ranked output; scoring of that path is owned externally.
type RemoteDiagnosisProvider interface {
	Diagnose(ctx context.Context, patient PatientContext, selected []SelectedSymptom) ([]RemoteDiagnosis, error)
}

// ConfigManager provides access to application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetScoringConfig() *ScoringConfig
	Validate() error
}
