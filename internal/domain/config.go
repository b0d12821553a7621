package domain

import (
	"time"
)

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig represents rule store database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ScoringConfig holds the administrable weighting policy. These constants
// are policy, not hard-coded physiology: they are tunable per deployment
// without code changes and are passed into the scorer explicitly.
type ScoringConfig struct {
	MildWeight     float64 `mapstructure:"mild_weight"`
	ModerateWeight float64 `mapstructure:"moderate_weight"`
	SevereWeight   float64 `mapstructure:"severe_weight"`
	// FollowUpCapRatio bounds the net follow-up adjustment per condition to
	// ±ratio × base score, so clarifiers can reorder near-ties but never let
	// a poorly matched condition overtake a strongly matched one.
	FollowUpCapRatio float64 `mapstructure:"follow_up_cap_ratio"`
	// DefaultLimit is the ranked-candidate truncation used when the caller
	// does not supply one.
	DefaultLimit int `mapstructure:"default_limit"`
}

// Weight returns the configured weight for a severity level. Unknown
// severities weigh as MILD; validation rejects them before scoring.
func (sc ScoringConfig) Weight(sev Severity) float64 {
	switch sev {
	case SEVERE:
		return sc.SevereWeight
	case MODERATE:
		return sc.ModerateWeight
	default:
		return sc.MildWeight
	}
}

// MaxWeight returns the largest configured severity weight, used to compute
// a condition's maximum possible score for percentage normalization.
func (sc ScoringConfig) MaxWeight() float64 {
	max := sc.MildWeight
	if sc.ModerateWeight > max {
		max = sc.ModerateWeight
	}
	if sc.SevereWeight > max {
		max = sc.SevereWeight
	}
	return max
}

// ExternalAPIConfig represents external collaborator configuration
type ExternalAPIConfig struct {
	AIDiagnosis AIDiagnosisConfig `mapstructure:"ai_diagnosis"`
}

// AIDiagnosisConfig represents the remote AI diagnosis service configuration
type AIDiagnosisConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
	Enabled    bool          `mapstructure:"enabled"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	// SnapshotTTL bounds how long a cached rule snapshot may serve requests
	// before the store version is re-checked.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	Enabled     bool          `mapstructure:"enabled"`
}

// FeedbackConfig selects and configures the clinician feedback store backend.
type FeedbackConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}
