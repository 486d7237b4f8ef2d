package config

// Package config provides structures and utilities for managing orchestrator configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// RetryConfig holds configuration for the job monitor's retry mechanism.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of retry attempts.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval is the maximum backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the factor by which the interval increases (e.g., 2.0 for exponential backoff).
}

// MonitorConfig holds configuration for the job monitor.
type MonitorConfig struct {
	// Retry is the bounded backoff configuration for transient remote-service failures.
	Retry RetryConfig `yaml:"retry"`
	// RetryableExceptions is a list of retryable exception names (string).
	RetryableExceptions []string `yaml:"retryable_exceptions"`
}

// OrchestratorConfig holds configuration for the wave orchestrator.
type OrchestratorConfig struct {
	// TickIntervalSeconds is the scheduler interval between orchestrator invocations per active execution.
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`
	// WaveTimeoutSeconds is the default bounded waiting period for a wave; a plan wave may override it.
	WaveTimeoutSeconds int `yaml:"wave_timeout_seconds"`
}

// TokenConfig holds configuration for the callback token protocol.
type TokenConfig struct {
	// TTLMinutes is the bounded lifetime of an issued callback token.
	TTLMinutes int `yaml:"ttl_minutes"`
	// SweepIntervalSeconds is the cadence of the token expiry sweep.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// MatcherConfig holds configuration for the instance matcher.
type MatcherConfig struct {
	// FuzzyThreshold is the minimum confidence for the fuzzy pass; 0 disables fuzzy matching.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	// EligibleTargetTag is the tag a candidate target must carry to be eligible for pairing.
	EligibleTargetTag string `yaml:"eligible_target_tag"`
}

// TracingConfig holds distributed-tracing configuration.
type TracingConfig struct {
	// Enabled toggles span export; when false the tracer is a no-op.
	Enabled bool `yaml:"enabled"`
	// OTLPEndpoint is the gRPC endpoint of the OTLP collector (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// ServiceName identifies this process in exported traces.
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// ExecutionRepositoryDBRef is the name of the DBConnection used by the recovery repository (e.g., "metadata").
	ExecutionRepositoryDBRef string `yaml:"execution_repository_db_ref"`
}

// TidalConfig holds all configuration under the "tidal" top-level key.
type TidalConfig struct {
	// Orchestrator contains wave orchestrator configurations.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	// Monitor contains job monitor configurations.
	Monitor MonitorConfig `yaml:"monitor"`
	// Token contains callback token configurations.
	Token TokenConfig `yaml:"token"`
	// Matcher contains instance matcher configurations.
	Matcher MatcherConfig `yaml:"matcher"`
	// Tracing contains distributed-tracing configurations.
	Tracing TracingConfig `yaml:"tracing"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// AdaptorConfigs holds configurations for various adaptors, typically database connections.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Tidal contains the top-level configuration for the recovery orchestrator.
	Tidal TidalConfig `yaml:"tidal"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Tidal: TidalConfig{
			System: SystemConfig{
				Timezone: "UTC", // Default value set to UTC
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Orchestrator: OrchestratorConfig{
				TickIntervalSeconds: 10,
				WaveTimeoutSeconds:  3600, // One hour per wave unless the plan says otherwise.
			},
			Monitor: MonitorConfig{
				Retry: RetryConfig{
					MaxAttempts:     5,
					InitialInterval: 500,
					MaxInterval:     5000,
					Factor:          2.0,
				},
				RetryableExceptions: []string{ // Default retryable exceptions.
					"net.OpError",
					"context.DeadlineExceeded",
					"io.EOF",
				},
			},
			Token: TokenConfig{
				TTLMinutes:           60,
				SweepIntervalSeconds: 60,
			},
			Matcher: MatcherConfig{
				FuzzyThreshold:    0, // Exact-only unless explicitly configured.
				EligibleTargetTag: "recovery-target",
			},
			Tracing: TracingConfig{
				Enabled:      false,
				OTLPEndpoint: "localhost:4317",
				ServiceName:  "tidal",
			},
			Infrastructure: InfrastructureConfig{
				ExecutionRepositoryDBRef: "metadata",
			},
		},
	}

	// Initialize AdaptorConfigs as an empty map, to be populated by YAML or by mergeConfig.
	cfg.Tidal.AdaptorConfigs = map[string]interface{}{}
	return cfg
}
