package config_test

import (
	"testing"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"

	"github.com/stretchr/testify/assert"
)

const testYAML = `
tidal:
  orchestrator:
    tick_interval_seconds: 5
  monitor:
    retry:
      max_attempts: 3
  token:
    ttl_minutes: 15
  matcher:
    fuzzy_threshold: 0.8
  system:
    logging:
      level: DEBUG
  database:
    metadata:
      type: sqlite
      database: ":memory:"
`

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, 10, cfg.Tidal.Orchestrator.TickIntervalSeconds)
	assert.Equal(t, 3600, cfg.Tidal.Orchestrator.WaveTimeoutSeconds)
	assert.Equal(t, 5, cfg.Tidal.Monitor.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Tidal.Monitor.Retry.InitialInterval)
	assert.Equal(t, 2.0, cfg.Tidal.Monitor.Retry.Factor)
	assert.Equal(t, 60, cfg.Tidal.Token.TTLMinutes)
	assert.Equal(t, float64(0), cfg.Tidal.Matcher.FuzzyThreshold, "fuzzy matching is disabled unless configured")
	assert.Equal(t, "metadata", cfg.Tidal.Infrastructure.ExecutionRepositoryDBRef)
	assert.Equal(t, "UTC", cfg.Tidal.System.Timezone)
}

func TestLoadConfig_MergesEmbeddedYAML(t *testing.T) {
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	assert.NoError(t, err)

	// YAML values override the defaults
	assert.Equal(t, 5, cfg.Tidal.Orchestrator.TickIntervalSeconds)
	assert.Equal(t, 3, cfg.Tidal.Monitor.Retry.MaxAttempts)
	assert.Equal(t, 15, cfg.Tidal.Token.TTLMinutes)
	assert.Equal(t, 0.8, cfg.Tidal.Matcher.FuzzyThreshold)
	assert.Equal(t, "DEBUG", cfg.Tidal.System.Logging.Level)

	// Values absent from the YAML keep their defaults
	assert.Equal(t, 3600, cfg.Tidal.Orchestrator.WaveTimeoutSeconds)
	assert.Equal(t, 500, cfg.Tidal.Monitor.Retry.InitialInterval)

	// Database adaptor configs are carried through
	assert.Contains(t, cfg.Tidal.AdaptorConfigs, "metadata")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TIDAL_TOKEN_TTL_MINUTES", "45")
	t.Setenv("TIDAL_MATCHER_FUZZY_THRESHOLD", "0.9")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	assert.NoError(t, err)

	// Environment variables win over both defaults and YAML
	assert.Equal(t, 45, cfg.Tidal.Token.TTLMinutes)
	assert.Equal(t, 0.9, cfg.Tidal.Matcher.FuzzyThreshold)
}
