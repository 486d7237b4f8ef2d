package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config so
// components can depend on the logging configuration alone.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Tidal.System.Logging
}

// Module provides configuration-related components to Fx. The *Config itself is
// built by NewConfigProvider from the embedded YAML and the environment.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
)
