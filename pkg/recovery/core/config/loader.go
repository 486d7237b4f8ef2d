package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing orchestrator configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Load defaults from NewConfig()

	// 2. Load configuration from embedded YAML into a temporary Config struct.
	// This ensures that YAML values are correctly parsed into their respective types.
	var yamlConfig Config
	if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
		return nil, exception.NewRecoveryError(moduleName, "failed to unmarshal embedded config", err, false)
	}

	// 3. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewRecoveryError(moduleName, "failed to load config from environment variables", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the configuration by loading defaults, merging from embedded YAML,
// and overriding with environment variables. It also sets the global logger level
// and validates configured exception class names.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, exception.NewRecoveryError(moduleName, "failed to load configuration", err, false)
	}

	// Set log level
	logger.SetLogLevel(cfg.Tidal.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Tidal.System.Logging.Level)

	if err := validateExceptionClasses(cfg); err != nil {
		return nil, exception.NewRecoveryError(moduleName, "failed to validate configured exception classes", err, false)
	}

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validateExceptionClasses validates that configured exception class names exist in the registry.
func validateExceptionClasses(cfg *Config) error {
	if cfg.Tidal.Monitor.RetryableExceptions != nil {
		if err := checkExceptionClasses(cfg.Tidal.Monitor.RetryableExceptions, "Monitor"); err != nil {
			return err
		}
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeTidalConfig(&destConfig.Tidal, &sourceConfig.Tidal)
}

// mergeTidalConfig merges source into dest.
func mergeTidalConfig(dest, source *TidalConfig) {
	// Merge OrchestratorConfig
	if source.Orchestrator.TickIntervalSeconds != 0 {
		dest.Orchestrator.TickIntervalSeconds = source.Orchestrator.TickIntervalSeconds
	}
	if source.Orchestrator.WaveTimeoutSeconds != 0 {
		dest.Orchestrator.WaveTimeoutSeconds = source.Orchestrator.WaveTimeoutSeconds
	}

	// Merge MonitorConfig
	mergeRetryConfig(&dest.Monitor.Retry, &source.Monitor.Retry)
	if source.Monitor.RetryableExceptions != nil {
		dest.Monitor.RetryableExceptions = source.Monitor.RetryableExceptions
	}

	// Merge TokenConfig
	if source.Token.TTLMinutes != 0 {
		dest.Token.TTLMinutes = source.Token.TTLMinutes
	}
	if source.Token.SweepIntervalSeconds != 0 {
		dest.Token.SweepIntervalSeconds = source.Token.SweepIntervalSeconds
	}

	// Merge MatcherConfig
	if source.Matcher.FuzzyThreshold != 0 {
		dest.Matcher.FuzzyThreshold = source.Matcher.FuzzyThreshold
	}
	if source.Matcher.EligibleTargetTag != "" {
		dest.Matcher.EligibleTargetTag = source.Matcher.EligibleTargetTag
	}

	// Merge TracingConfig
	if source.Tracing.Enabled {
		dest.Tracing.Enabled = true
	}
	if source.Tracing.OTLPEndpoint != "" {
		dest.Tracing.OTLPEndpoint = source.Tracing.OTLPEndpoint
	}
	if source.Tracing.ServiceName != "" {
		dest.Tracing.ServiceName = source.Tracing.ServiceName
	}

	// Merge SystemConfig
	mergeSystemConfig(&dest.System, &source.System)

	// Merge InfrastructureConfig
	if source.Infrastructure.ExecutionRepositoryDBRef != "" {
		dest.Infrastructure.ExecutionRepositoryDBRef = source.Infrastructure.ExecutionRepositoryDBRef
	}

	// Merge AdaptorConfigs (this is the critical part for database configs)
	if source.AdaptorConfigs != nil {
		if dest.AdaptorConfigs == nil {
			dest.AdaptorConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdaptorConfigs {
			dest.AdaptorConfigs[key] = value
		}
	}
}

// mergeRetryConfig merges source into dest.
func mergeRetryConfig(dest, source *RetryConfig) {
	// Only overwrite if source value is not zero/empty
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
	if source.MaxInterval != 0 {
		dest.MaxInterval = source.MaxInterval
	}
	if source.Factor != 0 {
		dest.Factor = source.Factor
	}
}

// mergeSystemConfig merges source into dest.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// checkExceptionClasses validates that all exception class names in the provided list
// are registered in the exception registry.
func checkExceptionClasses(classNames []string, configType string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s configuration references unknown exception class: '%s'. Ensure it is registered.", configType, name)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
