package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ADJUDICATOR_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, then validated. Unknown keys are
// rejected so typos surface at startup.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ADJUDICATOR_SECTION_FIELD (e.g., ADJUDICATOR_CATALOG_PATH).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// A malformed value is reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
			*dst = val
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid boolean %q", val)})
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid integer %q", val)})
				return
			}
			*dst = i
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid duration %q", val)})
				return
			}
			*dst = d
		}
	}

	// Catalog overrides
	str("CATALOG_NAME", &cfg.Catalog.Name)
	str("CATALOG_MODE", &cfg.Catalog.Mode)
	str("CATALOG_PATH", &cfg.Catalog.Path)
	boolean("CATALOG_WATCH", &cfg.Catalog.Watch)
	duration("CATALOG_DEBOUNCE_INTERVAL", &cfg.Catalog.DebounceInterval)
	boolean("CATALOG_ALLOW_SHARED_PRIORITY", &cfg.Catalog.AllowSharedPriority)
	str("CATALOG_GIT_REPOSITORY", &cfg.Catalog.Git.Repository)
	str("CATALOG_GIT_BRANCH", &cfg.Catalog.Git.Branch)
	str("CATALOG_GIT_PATH", &cfg.Catalog.Git.Path)
	str("CATALOG_GIT_AUTH_TYPE", &cfg.Catalog.Git.Auth.Type)
	str("CATALOG_GIT_AUTH_TOKEN", &cfg.Catalog.Git.Auth.Token)
	duration("CATALOG_GIT_POLL_INTERVAL", &cfg.Catalog.Git.Poll.Interval)

	// Engine overrides
	integer("ENGINE_WORKERS", &cfg.Engine.Workers)

	// Audit overrides
	boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)
	str("AUDIT_BACKEND", &cfg.Audit.Backend)
	str("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	str("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	integer("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	str("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)

	// Telemetry overrides
	str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	str("TELEMETRY_METRICS_TEXTFILE_PATH", &cfg.Telemetry.Metrics.TextfilePath)
	boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	str("SECRETS_DIR", &cfg.Secrets.Dir)
	if val, ok := os.LookupEnv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); ok && val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO", Message: fmt.Sprintf("invalid number %q", val)})
		} else {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
