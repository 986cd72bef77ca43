package config

import "time"

// Config is the root configuration structure for the adjudicator.
type Config struct {
	// Catalog configures where rule catalogs come from and how they reload.
	Catalog CatalogConfig `yaml:"catalog"`

	// Engine configures evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Audit configures persistence of evaluation results.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:NAME} references.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where secret references are looked up.
type SecretsConfig struct {
	// EnvPrefix is prepended to environment variable names.
	// Default: "ADJUDICATOR_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Empty disables file secrets.
	Dir string `yaml:"dir"`
}

// CatalogConfig contains configuration for the rule catalog source.
type CatalogConfig struct {
	// Name labels the loaded catalog in results and audit records.
	// Default: the catalog file's own name, or "default"
	Name string `yaml:"name"`

	// Mode specifies how catalogs are loaded.
	// Options: "file" (local file or directory), "git" (Git repository)
	// Default: "file"
	Mode string `yaml:"mode"`

	// Path is the catalog file or directory when Mode is "file".
	// Default: "./catalog"
	Path string `yaml:"path"`

	// Watch enables automatic reloading when catalog files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is how long the watcher waits for file events to
	// settle before reloading.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Extensions lists the file extensions treated as catalog files.
	// Default: [".yaml", ".yml"]
	Extensions []string `yaml:"extensions"`

	// MaxFileSize is the largest catalog file accepted, in bytes.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// AllowSharedPriority permits two enabled rules of one tier to share a
	// priority. Ties are then reported at evaluation time instead of at load.
	// Default: false
	AllowSharedPriority bool `yaml:"allow_shared_priority"`

	// Git configures the Git catalog source. Used when Mode is "git".
	Git GitCatalogConfig `yaml:"git"`
}

// GitCatalogConfig configures Git-based catalog loading.
type GitCatalogConfig struct {
	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/university/regulations.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to the catalog files.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Poll configures change detection.
	Poll GitPollConfig `yaml:"poll"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitPollConfig configures change detection.
type GitPollConfig struct {
	// Enabled determines if polling is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval between polls.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// Timeout for Git operations.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// EngineConfig configures rule evaluation.
type EngineConfig struct {
	// Workers bounds concurrent evaluations in batch mode.
	// Default: 4
	Workers int `yaml:"workers"`

	// ExpressionCostLimit bounds the runtime cost of one CEL rule expression.
	// Default: 10000
	ExpressionCostLimit uint64 `yaml:"expression_cost_limit"`

	// MaxConditionDepth bounds nesting of declarative condition trees.
	// Default: 8
	MaxConditionDepth int `yaml:"max_condition_depth"`
}

// AuditConfig contains configuration for audit record storage.
type AuditConfig struct {
	// Enabled controls whether evaluation results are persisted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder configures the asynchronous writer.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures record pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Query configures query limits.
	Query QueryConfig `yaml:"query"`

	// Export configures exporters.
	Export ExportConfig `yaml:"export"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path to the database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver: "sqlite3" (cgo) or "sqlite" (pure Go).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns limits open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig configures asynchronous audit recording.
type RecorderConfig struct {
	// AsyncBuffer is the queue size between evaluations and the writer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures audit record pruning.
type RetentionConfig struct {
	// Days keeps records newer than this many days. 0 keeps all.
	// Default: 365
	Days int `yaml:"days"`

	// MaxRecords keeps at most this many records. 0 is unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// QueryConfig configures audit queries.
type QueryConfig struct {
	// DefaultLimit applies when a query sets none.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps any query.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`
}

// ExportConfig configures audit exports.
type ExportConfig struct {
	// JSONPretty indents JSON exports.
	// Default: true
	JSONPretty bool `yaml:"json_pretty"`

	// CSVIncludeHeader writes a header row to CSV exports.
	// Default: true
	CSVIncludeHeader bool `yaml:"csv_include_header"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses, phone numbers and secrets in log
	// attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls metric collection.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "adjudicator"
	Namespace string `yaml:"namespace"`

	// TextfilePath, when set, receives the metrics in text exposition format
	// when a CLI run finishes (for the node_exporter textfile collector).
	TextfilePath string `yaml:"textfile_path"`

	// DurationBuckets are the evaluation duration histogram buckets, in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler: "always", "never", "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter: "otlp".
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "adjudicator"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter options.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter options.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are sent with every export, e.g. collector credentials.
	// Values may be ${secret:NAME} references.
	Headers map[string]string `yaml:"headers"`
}
