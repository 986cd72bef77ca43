package config

import "time"

// Default values for configuration fields.
const (
	// Catalog defaults
	DefaultCatalogName             = "default"
	DefaultCatalogMode             = "file"
	DefaultCatalogPath             = "./catalog"
	DefaultCatalogDebounceInterval = 100 * time.Millisecond
	DefaultCatalogMaxFileSize      = int64(1 << 20)
	DefaultGitBranch               = "main"
	DefaultGitAuthType             = "none"
	DefaultGitPollEnabled          = true
	DefaultGitPollInterval         = 30 * time.Second
	DefaultGitPollTimeout          = 10 * time.Second
	DefaultGitCloneDepth           = 1

	// Engine defaults
	DefaultEngineWorkers             = 4
	DefaultEngineExpressionCostLimit = uint64(10000)
	DefaultEngineMaxConditionDepth   = 8

	// Audit defaults
	DefaultAuditEnabled              = false
	DefaultAuditBackend              = "sqlite"
	DefaultAuditSQLitePath           = "data/audit.db"
	DefaultAuditSQLiteDriver         = "sqlite"
	DefaultAuditSQLiteMaxOpenConns   = 10
	DefaultAuditSQLiteMaxIdleConns   = 5
	DefaultAuditSQLiteWALMode        = true
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderAsyncBuffer  = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionDays        = 365
	DefaultAuditRetentionSchedule    = "0 3 * * *"
	DefaultAuditQueryDefaultLimit    = 100
	DefaultAuditQueryMaxLimit        = 10000
	DefaultAuditExportJSONPretty     = true
	DefaultAuditExportCSVHeader      = true

	DefaultSecretsEnvPrefix = "ADJUDICATOR_SECRET_"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactPII    = true
	DefaultMetricsEnabled      = true
	DefaultMetricsNamespace    = "adjudicator"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "adjudicator"
	DefaultOTLPTimeout         = 10 * time.Second
)

// DefaultCatalogExtensions are the file extensions loaded as catalogs.
func DefaultCatalogExtensions() []string {
	return []string{".yaml", ".yml"}
}

// DefaultDurationBuckets are the evaluation duration histogram buckets.
func DefaultDurationBuckets() []float64 {
	return []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
}

// Default returns a configuration with every field at its default value.
// LoadConfig decodes YAML on top of it, so boolean defaults survive files
// that do not mention them.
func Default() *Config {
	cfg := &Config{
		Catalog: CatalogConfig{
			Git: GitCatalogConfig{
				Poll: GitPollConfig{Enabled: DefaultGitPollEnabled},
			},
		},
		Audit: AuditConfig{
			Enabled: DefaultAuditEnabled,
			SQLite:  SQLiteConfig{WALMode: DefaultAuditSQLiteWALMode},
			Export: ExportConfig{
				JSONPretty:       DefaultAuditExportJSONPretty,
				CSVIncludeHeader: DefaultAuditExportCSVHeader,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Enabled: DefaultTracingEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent. Boolean fields are left alone; see Default.
func ApplyDefaults(cfg *Config) {
	// Catalog defaults
	if cfg.Catalog.Mode == "" {
		cfg.Catalog.Mode = DefaultCatalogMode
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = DefaultCatalogPath
	}
	if cfg.Catalog.DebounceInterval == 0 {
		cfg.Catalog.DebounceInterval = DefaultCatalogDebounceInterval
	}
	if len(cfg.Catalog.Extensions) == 0 {
		cfg.Catalog.Extensions = DefaultCatalogExtensions()
	}
	if cfg.Catalog.MaxFileSize == 0 {
		cfg.Catalog.MaxFileSize = DefaultCatalogMaxFileSize
	}

	// Git defaults
	git := &cfg.Catalog.Git
	if git.Branch == "" {
		git.Branch = DefaultGitBranch
	}
	if git.Auth.Type == "" {
		git.Auth.Type = DefaultGitAuthType
	}
	if git.Poll.Interval == 0 {
		git.Poll.Interval = DefaultGitPollInterval
	}
	if git.Poll.Timeout == 0 {
		git.Poll.Timeout = DefaultGitPollTimeout
	}
	if git.Clone.Depth == 0 {
		git.Clone.Depth = DefaultGitCloneDepth
	}

	// Engine defaults
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = DefaultEngineWorkers
	}
	if cfg.Engine.ExpressionCostLimit == 0 {
		cfg.Engine.ExpressionCostLimit = DefaultEngineExpressionCostLimit
	}
	if cfg.Engine.MaxConditionDepth == 0 {
		cfg.Engine.MaxConditionDepth = DefaultEngineMaxConditionDepth
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.Audit.SQLite.MaxIdleConns == 0 {
		cfg.Audit.SQLite.MaxIdleConns = DefaultAuditSQLiteMaxIdleConns
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.Recorder.AsyncBuffer == 0 {
		cfg.Audit.Recorder.AsyncBuffer = DefaultAuditRecorderAsyncBuffer
	}
	if cfg.Audit.Recorder.WriteTimeout == 0 {
		cfg.Audit.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = DefaultAuditRetentionDays
	}
	if cfg.Audit.Retention.PruneSchedule == "" {
		cfg.Audit.Retention.PruneSchedule = DefaultAuditRetentionSchedule
	}
	if cfg.Audit.Query.DefaultLimit == 0 {
		cfg.Audit.Query.DefaultLimit = DefaultAuditQueryDefaultLimit
	}
	if cfg.Audit.Query.MaxLimit == 0 {
		cfg.Audit.Query.MaxLimit = DefaultAuditQueryMaxLimit
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = DefaultDurationBuckets()
	}
	tr := &cfg.Telemetry.Tracing
	if tr.Sampler == "" {
		tr.Sampler = DefaultTracingSampler
	}
	if tr.SampleRatio == 0 {
		tr.SampleRatio = DefaultTracingSamplingRate
	}
	if tr.Exporter == "" {
		tr.Exporter = DefaultTracingExporter
	}
	if tr.Endpoint == "" {
		tr.Endpoint = DefaultTracingEndpoint
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultTracingServiceName
	}
	if tr.OTLP.Timeout == 0 {
		tr.OTLP.Timeout = DefaultOTLPTimeout
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}
