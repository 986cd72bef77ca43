// Package config provides configuration management for the adjudicator.
//
// Configuration is read from YAML with environment variable overrides:
//
//	cfg, err := config.LoadConfig("adjudicator.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("adjudicator.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ADJUDICATOR_SECTION_FIELD:
//
//   - ADJUDICATOR_CATALOG_PATH overrides catalog.path
//   - ADJUDICATOR_AUDIT_SQLITE_DRIVER overrides audit.sqlite.driver
//   - ADJUDICATOR_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (Default)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	catalog:
//	  mode: file
//	  path: ./catalogs/grievance
//	  watch: true
//
//	audit:
//	  enabled: true
//	  backend: sqlite
//	  sqlite:
//	    path: data/audit.db
//	    driver: sqlite
//	  retention:
//	    days: 365
//	    prune_schedule: "0 3 * * *"
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: text
package config
