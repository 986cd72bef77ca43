package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the audit tables. Times are stored as UTC Unix nanoseconds
// so both SQLite drivers order and compare them the same way. Decisions and
// traces are JSON.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL,
    catalog_name TEXT NOT NULL,
    catalog_version TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,

    outcome TEXT NOT NULL,
    binding_rule TEXT,
    binding TEXT,
    candidates TEXT NOT NULL,
    conflicts INTEGER NOT NULL DEFAULT 0,
    needs_review BOOLEAN NOT NULL,

    error TEXT,
    trace TEXT NOT NULL,
    hash TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_case_id ON audit_records(case_id);
CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_records(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_binding_rule ON audit_records(binding_rule);
CREATE INDEX IF NOT EXISTS idx_audit_catalog_version ON audit_records(catalog_version);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, case_id, catalog_name, catalog_version, recorded_at,
    outcome, binding_rule, binding, candidates, conflicts, needs_review, error, trace, hash`
