package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/rules"
)

const backendSQLite = "sqlite"

// Drivers maps the configurable driver names to their database/sql names.
// "sqlite3" is the cgo driver, "sqlite" the pure Go one.
var Drivers = map[string]string{
	"sqlite3": "sqlite3",
	"sqlite":  "sqlite",
}

// SQLiteStorage implements audit.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database at cfg.Path and creates the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		cfg.Path = config.DefaultAuditSQLitePath
	}
	if cfg.Driver == "" {
		cfg.Driver = config.DefaultAuditSQLiteDriver
	}
	driver, ok := Drivers[cfg.Driver]
	if !ok {
		return nil, audit.NewStorageError(backendSQLite, "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, audit.NewStorageError(backendSQLite, "open", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError(backendSQLite, "enable_wal", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return audit.NewStorageError(backendSQLite, "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError(backendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return audit.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists a record. Records are immutable; storing an existing ID
// fails.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.Record) error {
	var binding any
	if record.Binding != nil {
		b, err := json.Marshal(record.Binding)
		if err != nil {
			return audit.NewStorageError(backendSQLite, "store", err)
		}
		binding = string(b)
	}
	candidates, err := json.Marshal(record.Candidates)
	if err != nil {
		return audit.NewStorageError(backendSQLite, "store", err)
	}
	tr, err := json.Marshal(record.Trace)
	if err != nil {
		return audit.NewStorageError(backendSQLite, "store", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CaseID, record.CatalogName, record.CatalogVersion, record.RecordedAt.UTC().UnixNano(),
		record.Outcome, nullString(record.BindingRule), binding, string(candidates),
		record.Conflicts, record.NeedsReview, nullString(record.Error), string(tr), nullString(record.Hash),
	)
	if err != nil {
		return audit.NewStorageError(backendSQLite, "store", err)
	}
	return nil
}

// Get returns one record by ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM audit_records WHERE id = ?", id)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, audit.NewStorageError(backendSQLite, "get", err)
		}
		return nil, audit.ErrNotFound
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "scan", err)
	}
	return rec, nil
}

// Query returns records matching q, ordered by recorded time.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY recorded_at %s, id %s", order, order)

	if q.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	} else if q.Offset > 0 {
		sqlQuery += " LIMIT -1"
	}
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(backendSQLite, "query", err)
	}
	return records, nil
}

// Count returns the number of records matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError(backendSQLite, "count", err)
	}
	return count, nil
}

// Delete removes records matching q.
func (s *SQLiteStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "DELETE FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	res, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete", err)
	}
	return n, nil
}

// DeleteOldest removes the oldest records beyond keep.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_records WHERE id IN (
			SELECT id FROM audit_records
			ORDER BY recorded_at DESC, id DESC
			LIMIT -1 OFFSET ?
		)`, keep)
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete_oldest", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete_oldest", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// buildWhereClause returns the WHERE conditions, without the keyword, and
// their arguments.
func buildWhereClause(q *audit.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.StartTime.UTC().UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, q.EndTime.UTC().UnixNano())
	}
	if q.CaseID != "" {
		conditions = append(conditions, "case_id = ?")
		args = append(args, q.CaseID)
	}
	if q.CatalogVersion != "" {
		conditions = append(conditions, "catalog_version = ?")
		args = append(args, q.CatalogVersion)
	}
	if q.RuleID != "" {
		conditions = append(conditions, "binding_rule = ?")
		args = append(args, q.RuleID)
	}
	if q.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, strings.ToUpper(q.Outcome))
	}
	if q.NeedsReview != nil {
		conditions = append(conditions, "needs_review = ?")
		args = append(args, *q.NeedsReview)
	}
	if q.HasConflict != nil {
		if *q.HasConflict {
			conditions = append(conditions, "conflicts > 0")
		} else {
			conditions = append(conditions, "conflicts = 0")
		}
	}
	switch q.Status {
	case "success":
		conditions = append(conditions, "error IS NULL")
	case "error":
		conditions = append(conditions, "error IS NOT NULL")
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*audit.Record, error) {
	var (
		rec         audit.Record
		recordedAt  int64
		bindingRule sql.NullString
		binding     sql.NullString
		candidates  string
		errText     sql.NullString
		tr          string
		hash        sql.NullString
	)
	err := rows.Scan(
		&rec.ID, &rec.CaseID, &rec.CatalogName, &rec.CatalogVersion, &recordedAt,
		&rec.Outcome, &bindingRule, &binding, &candidates, &rec.Conflicts, &rec.NeedsReview,
		&errText, &tr, &hash,
	)
	if err != nil {
		return nil, err
	}

	rec.RecordedAt = time.Unix(0, recordedAt).UTC()
	rec.BindingRule = bindingRule.String
	rec.Error = errText.String
	rec.Hash = hash.String

	if binding.Valid {
		var d rules.Decision
		if err := json.Unmarshal([]byte(binding.String), &d); err != nil {
			return nil, fmt.Errorf("failed to decode binding: %w", err)
		}
		rec.Binding = &d
	}
	if err := json.Unmarshal([]byte(candidates), &rec.Candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if err := json.Unmarshal([]byte(tr), &rec.Trace); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
