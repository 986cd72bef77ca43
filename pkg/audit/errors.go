package audit

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Storage.Get for an unknown record ID.
var ErrNotFound = errors.New("audit record not found")

// ErrRecorderClosed is returned when submitting to a closed recorder.
var ErrRecorderClosed = errors.New("audit recorder closed")

// ErrTampered is matched by IntegrityError via errors.Is.
var ErrTampered = errors.New("audit record does not match its hash")

// IntegrityError reports a stored decision whose content no longer matches
// the hash it was sealed with.
type IntegrityError struct {
	RecordID string
	Stored   string // empty when the record was never sealed
	Computed string
	Cause    error // set when the hash could not be computed
}

func (e *IntegrityError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("record %s: cannot compute hash: %v", e.RecordID, e.Cause)
	case e.Stored == "":
		return fmt.Sprintf("record %s is not sealed", e.RecordID)
	default:
		return fmt.Sprintf("record %s: stored hash %s does not match content hash %s",
			e.RecordID, short(e.Stored), short(e.Computed))
	}
}

func (e *IntegrityError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrTampered.
func (e *IntegrityError) Is(target error) bool { return target == ErrTampered }

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // "sqlite" or "memory"
	Operation string // "store", "query", "delete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// QueryError represents an invalid query.
type QueryError struct {
	Query *Query
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(query *Query, cause error) *QueryError {
	return &QueryError{Query: query, Cause: cause}
}

// RecorderError represents a failure to record an evaluation.
type RecorderError struct {
	RecordID string
	CaseID   string
	Cause    error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("recorder error [record_id=%s, case_id=%s]: %v", e.RecordID, e.CaseID, e.Cause)
	}
	return fmt.Sprintf("recorder error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError creates a new RecorderError.
func NewRecorderError(recordID, caseID string, cause error) *RecorderError {
	return &RecorderError{RecordID: recordID, CaseID: caseID, Cause: cause}
}

// RetentionError represents a failure while pruning records.
type RetentionError struct {
	RetentionDays int
	MaxRecords    int64
	Cause         error
}

// Error implements the error interface.
func (e *RetentionError) Error() string {
	return fmt.Sprintf("retention error [retention_days=%d, max_records=%d]: %v", e.RetentionDays, e.MaxRecords, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// NewRetentionError creates a new RetentionError.
func NewRetentionError(retentionDays int, maxRecords int64, cause error) *RetentionError {
	return &RetentionError{RetentionDays: retentionDays, MaxRecords: maxRecords, Cause: cause}
}

// ExportError represents a failure while exporting records.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{Format: format, RecordCount: recordCount, Cause: cause}
}
