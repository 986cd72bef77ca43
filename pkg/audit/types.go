package audit

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

// Record is the persisted form of one evaluation.
type Record struct {
	ID             string    `json:"id"`
	CaseID         string    `json:"case_id"`
	CatalogName    string    `json:"catalog_name"`
	CatalogVersion string    `json:"catalog_version"`
	RecordedAt     time.Time `json:"recorded_at"`

	// Outcome is the binding outcome, or "NONE".
	Outcome     string           `json:"outcome"`
	BindingRule string           `json:"binding_rule,omitempty"`
	Binding     *rules.Decision  `json:"binding,omitempty"`
	Candidates  []rules.Decision `json:"candidates"`
	Conflicts   int              `json:"conflicts"`
	NeedsReview bool             `json:"needs_review"`

	// Error is set when the evaluation returned an error, e.g. ambiguity.
	Error string `json:"error,omitempty"`

	Trace trace.AuditRecord `json:"trace"`

	// Hash is the SHA-256 of the record with Hash empty; see Seal.
	Hash string `json:"hash,omitempty"`
}

// NewRecord builds a record from an evaluation result and the error the
// evaluation returned alongside it. result may be nil when evaluation failed
// before producing one.
func NewRecord(result *engine.Result, evalErr error) *Record {
	rec := &Record{
		ID:         uuid.NewString(),
		RecordedAt: time.Now().UTC(),
		Outcome:    "NONE",
	}
	if evalErr != nil {
		rec.Error = evalErr.Error()
	}
	if result == nil {
		rec.NeedsReview = true
		return rec
	}

	rec.CaseID = result.CaseID
	rec.CatalogName = result.CatalogName
	rec.CatalogVersion = result.CatalogVersion
	rec.Outcome = result.Outcome()
	rec.Candidates = append([]rules.Decision(nil), result.Candidates...)
	rec.Conflicts = len(result.Conflicts)
	rec.NeedsReview = result.NeedsReview()
	if result.Binding != nil {
		b := *result.Binding
		rec.Binding = &b
		rec.BindingRule = b.RuleID
	}
	if result.Trace != nil {
		rec.Trace = result.Trace.ToAuditRecord()
	}
	return rec
}

// HasConflict reports whether resolution found any conflict.
func (r *Record) HasConflict() bool {
	return r.Conflicts > 0
}

// Query filters audit records. Zero values match everything.
type Query struct {
	StartTime *time.Time
	EndTime   *time.Time

	CaseID         string
	CatalogVersion string

	// RuleID matches records whose binding rule is this rule.
	RuleID string

	// Outcome matches the binding outcome; "NONE" selects unresolved cases.
	Outcome string

	NeedsReview *bool
	HasConflict *bool

	// Status is "success" or "error".
	Status string

	Limit     int
	Offset    int
	SortOrder string // "asc" or "desc" by recorded time
}

// Storage persists audit records.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns records matching q.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q, ignoring paging.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q and returns how many were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// DeleteOldest removes the oldest records until at most keep remain.
	DeleteOldest(ctx context.Context, keep int64) (int64, error)

	// Close releases resources.
	Close() error
}

// Exporter writes records to an output format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
	ContentType() string
	FileExtension() string
}
