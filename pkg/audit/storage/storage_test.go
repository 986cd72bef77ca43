package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestRecord builds a record recorded i minutes after baseTime.
func createTestRecord(i int, outcome rules.Outcome, rule string) *audit.Record {
	rec := &audit.Record{
		ID:             fmt.Sprintf("rec-%03d", i),
		CaseID:         fmt.Sprintf("GRV-%03d", i),
		CatalogName:    "grievance",
		CatalogVersion: "v1",
		RecordedAt:     baseTime.Add(time.Duration(i) * time.Minute),
		Outcome:        "NONE",
		NeedsReview:    true,
		Trace: trace.AuditRecord{
			RulesEvaluated: []trace.CheckRecord{{RuleID: "ugc-attendance", TierLevel: 1, Fired: rule != ""}},
			StartedAt:      baseTime,
			EndedAt:        baseTime.Add(time.Millisecond),
		},
	}
	if rule != "" {
		d := rules.Decision{
			RuleID:   rule,
			Tier:     rules.TierNational,
			Priority: 1500,
			Outcome:  outcome,
			Reason:   "attendance below 75%",
			Source:   "UGC Regulations 2018",
		}
		rec.Outcome = string(outcome)
		rec.BindingRule = rule
		rec.Binding = &d
		rec.Candidates = []rules.Decision{d}
		rec.NeedsReview = false
	}
	return rec
}

func createTestSQLite(t *testing.T, driver string) *SQLiteStorage {
	t.Helper()

	cfg := config.Default().Audit.SQLite
	cfg.Path = filepath.Join(t.TempDir(), "audit.db")
	cfg.Driver = driver
	cfg.MaxOpenConns = 5
	cfg.MaxIdleConns = 2
	cfg.BusyTimeout = 5 * time.Second

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v, want nil", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every backend that can run in this build.
func backends(t *testing.T) map[string]func(*testing.T) audit.Storage {
	return map[string]func(*testing.T) audit.Storage{
		"memory": func(*testing.T) audit.Storage { return NewMemoryStorage() },
		"sqlite": func(t *testing.T) audit.Storage { return createTestSQLite(t, "sqlite") },
	}
}

func seed(t *testing.T, s audit.Storage) {
	t.Helper()
	ctx := context.Background()
	records := []*audit.Record{
		createTestRecord(1, rules.OutcomeReject, "ugc-attendance"),
		createTestRecord(2, rules.OutcomeAccept, "uni-medical-excuse"),
		createTestRecord(3, rules.OutcomeReject, "ugc-attendance"),
		createTestRecord(4, "", ""),
	}
	records[2].Conflicts = 1
	records[3].Error = "ambiguous priority"
	for _, rec := range records {
		if err := s.Store(ctx, rec); err != nil {
			t.Fatalf("Store(%s) error = %v, want nil", rec.ID, err)
		}
	}
}

func TestStorage_StoreAndGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			rec := createTestRecord(1, rules.OutcomeReject, "ugc-attendance")

			if err := s.Store(ctx, rec); err != nil {
				t.Fatalf("Store() error = %v, want nil", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get() error = %v, want nil", err)
			}
			if got.CaseID != rec.CaseID || got.Outcome != "REJECT" || got.BindingRule != "ugc-attendance" {
				t.Errorf("Get() = %+v", got)
			}
			if !got.RecordedAt.Equal(rec.RecordedAt) {
				t.Errorf("RecordedAt = %v, want %v", got.RecordedAt, rec.RecordedAt)
			}
			if got.Binding == nil || got.Binding.Tier != rules.TierNational || got.Binding.Priority != 1500 {
				t.Errorf("Binding = %+v", got.Binding)
			}
			if len(got.Candidates) != 1 || got.Candidates[0].Source != "UGC Regulations 2018" {
				t.Errorf("Candidates = %+v", got.Candidates)
			}
			if len(got.Trace.RulesEvaluated) != 1 || !got.Trace.RulesEvaluated[0].Fired {
				t.Errorf("Trace = %+v", got.Trace)
			}

			if err := s.Store(ctx, rec); err == nil {
				t.Error("Store() of duplicate ID error = nil, want error")
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, audit.ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStorage_StoredCopyIsIsolated(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			rec := createTestRecord(1, rules.OutcomeReject, "ugc-attendance")
			if err := s.Store(ctx, rec); err != nil {
				t.Fatalf("Store() error = %v, want nil", err)
			}

			rec.Binding.Outcome = rules.OutcomeAccept
			rec.Candidates[0].RuleID = "changed"

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get() error = %v, want nil", err)
			}
			if got.Binding.Outcome != rules.OutcomeReject || got.Candidates[0].RuleID != "ugc-attendance" {
				t.Errorf("stored record changed with caller's copy: %+v", got)
			}
		})
	}
}

func TestStorage_Query(t *testing.T) {
	yes, no := true, false
	start := baseTime.Add(2 * time.Minute)

	tests := []struct {
		name  string
		query audit.Query
		want  []string
	}{
		{"all newest first", audit.Query{}, []string{"rec-004", "rec-003", "rec-002", "rec-001"}},
		{"ascending", audit.Query{SortOrder: "asc"}, []string{"rec-001", "rec-002", "rec-003", "rec-004"}},
		{"by rule", audit.Query{RuleID: "ugc-attendance"}, []string{"rec-003", "rec-001"}},
		{"by outcome", audit.Query{Outcome: "ACCEPT"}, []string{"rec-002"}},
		{"unresolved", audit.Query{Outcome: "NONE"}, []string{"rec-004"}},
		{"by case", audit.Query{CaseID: "GRV-002"}, []string{"rec-002"}},
		{"needs review", audit.Query{NeedsReview: &yes}, []string{"rec-004"}},
		{"no review", audit.Query{NeedsReview: &no, SortOrder: "asc"}, []string{"rec-001", "rec-002", "rec-003"}},
		{"with conflict", audit.Query{HasConflict: &yes}, []string{"rec-003"}},
		{"errors", audit.Query{Status: "error"}, []string{"rec-004"}},
		{"successes", audit.Query{Status: "success", Limit: 1}, []string{"rec-003"}},
		{"time range", audit.Query{StartTime: &start, SortOrder: "asc"}, []string{"rec-002", "rec-003", "rec-004"}},
		{"paged", audit.Query{Limit: 2, Offset: 1}, []string{"rec-003", "rec-002"}},
		{"offset only", audit.Query{Offset: 3}, []string{"rec-001"}},
		{"offset past end", audit.Query{Offset: 10}, []string{}},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					q := tt.query
					got, err := s.Query(context.Background(), &q)
					if err != nil {
						t.Fatalf("Query() error = %v, want nil", err)
					}
					ids := make([]string, len(got))
					for i, r := range got {
						ids[i] = r.ID
					}
					if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
						t.Errorf("Query() = %v, want %v", ids, tt.want)
					}
				})
			}
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			n, err := s.Count(ctx, &audit.Query{Outcome: "REJECT", Limit: 1})
			if err != nil {
				t.Fatalf("Count() error = %v, want nil", err)
			}
			if n != 2 {
				t.Errorf("Count() = %d, want 2 (limit ignored)", n)
			}

			end := baseTime.Add(2 * time.Minute)
			deleted, err := s.Delete(ctx, &audit.Query{EndTime: &end})
			if err != nil {
				t.Fatalf("Delete() error = %v, want nil", err)
			}
			if deleted != 2 {
				t.Errorf("Delete() = %d, want 2", deleted)
			}

			total, _ := s.Count(ctx, &audit.Query{})
			if total != 2 {
				t.Errorf("Count() after delete = %d, want 2", total)
			}
		})
	}
}

func TestStorage_DeleteOldest(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			deleted, err := s.DeleteOldest(ctx, 3)
			if err != nil {
				t.Fatalf("DeleteOldest() error = %v, want nil", err)
			}
			if deleted != 1 {
				t.Errorf("DeleteOldest() = %d, want 1", deleted)
			}
			if _, err := s.Get(ctx, "rec-001"); !errors.Is(err, audit.ErrNotFound) {
				t.Errorf("oldest record still present, Get() error = %v", err)
			}

			deleted, err = s.DeleteOldest(ctx, 10)
			if err != nil || deleted != 0 {
				t.Errorf("DeleteOldest(10) = %d, %v, want 0, nil", deleted, err)
			}
		})
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	cfg := config.Default().Audit.SQLite
	cfg.Path = filepath.Join(t.TempDir(), "audit.db")
	cfg.Driver = "sqlite"

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v, want nil", err)
	}
	if err := s.Store(context.Background(), createTestRecord(1, rules.OutcomeAccept, "r1")); err != nil {
		t.Fatalf("Store() error = %v, want nil", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}

	s, err = NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v, want nil", err)
	}
	defer s.Close()

	n, err := s.Count(context.Background(), &audit.Query{})
	if err != nil || n != 1 {
		t.Errorf("Count() after reopen = %d, %v, want 1, nil", n, err)
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default().Audit

	cfg.Backend = "memory"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New(memory) error = %v, want nil", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("New(memory) = %T, want *MemoryStorage", s)
	}

	cfg.Backend = "postgres"
	if _, err := New(cfg); err == nil {
		t.Error("New(postgres) error = nil, want error")
	}

	cfg.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "audit.db")
	cfg.SQLite.Driver = "bolt"
	var se *audit.StorageError
	if _, err := New(cfg); !errors.As(err, &se) {
		t.Errorf("New() with unknown driver error = %v, want *audit.StorageError", err)
	}
}

func TestMemoryStorage_Close(t *testing.T) {
	s := NewMemoryStorage()
	seed(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size() after Close = %d, want 0", s.Size())
	}
	if err := s.Store(context.Background(), createTestRecord(9, "", "")); err == nil {
		t.Error("Store() after Close error = nil, want error")
	}
}
