package trace

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTraceSealed is matched by SealedError via errors.Is.
var ErrTraceSealed = errors.New("trace sealed")

// SealedError is returned when recording into a completed trace.
type SealedError struct {
	Op string
}

// Error returns the error message.
func (e *SealedError) Error() string {
	return fmt.Sprintf("%s: trace already completed", e.Op)
}

// Is reports whether target is ErrTraceSealed.
func (e *SealedError) Is(target error) bool {
	return target == ErrTraceSealed
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder accumulates checks and conflicts for one evaluation.
type Recorder struct {
	mu        sync.Mutex
	now       func() time.Time
	checks    []Check
	conflicts []Conflict
	startedAt time.Time
	sealed    bool
}

// New opens a recorder and starts its timer.
func New(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()
	return r
}

// RecordCheck appends a rule check. A zero Timestamp is filled in.
func (r *Recorder) RecordCheck(c Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return &SealedError{Op: "record check"}
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = r.now()
	}
	r.checks = append(r.checks, c)
	return nil
}

// RecordConflict appends a conflict.
func (r *Recorder) RecordConflict(c Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return &SealedError{Op: "record conflict"}
	}
	r.conflicts = append(r.conflicts, c)
	return nil
}

// Complete seals the recorder and returns the finished trace.
func (r *Recorder) Complete() (*Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil, &SealedError{Op: "complete"}
	}
	r.sealed = true
	return &Trace{
		checks:    r.checks,
		conflicts: r.conflicts,
		startedAt: r.startedAt,
		endedAt:   r.now(),
	}, nil
}
