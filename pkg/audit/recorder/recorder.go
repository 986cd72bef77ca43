package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/engine"
)

// WriteObserver is told about every storage write, e.g. to update metrics.
type WriteObserver interface {
	ObserveAuditWrite(status string, duration time.Duration)
}

// Write statuses passed to a WriteObserver.
const (
	StatusWritten = "written"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Stats counts what the recorder did with submitted records.
type Stats struct {
	Written int64
	Failed  int64
	Dropped int64
	Pending int
}

// Recorder writes audit records asynchronously. It implements engine.Sink.
type Recorder struct {
	storage  audit.Storage
	config   config.RecorderConfig
	records  chan *audit.Record
	wg       sync.WaitGroup
	done     chan struct{}
	logger   *slog.Logger
	observer WriteObserver

	// mu guards closed; Submit holds it for reading while enqueueing so
	// Close never races a late send.
	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

var _ engine.Sink = (*Recorder)(nil)

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithObserver registers a write observer.
func WithObserver(o WriteObserver) Option {
	return func(r *Recorder) { r.observer = o }
}

// New creates a recorder writing to storage and starts its worker.
func New(storage audit.Storage, cfg config.RecorderConfig, opts ...Option) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultAuditRecorderAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultAuditRecorderWriteTimeout
	}

	r := &Recorder{
		storage: storage,
		config:  cfg,
		records: make(chan *audit.Record, cfg.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "audit.recorder")

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// Submit turns an evaluation into a sealed record and queues it. It
// returns once the record is queued, not written.
func (r *Recorder) Submit(ctx context.Context, result *engine.Result, evalErr error) error {
	rec := audit.NewRecord(result, evalErr)
	if err := rec.Seal(); err != nil {
		return audit.NewRecorderError(rec.ID, rec.CaseID, err)
	}
	return r.Record(ctx, rec)
}

// Record queues a prepared record.
func (r *Recorder) Record(ctx context.Context, rec *audit.Record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return audit.NewRecorderError(rec.ID, rec.CaseID, audit.ErrRecorderClosed)
	}
	if err := ctx.Err(); err != nil {
		r.drop(rec, "submit cancelled, dropping record")
		return audit.NewRecorderError(rec.ID, rec.CaseID, err)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.records <- rec:
		r.logger.Debug("audit record queued", "record_id", rec.ID, "case_id", rec.CaseID)
		return nil
	case <-timer.C:
		r.drop(rec, "audit queue full, dropping record")
		return audit.NewRecorderError(rec.ID, rec.CaseID, context.DeadlineExceeded)
	case <-ctx.Done():
		r.drop(rec, "submit cancelled, dropping record")
		return audit.NewRecorderError(rec.ID, rec.CaseID, ctx.Err())
	}
}

func (r *Recorder) drop(rec *audit.Record, msg string) {
	r.dropped.Add(1)
	if r.observer != nil {
		r.observer.ObserveAuditWrite(StatusDropped, 0)
	}
	r.logger.Error(msg,
		"record_id", rec.ID,
		"case_id", rec.CaseID,
		"queue_capacity", r.config.AsyncBuffer,
	)
}

// Close stops accepting records, writes everything already queued and
// waits for the worker to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("audit recorder closed",
		"written", r.written.Load(),
		"failed", r.failed.Load(),
		"dropped", r.dropped.Load(),
	)
	return nil
}

// Stats returns the recorder's counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
		Pending: len(r.records),
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-r.done:
			r.logger.Debug("draining audit queue", "pending_count", len(r.records))
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, rec)
	duration := time.Since(start)

	if err != nil {
		r.failed.Add(1)
		if r.observer != nil {
			r.observer.ObserveAuditWrite(StatusFailed, duration)
		}
		r.logger.Error("failed to store audit record",
			"record_id", rec.ID,
			"case_id", rec.CaseID,
			"error", err,
		)
		return
	}

	r.written.Add(1)
	if r.observer != nil {
		r.observer.ObserveAuditWrite(StatusWritten, duration)
	}
	r.logger.Debug("audit record stored",
		"record_id", rec.ID,
		"case_id", rec.CaseID,
		"outcome", rec.Outcome,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", rec.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
