package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/telemetry/tracing"
)

// CatalogSource provides the catalog snapshot an evaluation runs against.
type CatalogSource interface {
	// Current returns the active catalog, or nil if none is loaded.
	Current() *rules.Catalog
}

// StaticSource is a CatalogSource that always returns the same catalog.
type StaticSource struct {
	Catalog *rules.Catalog
}

// Current returns the wrapped catalog.
func (s StaticSource) Current() *rules.Catalog { return s.Catalog }

// Observer receives every finished evaluation, e.g. to update metrics.
type Observer interface {
	ObserveEvaluation(result *Result, err error, duration time.Duration)
}

// Sink receives evaluation results for persistence.
type Sink interface {
	Submit(ctx context.Context, result *Result, evalErr error) error
}

// Engine evaluates facts against the current catalog of a CatalogSource.
// It is safe for concurrent use.
type Engine struct {
	source   CatalogSource
	logger   *slog.Logger
	tracer   oteltrace.Tracer
	observer Observer
	sink     Sink
	clock    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(tracer oteltrace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = tracer }
}

// WithObserver sets the evaluation observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithSink sets the audit sink.
func WithSink(s Sink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

// WithEngineClock sets the time source for traces.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = now }
}

// New creates an engine reading catalogs from source.
func New(source CatalogSource, opts ...EngineOption) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: catalog source cannot be nil", ErrInvalidConfig)
	}
	e := &Engine{
		source: source,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")
	if e.tracer == nil {
		e.tracer = otel.Tracer("mercator-hq/adjudicator/engine")
	}
	return e, nil
}

// Evaluate evaluates fact against a snapshot of the current catalog.
func (e *Engine) Evaluate(ctx context.Context, fact *facts.Fact) (*Result, error) {
	catalog := e.source.Current()
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	return e.evaluate(ctx, catalog, fact)
}

func (e *Engine) evaluate(ctx context.Context, catalog *rules.Catalog, fact *facts.Fact) (*Result, error) {
	if fact == nil {
		return nil, fmt.Errorf("fact cannot be nil")
	}

	ctx, span := e.tracer.Start(ctx, "engine.evaluate",
		oteltrace.WithAttributes(tracing.NewAttributeBuilder().
			WithCase(fact.ID()).
			WithCatalog(catalog.Name(), catalog.Version(), catalog.Len()).
			Attributes()...),
	)
	defer span.End()

	start := time.Now()
	result, err := Evaluate(catalog, fact, WithClock(e.clock))
	duration := time.Since(start)

	if result == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	attrs := tracing.NewAttributeBuilder().
		WithCounts(len(result.Candidates), len(result.Conflicts), len(result.Faults)).
		WithOutcome(result.Outcome(), result.NeedsReview())
	if result.Binding != nil {
		attrs.WithBinding(result.Binding.RuleID, result.Binding.Tier.Name)
	}
	span.SetAttributes(attrs.Attributes()...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	for _, f := range result.Faults {
		e.logger.Warn("rule evaluation failed",
			"case_id", result.CaseID,
			"rule_id", f.RuleID,
			"stage", f.Stage,
			"error", f.Cause,
		)
	}

	logArgs := []any{
		"case_id", result.CaseID,
		"catalog_version", result.CatalogVersion,
		"outcome", result.Outcome(),
		"candidates", len(result.Candidates),
		"conflicts", len(result.Conflicts),
		"duration_ms", float64(duration.Microseconds()) / 1000,
	}
	switch {
	case err != nil:
		e.logger.Error("evaluation ambiguous", append(logArgs, "error", err)...)
	case result.NeedsReview():
		e.logger.Info("evaluation needs human review", logArgs...)
	default:
		e.logger.Debug("evaluation complete", logArgs...)
	}

	if e.observer != nil {
		e.observer.ObserveEvaluation(result, err, duration)
	}
	if e.sink != nil {
		if sinkErr := e.sink.Submit(ctx, result, err); sinkErr != nil {
			e.logger.Error("failed to submit audit record", "case_id", result.CaseID, "error", sinkErr)
		}
	}

	return result, err
}

// BatchItem is one entry of an EvaluateBatch result, in input order.
type BatchItem struct {
	Fact   *facts.Fact
	Result *Result
	Err    error
}

// EvaluateBatch evaluates facts concurrently against one catalog snapshot.
// workers <= 0 means one worker per fact.
func (e *Engine) EvaluateBatch(ctx context.Context, batch []*facts.Fact, workers int) ([]BatchItem, error) {
	catalog := e.source.Current()
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	if workers <= 0 || workers > len(batch) {
		workers = len(batch)
	}

	ctx, span := e.tracer.Start(ctx, "engine.evaluate_batch",
		oteltrace.WithAttributes(attribute.Int(tracing.AttrBatchSize, len(batch))),
	)
	defer span.End()

	items := make([]BatchItem, len(batch))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := e.evaluate(ctx, catalog, batch[i])
				items[i] = BatchItem{Fact: batch[i], Result: res, Err: err}
			}
		}()
	}

	var ctxErr error
feed:
	for i := range batch {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		tracing.SetError(span, ctxErr)
	}
	return items, ctxErr
}
