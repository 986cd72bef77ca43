package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/audit/recorder"
	"mercator-hq/adjudicator/pkg/audit/storage"
	"mercator-hq/adjudicator/pkg/catalog/manager"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/telemetry/metrics"
	"mercator-hq/adjudicator/pkg/telemetry/tracing"
)

// services is the set of components a command works with.
type services struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	catalogs *manager.Manager
	engine   *engine.Engine
	store    audit.Storage
	recorder *recorder.Recorder
}

type serviceOptions struct {
	// audit opens audit storage and records every evaluation.
	audit bool

	evaluationHooks []engine.Observer
}

func newServices(opts serviceOptions) (_ *services, err error) {
	svc := &services{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = svc.Close(context.Background())
		}
	}()

	svc.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	svc.tracer, err = tracing.New(cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	svc.catalogs, err = manager.New(&cfg.Catalog,
		manager.WithLogger(logger),
		manager.WithEngineLimits(cfg.Engine),
		manager.WithObserver(svc.metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := svc.catalogs.Load(); err != nil {
		return nil, err
	}

	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithTracer(svc.tracer.Tracer()),
		engine.WithObserver(append(evaluationObservers{svc.metrics}, opts.evaluationHooks...)),
	}
	if opts.audit {
		svc.store, err = openAuditStorage()
		if err != nil {
			return nil, err
		}
		svc.recorder = recorder.New(svc.store, cfg.Audit.Recorder,
			recorder.WithLogger(logger),
			recorder.WithObserver(svc.metrics),
		)
		engineOpts = append(engineOpts, engine.WithSink(svc.recorder))
	}

	svc.engine, err = engine.New(svc.catalogs, engineOpts...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Close drains the audit recorder, then releases storage, the catalog
// watcher and the tracer, and writes the metrics textfile when configured.
func (svc *services) Close(ctx context.Context) error {
	var errs []error
	if svc.recorder != nil {
		errs = append(errs, svc.recorder.Close())
	}
	if svc.store != nil {
		errs = append(errs, svc.store.Close())
	}
	if svc.catalogs != nil {
		errs = append(errs, svc.catalogs.Close())
	}
	if svc.tracer != nil {
		errs = append(errs, svc.tracer.Shutdown(ctx))
	}
	if svc.metrics != nil && svc.cfg.Telemetry.Metrics.Enabled && svc.cfg.Telemetry.Metrics.TextfilePath != "" {
		errs = append(errs, svc.metrics.WriteToTextfile(svc.cfg.Telemetry.Metrics.TextfilePath))
	}
	return errors.Join(errs...)
}

// reloadFunc adapts a function to manager.ReloadObserver.
type reloadFunc func(status string, catalog *rules.Catalog)

func (f reloadFunc) ObserveReload(status string, catalog *rules.Catalog) { f(status, catalog) }

// evaluationObservers fans an evaluation out to several observers.
type evaluationObservers []engine.Observer

func (o evaluationObservers) ObserveEvaluation(result *engine.Result, err error, d time.Duration) {
	for _, obs := range o {
		obs.ObserveEvaluation(result, err, d)
	}
}

// openAuditStorage opens audit storage for the audit commands.
func openAuditStorage() (audit.Storage, error) {
	store, err := storage.New(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit storage: %w", err)
	}
	return store, nil
}
