// Package metrics provides Prometheus metrics for the adjudicator.
//
// # Metrics Categories
//
//   - Evaluation metrics: evaluations by outcome, latency, conflicts, reviews
//   - Rule metrics: hits, misses, faults and bindings per rule
//   - Catalog metrics: reload attempts and the size of the active catalog
//   - Audit metrics: recorder writes and storage latency
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//
//	eng, _ := engine.New(source, engine.WithObserver(collector))
//	mgr, _ := manager.New(&cfg.Catalog, manager.WithObserver(collector))
//	rec := recorder.New(store, cfg.Audit.Recorder, recorder.WithObserver(collector))
//
// CLI runs write the registry once with WriteToTextfile for the
// node_exporter textfile collector.
//
// # Cardinality
//
// rule_id labels are bounded by a CardinalityLimiter. Rules seen after the
// limit is reached are reported as "other".
package metrics
