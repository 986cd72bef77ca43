// Package recorder writes evaluation results to audit storage without
// blocking the evaluation that produced them.
//
// A Recorder is an engine.Sink:
//
//	rec := recorder.New(store, cfg.Audit.Recorder)
//	defer rec.Close()
//
//	eng, _ := engine.New(mgr, engine.WithSink(rec))
//
// Submit converts the result into an audit.Record, seals it with its
// SHA-256 hash and queues it on a buffered channel. A single worker drains
// the channel into storage. When the queue stays full for WriteTimeout the
// record is dropped and counted. Close drains the queue before returning.
package recorder
