// Package audit persists evaluation results as immutable audit records.
//
// # Architecture
//
//  1. recorder turns engine results into Records and writes them
//     asynchronously, so evaluations never wait on storage.
//  2. storage persists records (SQLite, or memory for tests).
//  3. query validates filters and applies limits.
//  4. export writes records as JSON or CSV.
//  5. retention prunes records by age and count, on a cron schedule.
//
// A Record keeps the binding decision, every candidate, the conflict count
// and the full evaluation trace, so a decision can be explained long after
// the catalog that produced it was replaced. CatalogVersion identifies that
// catalog.
package audit
