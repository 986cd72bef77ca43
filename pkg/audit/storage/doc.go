// Package storage provides audit record backends.
//
// SQLiteStorage is the durable backend. It works with either the cgo
// driver (github.com/mattn/go-sqlite3, driver "sqlite3") or the pure Go one
// (modernc.org/sqlite, driver "sqlite"), enables WAL mode and a busy timeout,
// and tracks a schema version. MemoryStorage keeps records in a map.
//
// Both backends store copies, so callers cannot mutate stored records.
package storage
