// Package memory implements the storage interfaces with in-process maps
// guarded by a reader-writer lock.
//
// The store enforces insert-only semantics for authorization requests:
// a request ID can never be overwritten, and consuming a request removes
// it atomically. Expired requests are swept by a background goroutine and
// are also rejected on read, so callers never observe a stale record.
//
// Use New for production defaults or NewWithInterval to control the sweep
// interval in tests. Call Stop when the store is no longer needed.
package memory
