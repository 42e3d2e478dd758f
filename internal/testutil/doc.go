// Package testutil provides shared test helpers: deterministic time sources,
// fixture generators for clients and pending authorization requests, and
// small assertion helpers.
package testutil
