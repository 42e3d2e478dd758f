// Package mysql provides a MySQL storage backend for the vaulton
// authorization server.
//
// The Store type implements [storage.ClientStore] and
// [storage.AuthRequestStore] on top of database/sql with the
// go-sql-driver/mysql driver. It is suitable for deployments that
// already operate MySQL and want durable client registrations.
//
// # Schema
//
// Call Migrate once at startup to create the two tables:
//
//	oauth_client  - registered clients, keyed by client_id
//	auth_request  - pending authorization requests, keyed by request_id
//
// Duplicate detection for both relies on the primary key: a unique key
// violation maps to storage.ErrDuplicateClientID or
// storage.ErrDuplicateRequestID.
//
// # Expiry
//
// MySQL has no per-row TTL, so expired authorization requests are
// treated as absent on read and physically removed by
// DeleteExpiredRequests, which the operator should run periodically.
//
// # Atomic Consume
//
// ConsumeAuthorizationRequest locks the row FOR UPDATE inside a
// transaction before deleting it, so a request ID can be redeemed by at
// most one concurrent caller.
package mysql
