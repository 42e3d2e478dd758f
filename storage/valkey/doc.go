// Package valkey provides a Valkey storage backend for the vaulton
// authorization server.
//
// Valkey is a high-performance key-value store that is wire-compatible
// with Redis. This backend is suitable for deployments that require:
//
//   - Distributed storage for horizontal scaling
//   - Persistence across server restarts
//   - Automatic TTL-based expiration of pending authorization requests
//
// # Implemented Interfaces
//
// The Store type implements:
//
//   - [storage.ClientStore]: registered client directory
//   - [storage.AuthRequestStore]: pending authorization requests
//
// # Key Schema
//
// All keys use a configurable prefix (default "vaulton:") to avoid
// conflicts with other applications sharing the same Valkey instance:
//
//	{prefix}client:{clientID}    -> JSON(Client)
//	{prefix}authreq:{requestID}  -> JSON(AuthorizationRequest), with TTL
//
// # Atomic Operations
//
// Pending authorization requests are single use. Both insert and
// consume are atomic:
//
//   - SaveAuthorizationRequest uses SET NX so an existing request ID is
//     never overwritten
//   - ConsumeAuthorizationRequest uses a Lua get-and-delete script so
//     only one concurrent consumer of a request ID can succeed
//
// # Configuration
//
// Basic usage:
//
//	store, err := valkey.New(valkey.Config{
//	    Address: "localhost:6379",
//	})
//
// With TLS:
//
//	store, err := valkey.New(valkey.Config{
//	    Address:  "valkey.example.com:6379",
//	    Password: os.Getenv("VALKEY_PASSWORD"),
//	    TLS:      &tls.Config{MinVersion: tls.VersionTLS12},
//	})
package valkey
