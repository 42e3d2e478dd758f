// Package server implements the core OpenID Connect authorization logic.
//
// This package validates incoming authorization requests, persists pending
// authorizations until the user completes login, and decides how validation
// failures are delivered back to the client. It coordinates between storage
// backends and security features while remaining transport-agnostic.
//
// The Server type delegates to specialized modules:
//   - Client and pending-request storage (storage package)
//   - Security features (security package)
//
// Key behaviors:
//   - Strict, ordered validation of authorization requests
//   - PKCE with the S256 challenge method only
//   - Errors redirected to the client only when the redirect URI is
//     registered for a known client, never otherwise
//   - Dynamic client registration with hashed secrets
//   - Comprehensive security auditing
//
// Example usage:
//
//	store := memory.New()
//
//	config := &server.Config{
//	    Issuer:   "https://auth.example.com",
//	    LoginURL: "https://auth.example.com/login",
//	}
//
//	srv, err := server.New(store, store, config, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
package server
