// Package vaulton provides an embeddable OpenID Connect authorization
// server core: authorization request validation, pending-authorization
// storage, dynamic client registration, and the HTTP endpoints that
// front them.
//
// The package is organized in layers:
//
//   - The root package exposes the HTTP Handler and public types.
//   - server holds the transport-agnostic authorization logic.
//   - storage defines the persistence interfaces, with in-memory,
//     Valkey, and MySQL backed implementations.
//   - security provides auditing, rate limiting, and header helpers.
//   - instrumentation wires OpenTelemetry metrics and tracing.
//
// A minimal deployment:
//
//	store := memory.New()
//	srv, err := server.New(store, store, &server.Config{
//	    Issuer:   "https://auth.example.com",
//	    LoginURL: "https://auth.example.com/login",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handler := vaulton.NewHandler(srv, logger)
//	mux := http.NewServeMux()
//	handler.RegisterRoutes(mux)
package vaulton
