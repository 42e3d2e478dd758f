package server

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vaulton/vaulton/storage"
	"github.com/vaulton/vaulton/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := New(store, store, &Config{
		Issuer:   "https://auth.example.com",
		LoginURL: "https://auth.example.com/login",
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return srv, store
}

func registerTestClient(t *testing.T, store *memory.Store) *storage.Client {
	t.Helper()

	client := testClient()
	if err := store.SaveClient(context.Background(), client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
	return client
}

func TestAuthorize_Success(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)
	ctx := context.Background()

	result, err := srv.Authorize(ctx, validRequest(), "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError != nil {
		t.Fatalf("unexpected auth error: %v", result.AuthError)
	}

	if len(result.RequestID) != 32 {
		t.Errorf("RequestID length = %d, want 32", len(result.RequestID))
	}
	for _, ch := range result.RequestID {
		ok := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
		if !ok {
			t.Errorf("RequestID contains invalid character %q", ch)
			break
		}
	}

	parsed, err := url.Parse(result.RedirectURL)
	if err != nil {
		t.Fatalf("RedirectURL is not a valid URL: %v", err)
	}
	if !strings.HasPrefix(result.RedirectURL, "https://auth.example.com/login?") {
		t.Errorf("RedirectURL = %q, want login page prefix", result.RedirectURL)
	}
	if parsed.Query().Get("request_id") != result.RequestID {
		t.Errorf("request_id param = %q, want %q", parsed.Query().Get("request_id"), result.RequestID)
	}

	// The pending authorization must be retrievable with verbatim parameters.
	pending, err := srv.GetPendingAuthorization(ctx, result.RequestID)
	if err != nil {
		t.Fatalf("GetPendingAuthorization() error = %v", err)
	}
	if pending.ClientID != "abc" {
		t.Errorf("ClientID = %q, want %q", pending.ClientID, "abc")
	}
	if pending.RedirectURI != "https://app.example/cb" {
		t.Errorf("RedirectURI = %q, want %q", pending.RedirectURI, "https://app.example/cb")
	}
	if pending.Scope != "openid profile" {
		t.Errorf("Scope = %q, want %q", pending.Scope, "openid profile")
	}
	if pending.State != "xyz" {
		t.Errorf("State = %q, want %q", pending.State, "xyz")
	}
	if pending.CodeChallengeMethod != "S256" {
		t.Errorf("CodeChallengeMethod = %q, want %q", pending.CodeChallengeMethod, "S256")
	}
	if pending.ExpiresAt.Before(pending.CreatedAt) {
		t.Error("ExpiresAt is before CreatedAt")
	}
}

func TestAuthorize_AbsentScopeStoredAsOpenID(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)
	ctx := context.Background()

	req := validRequest()
	req.Scope = ""

	result, err := srv.Authorize(ctx, req, "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError != nil {
		t.Fatalf("unexpected auth error: %v", result.AuthError)
	}

	// The effective scope defaults to "openid"; the stored record must
	// carry it so the login step never sees an empty scope.
	pending, err := srv.GetPendingAuthorization(ctx, result.RequestID)
	if err != nil {
		t.Fatalf("GetPendingAuthorization() error = %v", err)
	}
	if pending.Scope != "openid" {
		t.Errorf("stored Scope = %q, want %q", pending.Scope, "openid")
	}
}

func TestAuthorize_InvalidScopeRedirectsWithState(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)

	req := validRequest()
	req.Scope = "openid admin"

	result, err := srv.Authorize(context.Background(), req, "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil {
		t.Fatal("expected auth error, got nil")
	}
	if result.AuthError.Code != ErrorCodeInvalidScope {
		t.Errorf("error code = %q, want %q", result.AuthError.Code, ErrorCodeInvalidScope)
	}

	if result.RedirectURL == "" {
		t.Fatal("expected error redirect, got direct delivery")
	}
	parsed, _ := url.Parse(result.RedirectURL)
	q := parsed.Query()
	if q.Get("error") != "invalid_scope" {
		t.Errorf("error param = %q, want %q", q.Get("error"), "invalid_scope")
	}
	if q.Get("state") != "xyz" {
		t.Errorf("state param = %q, want %q", q.Get("state"), "xyz")
	}
	if !strings.HasPrefix(result.RedirectURL, "https://app.example/cb?") {
		t.Errorf("redirect target = %q, want client callback", result.RedirectURL)
	}
}

func TestAuthorize_UnknownClientNeverRedirects(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.Authorize(context.Background(), validRequest(), "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil {
		t.Fatal("expected auth error, got nil")
	}
	if result.AuthError.Code != ErrorCodeInvalidClient {
		t.Errorf("error code = %q, want %q", result.AuthError.Code, ErrorCodeInvalidClient)
	}
	if result.RedirectURL != "" {
		t.Errorf("RedirectURL = %q, want empty (no redirect for unknown client)", result.RedirectURL)
	}
}

// erroringClientStore simulates a client directory whose backend is down.
type erroringClientStore struct{}

func (erroringClientStore) SaveClient(context.Context, *storage.Client) error {
	return errors.New("backend unavailable")
}

func (erroringClientStore) GetClient(context.Context, string) (*storage.Client, error) {
	return nil, errors.New("backend unavailable")
}

func TestAuthorize_ClientLookupFailureCollapsesToUnknownClient(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := New(erroringClientStore{}, store, &Config{
		Issuer:   "https://auth.example.com",
		LoginURL: "https://auth.example.com/login",
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A directory outage is indistinguishable from an unknown client: the
	// redirect URI cannot be verified, so no redirect is produced.
	result, err := srv.Authorize(context.Background(), validRequest(), "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil {
		t.Fatal("expected auth error, got nil")
	}
	if result.AuthError.Code != ErrorCodeInvalidClient {
		t.Errorf("error code = %q, want %q", result.AuthError.Code, ErrorCodeInvalidClient)
	}
	if result.RedirectURL != "" {
		t.Errorf("RedirectURL = %q, want empty", result.RedirectURL)
	}

	// The earlier validation rules still take precedence over the lookup.
	req := validRequest()
	req.ResponseType = "token"
	result, err = srv.Authorize(context.Background(), req, "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil || result.AuthError.Code != ErrorCodeUnsupportedResponseType {
		t.Fatalf("auth error = %v, want unsupported_response_type", result.AuthError)
	}
}

func TestAuthorize_UnregisteredRedirectURINeverRedirects(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)

	req := validRequest()
	req.RedirectURI = "https://evil.example/cb"

	result, err := srv.Authorize(context.Background(), req, "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil {
		t.Fatal("expected auth error, got nil")
	}
	if result.AuthError.Code != ErrorCodeInvalidRequest {
		t.Errorf("error code = %q, want %q", result.AuthError.Code, ErrorCodeInvalidRequest)
	}
	// Redirecting here would be an open redirect.
	if result.RedirectURL != "" {
		t.Errorf("RedirectURL = %q, want empty", result.RedirectURL)
	}
}

func TestAuthorize_ServerScopeRestriction(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := New(store, store, &Config{
		Issuer:          "https://auth.example.com",
		LoginURL:        "https://auth.example.com/login",
		SupportedScopes: []string{"openid"},
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	registerTestClient(t, store)

	result, err := srv.Authorize(context.Background(), validRequest(), "203.0.113.10")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if result.AuthError == nil || result.AuthError.Code != ErrorCodeInvalidScope {
		t.Fatalf("auth error = %v, want invalid_scope", result.AuthError)
	}
	// Client and redirect URI are valid, so the error goes to the client.
	if result.RedirectURL == "" {
		t.Error("expected error redirect for valid client and redirect URI")
	}
}

func TestAuthorize_UniqueRequestIDs(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result, err := srv.Authorize(ctx, validRequest(), "203.0.113.10")
		if err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if result.AuthError != nil {
			t.Fatalf("unexpected auth error: %v", result.AuthError)
		}
		if seen[result.RequestID] {
			t.Fatalf("duplicate request id %q", result.RequestID)
		}
		seen[result.RequestID] = true
	}
}

func TestConsumePendingAuthorization(t *testing.T) {
	srv, store := newTestServer(t)
	registerTestClient(t, store)
	ctx := context.Background()

	result, err := srv.Authorize(ctx, validRequest(), "203.0.113.10")
	if err != nil || result.AuthError != nil {
		t.Fatalf("Authorize() = %v, %v", result, err)
	}

	pending, err := srv.ConsumePendingAuthorization(ctx, result.RequestID)
	if err != nil {
		t.Fatalf("ConsumePendingAuthorization() error = %v", err)
	}
	if pending.RequestID != result.RequestID {
		t.Errorf("RequestID = %q, want %q", pending.RequestID, result.RequestID)
	}

	// One-time use: the second consume must fail.
	if _, err := srv.ConsumePendingAuthorization(ctx, result.RequestID); !errors.Is(err, storage.ErrRequestNotFound) {
		t.Errorf("second consume error = %v, want ErrRequestNotFound", err)
	}
}

func TestConsumePendingAuthorization_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := srv.ConsumePendingAuthorization(context.Background(), "nope")
	if !errors.Is(err, storage.ErrRequestNotFound) {
		t.Errorf("error = %v, want ErrRequestNotFound", err)
	}
}

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := generateRequestID()
		if err != nil {
			t.Fatalf("generateRequestID() error = %v", err)
		}
		if len(id) != requestIDLength {
			t.Fatalf("length = %d, want %d", len(id), requestIDLength)
		}
		for _, ch := range id {
			ok := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
			if !ok {
				t.Fatalf("invalid character %q in %q", ch, id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestAuthorize_TTLApplied(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := New(store, store, &Config{
		Issuer:         "https://auth.example.com",
		LoginURL:       "https://auth.example.com/login",
		AuthRequestTTL: 60,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	registerTestClient(t, store)
	ctx := context.Background()

	result, err := srv.Authorize(ctx, validRequest(), "203.0.113.10")
	if err != nil || result.AuthError != nil {
		t.Fatalf("Authorize() = %v, %v", result, err)
	}

	pending, err := srv.GetPendingAuthorization(ctx, result.RequestID)
	if err != nil {
		t.Fatalf("GetPendingAuthorization() error = %v", err)
	}

	ttl := pending.ExpiresAt.Sub(pending.CreatedAt)
	if ttl != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", ttl)
	}
}
