package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vaulton/vaulton/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	t.Cleanup(s.Stop)
	return s
}

func testRequest(requestID string) *storage.AuthorizationRequest {
	return &storage.AuthorizationRequest{
		RequestID:           requestID,
		ClientID:            "test-client",
		RedirectURI:         "https://app.example/cb",
		Scope:               "openid profile",
		State:               "xyz",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		CreatedAt:           time.Now(),
		ExpiresAt:           time.Now().Add(10 * time.Minute),
	}
}

func TestStore_SaveAndGetClient(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	client := &storage.Client{
		ClientID:     "abc",
		RedirectURIs: []string{"https://app.example/cb"},
		Scopes:       []string{"openid", "profile"},
		CreatedAt:    time.Now(),
	}

	if err := s.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	got, err := s.GetClient(ctx, "abc")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if got.ClientID != "abc" {
		t.Errorf("GetClient() ClientID = %q, want %q", got.ClientID, "abc")
	}

	if _, err := s.GetClient(ctx, "missing"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("GetClient(missing) error = %v, want ErrClientNotFound", err)
	}

	if err := s.SaveClient(ctx, client); !errors.Is(err, storage.ErrDuplicateClientID) {
		t.Errorf("SaveClient(duplicate) error = %v, want ErrDuplicateClientID", err)
	}
}

func TestStore_SaveClient_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SaveClient(ctx, nil); err == nil {
		t.Error("SaveClient(nil) should fail")
	}
	if err := s.SaveClient(ctx, &storage.Client{}); err == nil {
		t.Error("SaveClient(empty client_id) should fail")
	}
}

func TestStore_SaveAndGetAuthorizationRequest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	req := testRequest("req-1")
	if err := s.SaveAuthorizationRequest(ctx, req); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	got, err := s.GetAuthorizationRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetAuthorizationRequest() error = %v", err)
	}
	if got.ClientID != req.ClientID || got.RedirectURI != req.RedirectURI ||
		got.Scope != req.Scope || got.State != req.State ||
		got.CodeChallenge != req.CodeChallenge || got.CodeChallengeMethod != req.CodeChallengeMethod {
		t.Errorf("GetAuthorizationRequest() = %+v, want %+v", got, req)
	}

	// Non-consuming read: a second get still succeeds
	if _, err := s.GetAuthorizationRequest(ctx, "req-1"); err != nil {
		t.Errorf("second GetAuthorizationRequest() error = %v", err)
	}
}

func TestStore_SaveAuthorizationRequest_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SaveAuthorizationRequest(ctx, testRequest("req-1")); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	dup := testRequest("req-1")
	dup.ClientID = "other-client"
	if err := s.SaveAuthorizationRequest(ctx, dup); !errors.Is(err, storage.ErrDuplicateRequestID) {
		t.Fatalf("duplicate insert error = %v, want ErrDuplicateRequestID", err)
	}

	// Original entry must be untouched
	got, err := s.GetAuthorizationRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetAuthorizationRequest() error = %v", err)
	}
	if got.ClientID != "test-client" {
		t.Errorf("duplicate insert overwrote record: ClientID = %q", got.ClientID)
	}
}

func TestStore_ConsumeAuthorizationRequest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SaveAuthorizationRequest(ctx, testRequest("req-1")); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	got, err := s.ConsumeAuthorizationRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("ConsumeAuthorizationRequest() error = %v", err)
	}
	if got.RequestID != "req-1" {
		t.Errorf("ConsumeAuthorizationRequest() RequestID = %q", got.RequestID)
	}

	if _, err := s.ConsumeAuthorizationRequest(ctx, "req-1"); !errors.Is(err, storage.ErrRequestNotFound) {
		t.Errorf("second consume error = %v, want ErrRequestNotFound", err)
	}
}

func TestStore_ExpiredAuthorizationRequest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	req := testRequest("req-1")
	req.ExpiresAt = time.Now().Add(-time.Minute)
	if err := s.SaveAuthorizationRequest(ctx, req); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	if _, err := s.GetAuthorizationRequest(ctx, "req-1"); !errors.Is(err, storage.ErrRequestExpired) {
		t.Errorf("GetAuthorizationRequest(expired) error = %v, want ErrRequestExpired", err)
	}
	if _, err := s.ConsumeAuthorizationRequest(ctx, "req-1"); !errors.Is(err, storage.ErrRequestExpired) {
		t.Errorf("ConsumeAuthorizationRequest(expired) error = %v, want ErrRequestExpired", err)
	}
}

func TestStore_CleanupRemovesExpiredRequests(t *testing.T) {
	ctx := context.Background()
	s := NewWithInterval(10 * time.Millisecond)
	t.Cleanup(s.Stop)

	expired := testRequest("expired")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	live := testRequest("live")

	if err := s.SaveAuthorizationRequest(ctx, expired); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}
	if err := s.SaveAuthorizationRequest(ctx, live); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	s.cleanup()

	s.mu.RLock()
	_, expiredPresent := s.authRequests["expired"]
	_, livePresent := s.authRequests["live"]
	s.mu.RUnlock()

	if expiredPresent {
		t.Error("cleanup did not remove expired request")
	}
	if !livePresent {
		t.Error("cleanup removed live request")
	}
}

func TestStore_ConcurrentInsertsUniqueKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.SaveAuthorizationRequest(ctx, testRequest(fmt.Sprintf("req-%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent insert error = %v", err)
		}
	}

	for i := 0; i < n; i++ {
		if _, err := s.GetAuthorizationRequest(ctx, fmt.Sprintf("req-%d", i)); err != nil {
			t.Errorf("GetAuthorizationRequest(req-%d) error = %v", i, err)
		}
	}
}

func TestStore_ConcurrentInsertSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	var successes, duplicates int
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.SaveAuthorizationRequest(ctx, testRequest("contested"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrDuplicateRequestID):
				duplicates++
			default:
				t.Errorf("unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if duplicates != n-1 {
		t.Errorf("duplicates = %d, want %d", duplicates, n-1)
	}
}
