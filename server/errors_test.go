package server

import (
	"net/url"
	"strings"
	"testing"
)

func TestOAuthError_Error(t *testing.T) {
	err := ErrInvalidScope("scope must include openid")
	want := "invalid_scope: scope must include openid"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestOAuthError_Redirectable(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{ErrorCodeInvalidRequest, true},
		{ErrorCodeUnauthorizedClient, true},
		{ErrorCodeAccessDenied, true},
		{ErrorCodeUnsupportedResponseType, true},
		{ErrorCodeInvalidScope, true},
		{ErrorCodeServerError, true},
		{ErrorCodeTemporarilyUnavailable, true},
		{ErrorCodeInvalidClient, false},
		{"made_up_code", false},
	}

	for _, tt := range tests {
		e := &OAuthError{Code: tt.code}
		if got := e.Redirectable(); got != tt.want {
			t.Errorf("Redirectable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestOAuthError_RedirectURL(t *testing.T) {
	e := ErrInvalidScope("client is not authorized for one or more requested scopes")

	got, err := e.RedirectURL("https://app.example/cb", "xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("result is not a valid URL: %v", err)
	}
	q := parsed.Query()
	if q.Get("error") != "invalid_scope" {
		t.Errorf("error param = %q, want %q", q.Get("error"), "invalid_scope")
	}
	if q.Get("state") != "xyz" {
		t.Errorf("state param = %q, want %q", q.Get("state"), "xyz")
	}
	if q.Get("error_description") == "" {
		t.Error("error_description param missing")
	}
	if !strings.HasPrefix(got, "https://app.example/cb?") {
		t.Errorf("redirect target = %q, want prefix %q", got, "https://app.example/cb?")
	}
}

func TestOAuthError_RedirectURL_PreservesExistingQuery(t *testing.T) {
	e := ErrAccessDenied("the user denied the request")

	got, err := e.RedirectURL("https://app.example/cb?tenant=acme", "st")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, _ := url.Parse(got)
	q := parsed.Query()
	if q.Get("tenant") != "acme" {
		t.Errorf("existing query param lost: tenant = %q, want %q", q.Get("tenant"), "acme")
	}
	if q.Get("error") != "access_denied" {
		t.Errorf("error param = %q, want %q", q.Get("error"), "access_denied")
	}
}

func TestOAuthError_RedirectURL_OmitsEmptyState(t *testing.T) {
	e := ErrInvalidRequest("bad request")

	got, err := e.RedirectURL("https://app.example/cb", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, _ := url.Parse(got)
	if _, present := parsed.Query()["state"]; present {
		t.Error("state param present, want omitted")
	}
}

func TestOAuthError_RedirectURL_RejectsNonRedirectable(t *testing.T) {
	e := ErrInvalidClient("unknown client")

	if _, err := e.RedirectURL("https://app.example/cb", "xyz"); err == nil {
		t.Fatal("expected error for invalid_client redirect, got nil")
	}
}
