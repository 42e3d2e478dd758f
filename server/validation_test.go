package server

import (
	"testing"
	"time"

	"github.com/vaulton/vaulton/storage"
)

func testClient() *storage.Client {
	return &storage.Client{
		ClientID:     "abc",
		ClientType:   ClientTypeConfidential,
		ClientName:   "Example App",
		RedirectURIs: []string{"https://app.example/cb"},
		Scopes:       []string{"openid", "profile"},
		CreatedAt:    time.Now(),
	}
}

func validRequest() *AuthorizationRequest {
	return &AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            "abc",
		RedirectURI:         "https://app.example/cb",
		Scope:               "openid profile",
		State:               "xyz",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
	}
}

func TestValidateAuthorizationRequest_Valid(t *testing.T) {
	validated, authErr := ValidateAuthorizationRequest(validRequest(), testClient())
	if authErr != nil {
		t.Fatalf("unexpected error: %v", authErr)
	}
	if validated.Client.ClientID != "abc" {
		t.Errorf("Client.ClientID = %q, want %q", validated.Client.ClientID, "abc")
	}
	if len(validated.Scopes) != 2 || validated.Scopes[0] != "openid" || validated.Scopes[1] != "profile" {
		t.Errorf("Scopes = %v, want [openid profile]", validated.Scopes)
	}
}

func TestValidateAuthorizationRequest_DefaultScope(t *testing.T) {
	req := validRequest()
	req.Scope = ""

	client := testClient()
	validated, authErr := ValidateAuthorizationRequest(req, client)
	if authErr != nil {
		t.Fatalf("unexpected error: %v", authErr)
	}
	if len(validated.Scopes) != 1 || validated.Scopes[0] != "openid" {
		t.Errorf("Scopes = %v, want [openid]", validated.Scopes)
	}
}

func TestValidateAuthorizationRequest_Rules(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*AuthorizationRequest)
		client   *storage.Client
		wantCode string
	}{
		{
			name:     "wrong response type",
			modify:   func(r *AuthorizationRequest) { r.ResponseType = "token" },
			client:   testClient(),
			wantCode: ErrorCodeUnsupportedResponseType,
		},
		{
			name:     "empty response type",
			modify:   func(r *AuthorizationRequest) { r.ResponseType = "" },
			client:   testClient(),
			wantCode: ErrorCodeUnsupportedResponseType,
		},
		{
			name:     "plain pkce method",
			modify:   func(r *AuthorizationRequest) { r.CodeChallengeMethod = "plain" },
			client:   testClient(),
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name: "absent pkce method is accepted",
			modify: func(r *AuthorizationRequest) {
				r.CodeChallenge = ""
				r.CodeChallengeMethod = ""
			},
			client:   testClient(),
			wantCode: "",
		},
		{
			name:     "scope without openid",
			modify:   func(r *AuthorizationRequest) { r.Scope = "profile email" },
			client:   testClient(),
			wantCode: ErrorCodeInvalidScope,
		},
		{
			name:     "unknown client",
			modify:   func(r *AuthorizationRequest) {},
			client:   nil,
			wantCode: ErrorCodeInvalidClient,
		},
		{
			name:     "unregistered redirect uri",
			modify:   func(r *AuthorizationRequest) { r.RedirectURI = "https://evil.example/cb" },
			client:   testClient(),
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name:     "redirect uri differing by trailing slash",
			modify:   func(r *AuthorizationRequest) { r.RedirectURI = "https://app.example/cb/" },
			client:   testClient(),
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name:     "scope not allowed for client",
			modify:   func(r *AuthorizationRequest) { r.Scope = "openid admin" },
			client:   testClient(),
			wantCode: ErrorCodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(req)

			_, authErr := ValidateAuthorizationRequest(req, tt.client)
			if tt.wantCode == "" {
				if authErr != nil {
					t.Fatalf("unexpected error: %v", authErr)
				}
				return
			}
			if authErr == nil {
				t.Fatal("expected error but got nil")
			}
			if authErr.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", authErr.Code, tt.wantCode)
			}
		})
	}
}

// Order matters when a request breaks several rules at once: the earliest
// rule in the sequence wins.
func TestValidateAuthorizationRequest_Ordering(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*AuthorizationRequest)
		client   *storage.Client
		wantCode string
	}{
		{
			name: "response type beats pkce method",
			modify: func(r *AuthorizationRequest) {
				r.ResponseType = "token"
				r.CodeChallengeMethod = "plain"
			},
			client:   testClient(),
			wantCode: ErrorCodeUnsupportedResponseType,
		},
		{
			name: "response type beats unknown client",
			modify: func(r *AuthorizationRequest) {
				r.ResponseType = "token"
			},
			client:   nil,
			wantCode: ErrorCodeUnsupportedResponseType,
		},
		{
			name: "pkce method beats missing openid scope",
			modify: func(r *AuthorizationRequest) {
				r.CodeChallengeMethod = "plain"
				r.Scope = "profile"
			},
			client:   testClient(),
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name: "missing openid scope beats unknown client",
			modify: func(r *AuthorizationRequest) {
				r.Scope = "profile"
			},
			client:   nil,
			wantCode: ErrorCodeInvalidScope,
		},
		{
			name: "unknown client beats bad redirect uri",
			modify: func(r *AuthorizationRequest) {
				r.RedirectURI = "https://evil.example/cb"
			},
			client:   nil,
			wantCode: ErrorCodeInvalidClient,
		},
		{
			name: "bad redirect uri beats disallowed scope",
			modify: func(r *AuthorizationRequest) {
				r.RedirectURI = "https://evil.example/cb"
				r.Scope = "openid admin"
			},
			client:   testClient(),
			wantCode: ErrorCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(req)

			_, authErr := ValidateAuthorizationRequest(req, tt.client)
			if authErr == nil {
				t.Fatal("expected error but got nil")
			}
			if authErr.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", authErr.Code, tt.wantCode)
			}
		})
	}
}

func TestParseScopes(t *testing.T) {
	tests := []struct {
		scope string
		want  []string
	}{
		{"", []string{"openid"}},
		{"   ", []string{"openid"}},
		{"openid", []string{"openid"}},
		{"openid profile", []string{"openid", "profile"}},
		{"  openid \t profile  ", []string{"openid", "profile"}},
	}

	for _, tt := range tests {
		got := parseScopes(tt.scope)
		if len(got) != len(tt.want) {
			t.Errorf("parseScopes(%q) = %v, want %v", tt.scope, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseScopes(%q) = %v, want %v", tt.scope, got, tt.want)
				break
			}
		}
	}
}

func TestIsLocalhostHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"127.5.5.5", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"[::1]", true},
		{"example.com", false},
		{"192.168.1.1", false},
	}

	for _, tt := range tests {
		if got := isLocalhostHostname(tt.hostname); got != tt.want {
			t.Errorf("isLocalhostHostname(%q) = %v, want %v", tt.hostname, got, tt.want)
		}
	}
}

func TestValidateRedirectURIFormat(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"valid https", "https://app.example/cb", false},
		{"valid custom scheme", "myapp://callback", false},
		{"fragment", "https://app.example/cb#frag", true},
		{"relative", "/cb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRedirectURIFormat(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRedirectURIFormat(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
		})
	}
}
