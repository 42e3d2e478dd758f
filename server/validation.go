package server

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vaulton/vaulton/storage"
)

// PKCE constants (RFC 7636). Only the S256 method is accepted; the
// deprecated "plain" method is rejected as unsupported.
const (
	PKCEMethodS256 = "S256"
)

// ResponseTypeCode is the only supported response_type
const ResponseTypeCode = "code"

// ScopeOpenID is the scope every authorization request must carry
const ScopeOpenID = "openid"

// AuthorizationRequest carries the raw query parameters of an
// authorization request, before any validation.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ValidatedRequest is the outcome of a successful validation: the resolved
// client together with the parsed scope list (with the default applied).
type ValidatedRequest struct {
	Client *storage.Client
	Scopes []string
}

// ValidateAuthorizationRequest checks an authorization request against the
// resolved client. Rules are evaluated in a fixed order and the first
// failure determines the reported error code:
//
//  1. response_type must be "code"
//  2. code_challenge_method, when present, must be "S256"
//  3. the scope list (default "openid") must contain "openid"
//  4. the client must exist (client is nil when lookup failed)
//  5. redirect_uri must match a registered URI verbatim
//  6. every requested scope must be allowed for the client
//
// The caller resolves the client before validation; lookup failures are
// surfaced here as rule 4 so that rules 1 to 3 keep precedence over an
// unknown client.
func ValidateAuthorizationRequest(req *AuthorizationRequest, client *storage.Client) (*ValidatedRequest, *OAuthError) {
	if req.ResponseType != ResponseTypeCode {
		return nil, ErrUnsupportedResponseType("only the authorization code flow is supported")
	}

	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != PKCEMethodS256 {
		return nil, ErrInvalidRequest(fmt.Sprintf("unsupported code_challenge_method: only %s is supported", PKCEMethodS256))
	}

	scopes := parseScopes(req.Scope)
	if !containsScope(scopes, ScopeOpenID) {
		return nil, ErrInvalidScope("scope must include openid")
	}

	if client == nil {
		return nil, ErrInvalidClient("unknown client")
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		return nil, ErrInvalidRequest("redirect_uri is not registered for this client")
	}

	if !client.AllowsScopes(scopes) {
		return nil, ErrInvalidScope("client is not authorized for one or more requested scopes")
	}

	return &ValidatedRequest{
		Client: client,
		Scopes: scopes,
	}, nil
}

// parseScopes splits a scope parameter into individual scopes on
// whitespace. An empty or missing scope defaults to ["openid"].
func parseScopes(scope string) []string {
	scopes := strings.Fields(scope)
	if len(scopes) == 0 {
		return []string{ScopeOpenID}
	}
	return scopes
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// validateServerScopes checks requested scopes against the server-wide
// allow list. An empty configured list allows all scopes.
func (s *Server) validateServerScopes(scopes []string) error {
	if len(s.Config.SupportedScopes) == 0 {
		return nil
	}

	for _, reqScope := range scopes {
		found := false
		for _, supported := range s.Config.SupportedScopes {
			if reqScope == supported {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unsupported scope: %s", reqScope)
		}
	}

	return nil
}

// validateHTTPSEnforcement ensures the server is running over HTTPS in
// production environments. OAuth over HTTP exposes credentials and
// pending authorization identifiers to network interception.
//
// The validation logic:
//   - HTTPS URLs: always allowed
//   - HTTP on localhost: allowed with warning (development)
//   - HTTP on non-localhost: blocked unless AllowInsecureHTTP=true
func (s *Server) validateHTTPSEnforcement() error {
	// Skip validation if Issuer is empty (will fail elsewhere with more appropriate error)
	if s.Config.Issuer == "" {
		return nil
	}

	issuerURL, err := url.Parse(s.Config.Issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}

	if issuerURL.Scheme == "https" {
		return nil
	}

	if issuerURL.Scheme == "http" {
		hostname := issuerURL.Hostname()

		if isLocalhostHostname(hostname) {
			if !s.Config.AllowInsecureHTTP {
				s.Logger.Warn("Running over HTTP on localhost",
					"issuer", s.Config.Issuer,
					"recommendation", "use HTTPS even in development for production-like testing")
			}
			return nil
		}

		if !s.Config.AllowInsecureHTTP {
			return fmt.Errorf(
				"issuer must use HTTPS in production (got %s://%s); "+
					"set AllowInsecureHTTP=true only for local development",
				issuerURL.Scheme,
				hostname,
			)
		}

		s.Logger.Error("Running authorization server over HTTP",
			"issuer", s.Config.Issuer,
			"hostname", hostname,
			"risk", "credentials exposed to network sniffing and MITM attacks")

		return nil
	}

	return fmt.Errorf("invalid issuer URL scheme: %s (must be http or https)", issuerURL.Scheme)
}

// isLocalhostHostname checks if a hostname refers to the local machine.
// This includes IPv4 loopback (entire 127.0.0.0/8 range per RFC 1122),
// IPv6 loopback (::1), localhost hostname, and 0.0.0.0 (bind-all in dev).
func isLocalhostHostname(hostname string) bool {
	if hostname == "localhost" || hostname == "0.0.0.0" {
		return true
	}

	// url.Hostname() may keep brackets around IPv6 literals
	cleanHostname := hostname
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		cleanHostname = hostname[1 : len(hostname)-1]
	}

	if ip := net.ParseIP(cleanHostname); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

// validateRedirectURIFormat performs basic well-formedness checks used at
// client registration time. Redirect URIs must be absolute and must not
// carry fragments.
func validateRedirectURIFormat(redirectURI string) error {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %w", err)
	}

	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments")
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must be absolute")
	}

	return nil
}
