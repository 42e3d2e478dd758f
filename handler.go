package vaulton

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaulton/vaulton/instrumentation"
	"github.com/vaulton/vaulton/internal/util"
	"github.com/vaulton/vaulton/security"
	"github.com/vaulton/vaulton/server"
)

// Handler is a thin HTTP adapter for the authorization Server.
// It handles HTTP requests and delegates to the Server for business logic.
type Handler struct {
	server      *server.Server
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *instrumentation.Metrics
	rateLimiter *security.RateLimiter
}

// NewHandler creates a new HTTP handler
func NewHandler(srv *server.Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		server: srv,
		logger: logger,
	}
}

// SetInstrumentation wires tracing and metrics into the HTTP layer
func (h *Handler) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	h.tracer = inst.Tracer("http")
	h.metrics = inst.Metrics()
}

// SetRateLimiter sets the IP-based rate limiter for all endpoints
func (h *Handler) SetRateLimiter(rl *security.RateLimiter) {
	h.rateLimiter = rl
}

// RegisterRoutes registers all HTTP endpoints on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth", h.ServeAuthorization)
	mux.HandleFunc("/.well-known/openid-configuration", h.ServeOpenIDConfiguration)
	mux.HandleFunc("/clients", h.ServeClientRegistration)
	mux.HandleFunc("/health", h.ServeHealth)
}

// authorizationErrorTemplate renders validation failures that cannot be
// delivered via redirect. Shown directly to the user agent, never to the
// client application.
const authorizationErrorTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authorization Error</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #1a1a2e;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #fff;
            margin: 0;
        }
        .container {
            text-align: center;
            padding: 2rem;
            max-width: 480px;
        }
        h1 {
            font-size: 1.5rem;
            margin-bottom: 0.75rem;
        }
        .code {
            font-family: monospace;
            color: #e94560;
        }
        .message {
            color: rgba(255, 255, 255, 0.7);
            line-height: 1.6;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Error</h1>
        <p class="code">{{.Code}}</p>
        <p class="message">{{.Description}}</p>
    </div>
</body>
</html>`

var authorizationErrorTmpl = template.Must(template.New("autherror").Parse(authorizationErrorTemplate))

// ServeAuthorization handles GET /auth, the OAuth authorization endpoint
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oidc.http.authorization")
		defer span.End()
		r = r.WithContext(ctx)
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("authorization", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
	if h.checkIPRateLimit(w, r, clientIP, "authorization") {
		h.recordHTTPMetrics("authorization", http.MethodGet, http.StatusTooManyRequests, startTime)
		return
	}

	q := r.URL.Query()
	authReq := &server.AuthorizationRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, authReq.ClientID),
		attribute.String(instrumentation.AttrScope, authReq.Scope),
	)

	result, err := h.server.Authorize(ctx, authReq, clientIP)
	if err != nil {
		h.logger.Error("Authorization processing failed", "error", err)
		h.recordHTTPMetrics("authorization", http.MethodGet, http.StatusInternalServerError, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrorCodeServerError, "Failed to process authorization request", http.StatusInternalServerError)
		return
	}

	if result.AuthError != nil {
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrErrorCode, result.AuthError.Code))
		instrumentation.SetSpanError(span, result.AuthError.Code)

		if result.RedirectURL != "" {
			// Error is delivered to the client's registered redirect URI.
			h.recordHTTPMetrics("authorization", http.MethodGet, http.StatusFound, startTime)
			http.Redirect(w, r, result.RedirectURL, http.StatusFound)
			return
		}

		h.recordHTTPMetrics("authorization", http.MethodGet, result.AuthError.Status, startTime)
		h.writeAuthorizationError(w, r, result.AuthError)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics("authorization", http.MethodGet, http.StatusFound, startTime)

	// Send the user to the login page to complete the flow.
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// ServeOpenIDConfiguration handles GET /.well-known/openid-configuration
func (h *Handler) ServeOpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("discovery", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := util.NormalizeURL(h.server.Config.Issuer)

	scopes := h.server.Config.SupportedScopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	config := OpenIDConfiguration{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/auth",
		TokenEndpoint:                     issuer + "/token",
		UserinfoEndpoint:                  issuer + "/userinfo",
		JWKSURI:                           issuer + "/jwks",
		RegistrationEndpoint:              issuer + "/clients",
		ResponseTypesSupported:            []string{"code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   scopes,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic"},
		ClaimsSupported:                   []string{"sub", "iss", "name", "email"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(config); err != nil {
		h.logger.Error("Failed to encode discovery document", "error", err)
	}
	h.recordHTTPMetrics("discovery", http.MethodGet, http.StatusOK, startTime)
}

// ServeClientRegistration handles POST /clients, the dynamic client
// registration endpoint
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oidc.http.client_registration")
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("register", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
	if h.checkIPRateLimit(w, r, clientIP, "register") {
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusTooManyRequests, startTime)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusBadRequest, startTime)
		h.writeError(w, ErrorCodeInvalidRequest, "Invalid JSON", http.StatusBadRequest)
		return
	}

	client, clientSecret, err := h.server.RegisterClient(ctx, req.ClientName, req.ClientType, req.RedirectURIs, req.Scopes, clientIP)
	if err != nil {
		if strings.Contains(err.Error(), "registration limit") {
			h.logger.Warn("Client registration limit exceeded", "ip", clientIP, "error", err)
			h.recordHTTPMetrics("register", http.MethodPost, http.StatusTooManyRequests, startTime)
			instrumentation.SetSpanError(span, "registration limit exceeded")
			h.writeError(w, ErrorCodeInvalidRequest, "Client registration limit exceeded", http.StatusTooManyRequests)
			return
		}

		h.logger.Warn("Client registration rejected", "ip", clientIP, "error", err)
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusBadRequest, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, client.ClientID))
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics("register", http.MethodPost, http.StatusCreated, startTime)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ClientRegistrationResponse{
		ClientID:         client.ClientID,
		ClientSecret:     clientSecret,
		ClientIDIssuedAt: client.CreatedAt.Unix(),
		ClientName:       client.ClientName,
		ClientType:       client.ClientType,
		RedirectURIs:     client.RedirectURIs,
		Scopes:           client.Scopes,
	})
}

// ServeHealth handles GET /health
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// checkIPRateLimit applies the IP rate limiter. Returns true if the
// request was rejected.
func (h *Handler) checkIPRateLimit(w http.ResponseWriter, r *http.Request, clientIP, endpoint string) bool {
	if h.rateLimiter == nil {
		return false
	}
	if h.rateLimiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
	if h.server.Auditor != nil {
		h.server.Auditor.LogRateLimitExceeded(clientIP, endpoint)
	}
	if h.metrics != nil {
		h.metrics.RecordRateLimitExceeded(r.Context(), endpoint)
	}

	h.writeError(w, ErrorCodeInvalidRequest, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	return true
}

// writeAuthorizationError renders a validation failure that must not be
// redirected. Browsers get an HTML page; API clients asking for JSON get
// the standard error body.
func (h *Handler) writeAuthorizationError(w http.ResponseWriter, r *http.Request, authErr *OAuthError) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(authErr.Status)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:            authErr.Code,
			ErrorDescription: authErr.Description,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(authErr.Status)
	if err := authorizationErrorTmpl.Execute(w, authErr); err != nil {
		h.logger.Error("Failed to render error page", "error", err)
	}
}

// writeError writes a JSON OAuth error response
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// recordHTTPMetrics records request count and duration for an endpoint
func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	if h.metrics == nil {
		return
	}
	durationMs := float64(time.Since(startTime).Milliseconds())
	h.metrics.RecordHTTPRequest(context.Background(), method, endpoint, status, durationMs)
}
