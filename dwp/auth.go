package dwp

import (
	"context"
	"errors"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the authenticated user or service ID.
	Subject string `json:"subject"`

	// Scopes defines what operations are permitted, e.g. "job:write" or "*".
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope returns true if the identity has the given scope.
// A wildcard "*" scope grants all permissions.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// Authenticator validates credentials and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrUnauthorized indicates authentication failure.
var ErrUnauthorized = errors.New("dwp: unauthorized")

// ── API Key authenticator ───────────────────────────

// APIKeyEntry maps a token to an identity.
type APIKeyEntry struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator validates API keys against a static list.
type APIKeyAuthenticator struct {
	keys map[string]*Identity
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(entries ...APIKeyEntry) *APIKeyAuthenticator {
	keys := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		ident := e.Identity
		keys[e.Token] = &ident
	}
	return &APIKeyAuthenticator{keys: keys}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	ident, ok := a.keys[token]
	if !ok || token == "" {
		return nil, ErrUnauthorized
	}
	return ident, nil
}

// ── No-op authenticator ─────────────────────────────

// NoopAuthenticator accepts all tokens with a wildcard identity.
// Use for development only.
type NoopAuthenticator struct{}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{
		Subject: "anonymous",
		Scopes:  []string{ScopeAll},
	}, nil
}

// ── Scopes ──────────────────────────────────────────

const (
	ScopeJobRead   = "job:read"
	ScopeJobWrite  = "job:write"
	ScopeQueueRead = "queue:read"
	ScopeAll       = "*"
)

// RequiredScope returns the scope required for a method. Unknown methods
// require the wildcard scope.
func RequiredScope(method string) string {
	switch method {
	case MethodAuth:
		return ""
	case MethodJobEnqueue:
		return ScopeJobWrite
	case MethodJobGet, MethodJobHistory:
		return ScopeJobRead
	case MethodQueueCount:
		return ScopeQueueRead
	default:
		return ScopeAll
	}
}
