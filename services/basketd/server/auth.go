package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"basketvault/core/types"
	"basketvault/crypto"
)

// ScopeAdmin grants access to the /admin routes.
const ScopeAdmin = "admin"

type contextKey string

const contextKeyIdentity contextKey = "basketd.identity"

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Claims are the bearer token claims. The subject is the caller address in
// bech32 or hex form; Scope is a space separated list.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Caller types.Address
	Scopes []string
}

// HasScope reports whether the identity was granted scope.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	cfg AuthConfig
}

// NewAuthenticator validates cfg and returns an authenticator.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: secret required")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg}, nil
}

// Verify parses a bearer token and resolves the caller identity.
func (a *Authenticator) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.cfg.Secret, nil
	}, opts...); err != nil {
		return Identity{}, err
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("subject: %w", err)
	}
	if caller.IsZero() {
		return Identity{}, errors.New("subject: zero address")
	}
	return Identity{Caller: caller, Scopes: strings.Fields(claims.Scope)}, nil
}

// Middleware rejects requests without a valid bearer token, or without every
// required scope, and stores the identity in the request context.
func (a *Authenticator) Middleware(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeProblem(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}
			id, err := a.Verify(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "invalid token", "")
				return
			}
			for _, scope := range requiredScopes {
				if !id.HasScope(scope) {
					writeProblem(w, http.StatusForbidden, "insufficient scope", "")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyIdentity, id)))
		})
	}
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok
}

func extractBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
