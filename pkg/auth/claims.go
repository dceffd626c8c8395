// Package auth turns bearer credentials into the per-request AuthContext
// used by the access enforcer. Tokens are JWTs validated against JWKS
// endpoints, or parsed without verification in local development.
package auth

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// AuthContextKey is the context key for the resolved AuthContext.
	AuthContextKey contextKey = "auth_context"
)

// Claims represents the JWT claims accepted by the runtime.
// Roles are project role names granted by the issuer; they are merged with
// memberships stored in the engine database.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasAudience reports whether aud is one of the token audiences.
func (c *Claims) HasAudience(aud string) bool {
	return slices.Contains(c.Audience, aud)
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}
