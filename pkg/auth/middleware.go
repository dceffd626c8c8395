package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
type Middleware struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given Resolver.
func NewMiddleware(resolver *Resolver, logger *zap.Logger) *Middleware {
	return &Middleware{
		resolver: resolver,
		logger:   logger,
	}
}

// Authenticate resolves the caller and stores the AuthContext in the
// request context. It never rejects; enforcement happens downstream.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(m.withAuth(r)))
	}
}

// RequireOwner rejects requests that are not from the authenticated
// project owner. Use for the authoring API under /api.
func (m *Middleware) RequireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := m.withAuth(r)
		authCtx := GetAuthContext(ctx)

		if !authCtx.IsAuthenticated() {
			m.writeError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		if !authCtx.IsProjectOwner {
			m.logger.Warn("Non-owner attempted to access authoring API",
				zap.String("user_id", authCtx.UserID),
				zap.String("path", r.URL.Path))
			m.writeError(w, http.StatusForbidden, "forbidden", "Project owner authorization required")
			return
		}

		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) withAuth(r *http.Request) context.Context {
	authCtx, claims := m.resolver.Resolve(r)
	ctx := WithAuthContext(r.Context(), authCtx)
	if claims != nil {
		ctx = context.WithValue(ctx, ClaimsKey, claims)
	}
	return ctx
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write response", zap.Error(err))
	}
}
