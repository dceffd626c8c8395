package auth

import (
	"context"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
)

// WithAuthContext stores the resolved AuthContext in ctx.
func WithAuthContext(ctx context.Context, authCtx access.AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// GetAuthContext returns the AuthContext set by the middleware, or the
// anonymous context when none was set.
func GetAuthContext(ctx context.Context) access.AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(access.AuthContext); ok {
		return authCtx
	}
	return access.Anonymous
}

// GetUserIDFromContext returns the authenticated user ID or "".
func GetUserIDFromContext(ctx context.Context) string {
	return GetAuthContext(ctx).UserID
}
