package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
)

// RoleSource returns the roles a user holds within a project.
type RoleSource interface {
	RolesForUser(ctx context.Context, projectID uuid.UUID, userID string) ([]string, error)
}

// Resolver builds an AuthContext from a request. Requests without a valid
// credential resolve to the anonymous context rather than failing, so that
// unprotected endpoints stay reachable.
type Resolver struct {
	authService  AuthService
	roles        RoleSource
	projectID    uuid.UUID
	ownerSubject string
	logger       *zap.Logger
}

// NewResolver creates a Resolver. roles may be nil, in which case only roles
// carried in the token are used.
func NewResolver(authService AuthService, roles RoleSource, projectID uuid.UUID, ownerSubject string, logger *zap.Logger) *Resolver {
	return &Resolver{
		authService:  authService,
		roles:        roles,
		projectID:    projectID,
		ownerSubject: ownerSubject,
		logger:       logger,
	}
}

// Resolve returns the caller's AuthContext and the validated claims, if any.
func (r *Resolver) Resolve(req *http.Request) (access.AuthContext, *Claims) {
	claims, err := r.authService.ValidateRequest(req)
	if err != nil || claims == nil || claims.Subject == "" {
		return access.Anonymous, nil
	}

	authCtx := access.AuthContext{
		UserID:         claims.Subject,
		IsProjectOwner: r.ownerSubject != "" && claims.Subject == r.ownerSubject,
	}
	authCtx.Roles = r.mergeRoles(req.Context(), claims)
	return authCtx, claims
}

func (r *Resolver) mergeRoles(ctx context.Context, claims *Claims) []string {
	seen := make(map[string]struct{}, len(claims.Roles))
	roles := make([]string, 0, len(claims.Roles))
	add := func(names []string) {
		for _, name := range names {
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			roles = append(roles, name)
		}
	}

	add(claims.Roles)
	if r.roles == nil {
		return roles
	}

	stored, err := r.roles.RolesForUser(ctx, r.projectID, claims.Subject)
	if err != nil {
		// Missing memberships can only narrow access.
		r.logger.Warn("Failed to load role memberships",
			zap.String("user_id", claims.Subject),
			zap.Error(err))
		return roles
	}
	add(stored)
	return roles
}
