// Package access decides whether a caller may invoke an endpoint or function.
package access

import (
	"fmt"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// AuthContext is the caller identity for one request. UserID is empty for
// anonymous callers.
type AuthContext struct {
	UserID         string
	Roles          []string
	IsProjectOwner bool
}

// Anonymous is the context used when no valid credential was presented.
var Anonymous = AuthContext{}

// IsAuthenticated reports whether the caller presented a verified identity.
func (a AuthContext) IsAuthenticated() bool {
	return a.UserID != ""
}

// HasRole reports whether the caller holds the named role.
func (a AuthContext) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DenyReason says why an invocation was refused.
type DenyReason string

const (
	ReasonNotFound        DenyReason = "not_found"
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonForbidden       DenyReason = "forbidden"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

var allowed = Decision{Allowed: true}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the matching apperrors sentinel. It returns nil
// for an allowed decision.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotFound:
		return apperrors.ErrNotFound
	case ReasonUnauthenticated:
		return apperrors.ErrUnauthenticated
	case ReasonForbidden:
		return apperrors.ErrForbidden
	default:
		return fmt.Errorf("access denied (%s): %w", d.Reason, apperrors.ErrForbidden)
	}
}

// Authorize applies the rules in order:
//  1. inactive targets look like they do not exist
//  2. unprotected targets are open to everyone
//  3. protected targets need an authenticated caller, owner included
//  4. the owner and, when no roles are listed, any authenticated caller pass
//  5. otherwise the caller needs at least one of the allowed roles
func Authorize(policy models.AccessPolicy, auth AuthContext) Decision {
	if !policy.IsActive {
		return deny(ReasonNotFound)
	}
	if !policy.IsProtected {
		return allowed
	}
	if !auth.IsAuthenticated() {
		return deny(ReasonUnauthenticated)
	}
	if auth.IsProjectOwner || len(policy.AllowedRoles) == 0 {
		return allowed
	}
	if hasRoleIntersection(auth.Roles, policy.AllowedRoles) {
		return allowed
	}
	return deny(ReasonForbidden)
}

func hasRoleIntersection(userRoles, allowedRoles []string) bool {
	for _, ur := range userRoles {
		for _, ar := range allowedRoles {
			if ur == ar {
				return true
			}
		}
	}
	return false
}
