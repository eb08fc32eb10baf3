package service

import (
	"github.com/noah-isme/assignment-portal-api/internal/models"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
)

// AccessPolicy gates mutations by role and ownership. Its checks are
// pure predicates over the authenticated claims; callers combine them
// before touching the repository. Unauthenticated requests never reach
// this layer, the JWT middleware rejects them at the boundary.
type AccessPolicy struct{}

// NewAccessPolicy constructs the policy.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// RequireRole allows the actor only when its role is in the allowed set.
func (p *AccessPolicy) RequireRole(claims *models.JWTClaims, roles ...models.UserRole) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	for _, role := range roles {
		if claims.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
}

// RequireOwner allows the actor only when it owns the target resource.
func (p *AccessPolicy) RequireOwner(claims *models.JWTClaims, ownerID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.UserID != ownerID {
		return appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return nil
}
