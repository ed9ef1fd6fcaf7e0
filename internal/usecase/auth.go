package usecase

import (
	"context"

	"ironbank/internal/domain"
)

// RBACAuthorizer implements domain.Authorizer using the static role-permission map.
type RBACAuthorizer struct{}

// Authorize succeeds if any of roles grants perm, and returns domain.ErrForbidden otherwise.
func (a *RBACAuthorizer) Authorize(_ context.Context, roles []domain.AuthRole, perm domain.Permission) error {
	for _, role := range roles {
		for _, p := range domain.RolePermissions[role] {
			if p == perm {
				return nil
			}
		}
	}
	return domain.ErrForbidden
}
