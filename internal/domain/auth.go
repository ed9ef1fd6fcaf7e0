package domain

import "context"

// AuthRole represents a gateway client's authorization role.
type AuthRole string

const (
	AuthRoleEditor AuthRole = "editor"
	AuthRoleViewer AuthRole = "viewer"
)

// AllAuthRoles lists every valid authorization role for validation purposes.
var AllAuthRoles = []AuthRole{AuthRoleEditor, AuthRoleViewer}

// Permission represents a granular action that can be authorized.
type Permission string

const (
	PermLedgerRead   Permission = "ledger:read"
	PermLedgerWrite  Permission = "ledger:write"
	PermLedgerDelete Permission = "ledger:delete"
	PermDesktop      Permission = "desktop:open"
	PermStatusView   Permission = "status:view"
)

// RolePermissions maps each role to its granted permissions.
var RolePermissions = map[AuthRole][]Permission{
	AuthRoleEditor: {
		PermLedgerRead, PermLedgerWrite, PermLedgerDelete,
		PermDesktop, PermStatusView,
	},
	AuthRoleViewer: {
		PermLedgerRead, PermStatusView,
	},
}

// Authorizer checks whether the caller has a specific permission.
type Authorizer interface {
	Authorize(ctx context.Context, roles []AuthRole, perm Permission) error
}

type ctxKey string

const rolesCtxKey ctxKey = "roles"

// ContextWithRoles returns a new context carrying the given roles.
func ContextWithRoles(ctx context.Context, roles []AuthRole) context.Context {
	return context.WithValue(ctx, rolesCtxKey, roles)
}

// RolesFromContext extracts roles from the context. Returns nil if not set.
func RolesFromContext(ctx context.Context) []AuthRole {
	if v, ok := ctx.Value(rolesCtxKey).([]AuthRole); ok {
		return v
	}
	return nil
}

// IsValidAuthRole returns true if s names a known role.
func IsValidAuthRole(s string) bool {
	for _, r := range AllAuthRoles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// StringsToAuthRoles converts a string slice to roles, skipping unknown values.
func StringsToAuthRoles(ss []string) []AuthRole {
	roles := make([]AuthRole, 0, len(ss))
	for _, s := range ss {
		if IsValidAuthRole(s) {
			roles = append(roles, AuthRole(s))
		}
	}
	return roles
}
