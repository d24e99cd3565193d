// Package rbac maps roles onto the permissions they grant.
package rbac

import "github.com/xymail/xymail-backend/pkg/enums"

// grants is enumerated per role; there is no inheritance between roles.
var grants = map[enums.Role][]enums.Permission{
	enums.RoleEmperor: {
		enums.PermissionManageEmail,
		enums.PermissionManageWebhook,
		enums.PermissionPromoteUser,
		enums.PermissionManageConfig,
		enums.PermissionManageAPIKey,
		enums.PermissionManageCardKeys,
		enums.PermissionViewTempEmail,
	},
	enums.RoleDuke: {
		enums.PermissionManageEmail,
		enums.PermissionManageWebhook,
		enums.PermissionManageAPIKey,
	},
	enums.RoleKnight: {
		enums.PermissionManageEmail,
		enums.PermissionManageWebhook,
	},
	enums.RoleCivilian: {},
	enums.RoleTempUser: {
		enums.PermissionViewTempEmail,
	},
}

// PermissionsFor returns a copy of the permissions granted to role.
func PermissionsFor(role enums.Role) []enums.Permission {
	granted := grants[role]
	out := make([]enums.Permission, len(granted))
	copy(out, granted)
	return out
}

// HasPermission reports whether any of the held roles grants permission.
func HasPermission(roles []enums.Role, permission enums.Permission) bool {
	for _, role := range roles {
		for _, granted := range grants[role] {
			if granted == permission {
				return true
			}
		}
	}
	return false
}
