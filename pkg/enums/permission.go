package enums

// Permission names a privileged action.
type Permission string

const (
	PermissionManageEmail    Permission = "manage_email"
	PermissionManageWebhook  Permission = "manage_webhook"
	PermissionPromoteUser    Permission = "promote_user"
	PermissionManageConfig   Permission = "manage_config"
	PermissionManageAPIKey   Permission = "manage_api_key"
	PermissionManageCardKeys Permission = "manage_card_keys"
	PermissionViewTempEmail  Permission = "view_temp_email"
)

// AllPermissions lists every permission in a stable order.
var AllPermissions = []Permission{
	PermissionManageEmail,
	PermissionManageWebhook,
	PermissionPromoteUser,
	PermissionManageConfig,
	PermissionManageAPIKey,
	PermissionManageCardKeys,
	PermissionViewTempEmail,
}

// IsValid reports whether the value is a known Permission.
func (p Permission) IsValid() bool {
	for _, candidate := range AllPermissions {
		if candidate == p {
			return true
		}
	}
	return false
}
