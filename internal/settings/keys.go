package settings

const (
	KeyDefaultRole                    = "DEFAULT_ROLE"
	KeyEmailDomains                   = "EMAIL_DOMAINS"
	KeyAdminContact                   = "ADMIN_CONTACT"
	KeyMaxEmails                      = "MAX_EMAILS"
	KeyCardKeyDefaultDays             = "CARD_KEY_DEFAULT_DAYS"
	KeyRegistrationEnabled            = "REGISTRATION_ENABLED"
	KeyCleanupExpiredTempAccounts     = "CLEANUP_EXPIRED_TEMP_ACCOUNTS"
	KeyCleanupDeleteUsedExpiredKeys   = "CLEANUP_DELETE_USED_EXPIRED_CARD_KEYS"
	KeyCleanupDeleteUnusedExpiredKeys = "CLEANUP_DELETE_UNUSED_EXPIRED_CARD_KEYS"
	KeyCleanupDeleteExpiredEmails     = "CLEANUP_DELETE_EXPIRED_EMAILS"
)

// defaults apply whenever a key has no stored value.
var defaults = map[string]string{
	KeyDefaultRole:                    "civilian",
	KeyEmailDomains:                   "xymail.app",
	KeyAdminContact:                   "",
	KeyMaxEmails:                      "20",
	KeyCardKeyDefaultDays:             "7",
	KeyRegistrationEnabled:            "true",
	KeyCleanupExpiredTempAccounts:     "true",
	KeyCleanupDeleteUsedExpiredKeys:   "true",
	KeyCleanupDeleteUnusedExpiredKeys: "true",
	KeyCleanupDeleteExpiredEmails:     "true",
}

// AllKeys lists every known key in snapshot order.
var AllKeys = []string{
	KeyDefaultRole,
	KeyEmailDomains,
	KeyAdminContact,
	KeyMaxEmails,
	KeyCardKeyDefaultDays,
	KeyRegistrationEnabled,
	KeyCleanupExpiredTempAccounts,
	KeyCleanupDeleteUsedExpiredKeys,
	KeyCleanupDeleteUnusedExpiredKeys,
	KeyCleanupDeleteExpiredEmails,
}

// Default returns the built-in value for key.
func Default(key string) string {
	return defaults[key]
}
