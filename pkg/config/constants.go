package config

const EnvPrefix = "XYMAIL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "XYMAIL_APP_ENV"
	EnvPort         = "XYMAIL_APP_PORT"
	EnvLogLevel     = "XYMAIL_LOG_LEVEL"
	EnvLogWarnStack = "XYMAIL_LOG_WARN_STACK"

	EnvDBDSN    = "XYMAIL_DB_DSN"
	EnvDBDriver = "XYMAIL_DB_DRIVER"
	EnvDBHost   = "XYMAIL_DB_HOST"
	EnvDBPort   = "XYMAIL_DB_PORT"
	EnvDBUser   = "XYMAIL_DB_USER"
	EnvDBName   = "XYMAIL_DB_NAME"

	EnvRedisURL = "XYMAIL_REDIS_URL"

	EnvJWTSecret              = "XYMAIL_JWT_SECRET"
	EnvJWTIssuer              = "XYMAIL_JWT_ISSUER"
	EnvJWTExpMins             = "XYMAIL_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "XYMAIL_REFRESH_TOKEN_TTL_MINUTES"

	EnvUseSQLite   = "XYMAIL_USE_SQLITE"
	EnvAutoMigrate = "XYMAIL_AUTO_MIGRATE"

	EnvCronInterval  = "XYMAIL_CRON_INTERVAL"
	EnvInboundSecret = "XYMAIL_INBOUND_SECRET"
	EnvCORSOrigins   = "XYMAIL_CORS_ALLOWED_ORIGINS"
)

// legacyDBEnvVars must all be set when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
