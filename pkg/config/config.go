package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cron          CronConfig
	Inbound       InboundConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"XYMAIL_APP_ENV" required:"true"`
	Port         string `envconfig:"XYMAIL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"XYMAIL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"XYMAIL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"XYMAIL_DB_DSN"`
	Driver     string `envconfig:"XYMAIL_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"XYMAIL_DB_SQLITE_PATH" default:"xymail.db"`

	LegacyHost     string `envconfig:"XYMAIL_DB_HOST"`
	LegacyPort     int    `envconfig:"XYMAIL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"XYMAIL_DB_USER"`
	LegacyPassword string `envconfig:"XYMAIL_DB_PASSWORD"`
	LegacyName     string `envconfig:"XYMAIL_DB_NAME"`
	LegacySSLMode  string `envconfig:"XYMAIL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"XYMAIL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"XYMAIL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"XYMAIL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"XYMAIL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"XYMAIL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"XYMAIL_REDIS_ADDR"`
	Password     string        `envconfig:"XYMAIL_REDIS_PASSWORD"`
	DB           int           `envconfig:"XYMAIL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"XYMAIL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"XYMAIL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"XYMAIL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"XYMAIL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"XYMAIL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"XYMAIL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"XYMAIL_JWT_ISSUER" default:"xymail"`
	ExpirationMinutes      int    `envconfig:"XYMAIL_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"XYMAIL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"XYMAIL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"XYMAIL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"XYMAIL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"XYMAIL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"XYMAIL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow           time.Duration `envconfig:"XYMAIL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit    int           `envconfig:"XYMAIL_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"XYMAIL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow        time.Duration `envconfig:"XYMAIL_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterUsernameLimit int           `envconfig:"XYMAIL_AUTH_RATE_LIMIT_REGISTER_USERNAME_LIMIT" default:"3"`
	RegisterIPLimit       int           `envconfig:"XYMAIL_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ActivationWindow      time.Duration `envconfig:"XYMAIL_AUTH_RATE_LIMIT_ACTIVATION_WINDOW" default:"5m"`
	ActivationIPLimit     int           `envconfig:"XYMAIL_AUTH_RATE_LIMIT_ACTIVATION_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"XYMAIL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"XYMAIL_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"XYMAIL_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"XYMAIL_CRON_LOCK_TTL" default:"10m"`
}

type InboundConfig struct {
	Secret       string `envconfig:"XYMAIL_INBOUND_SECRET"`
	MaxBodyBytes int64  `envconfig:"XYMAIL_INBOUND_MAX_BODY_BYTES" default:"10485760"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"XYMAIL_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
