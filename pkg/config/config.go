package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App              AppConfig
	Service          ServiceConfig
	DB               DBConfig
	Redis            RedisConfig
	JWT              JWTConfig
	OpenAI           OpenAIConfig
	Usage            UsageConfig
	SessionRateLimit SessionRateLimitConfig
	FeatureFlags     FeatureFlagsConfig
	CORS             CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGENTOS_APP_ENV" required:"true"`
	Port         string `envconfig:"AGENTOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGENTOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGENTOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AGENTOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGENTOS_DB_DSN"`
	Driver string `envconfig:"AGENTOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGENTOS_DB_HOST"`
	LegacyPort     int    `envconfig:"AGENTOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGENTOS_DB_USER"`
	LegacyPassword string `envconfig:"AGENTOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGENTOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGENTOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGENTOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGENTOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGENTOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGENTOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGENTOS_REDIS_URL" required:"true"`
	Password     string        `envconfig:"AGENTOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGENTOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGENTOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGENTOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGENTOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGENTOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGENTOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGENTOS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGENTOS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGENTOS_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenTTL returns the admin token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type OpenAIConfig struct {
	APIKey         string        `envconfig:"AGENTOS_OPENAI_API_KEY"`
	BaseURL        string        `envconfig:"AGENTOS_OPENAI_BASE_URL" default:"https://api.openai.com"`
	RequestTimeout time.Duration `envconfig:"AGENTOS_OPENAI_REQUEST_TIMEOUT" default:"25s"`
	FallbackModel  string        `envconfig:"AGENTOS_OPENAI_FALLBACK_MODEL" default:"gpt-4o-realtime-preview"`
	FallbackVoice  string        `envconfig:"AGENTOS_OPENAI_FALLBACK_VOICE" default:"alloy"`
}

type UsageConfig struct {
	// PendingRetentionHours bounds how long an abandoned pending row keeps
	// counting toward the sessions quota before the sweep deletes it.
	PendingRetentionHours int `envconfig:"AGENTOS_USAGE_PENDING_RETENTION_HOURS" default:"72"`
	// LedgerRetentionHours prunes completed rows; 0 keeps them forever.
	LedgerRetentionHours int           `envconfig:"AGENTOS_USAGE_LEDGER_RETENTION_HOURS" default:"0"`
	CronInterval         time.Duration `envconfig:"AGENTOS_USAGE_CRON_INTERVAL" default:"1h"`
}

type SessionRateLimitConfig struct {
	Window       time.Duration `envconfig:"AGENTOS_SESSION_RATE_LIMIT_WINDOW" default:"1m"`
	UserKeyLimit int           `envconfig:"AGENTOS_SESSION_RATE_LIMIT_USER_LIMIT" default:"10"`
	IPLimit      int           `envconfig:"AGENTOS_SESSION_RATE_LIMIT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGENTOS_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"AGENTOS_CORS_ALLOWED_ORIGINS" default:"*"`
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
