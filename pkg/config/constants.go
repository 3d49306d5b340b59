package config

const (
	// EnvPrefix is intentionally empty: every field names its variable
	// in full via the envconfig tag.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "AGENTOS_APP_ENV"
	EnvPort       = "AGENTOS_APP_PORT"
	EnvDBDSN      = "AGENTOS_DB_DSN"
	EnvDBHost     = "AGENTOS_DB_HOST"
	EnvDBUser     = "AGENTOS_DB_USER"
	EnvDBName     = "AGENTOS_DB_NAME"
	EnvRedisURL   = "AGENTOS_REDIS_URL"
	EnvJWTSecret  = "AGENTOS_JWT_SECRET"
	EnvJWTIssuer  = "AGENTOS_JWT_ISSUER"
	EnvJWTExpMins = "AGENTOS_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
