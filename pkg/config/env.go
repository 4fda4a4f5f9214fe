package config

const (
	EnvPrefix = "quotedesk"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv    = "QUOTEDESK_APP_ENV"
	EnvPort      = "QUOTEDESK_APP_PORT"
	EnvDBDSN     = "QUOTEDESK_DB_DSN"
	EnvDBDriver  = "QUOTEDESK_DB_DRIVER"
	EnvDBHost    = "QUOTEDESK_DB_HOST"
	EnvDBUser    = "QUOTEDESK_DB_USER"
	EnvDBName    = "QUOTEDESK_DB_NAME"
	EnvRedisURL  = "QUOTEDESK_REDIS_URL"
	EnvJWTSecret = "QUOTEDESK_JWT_SECRET"
	EnvJWTIssuer = "QUOTEDESK_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
