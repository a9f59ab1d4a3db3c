package config

const (
	EnvPrefix = "RESTAURANT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "RESTAURANT_APP_ENV"
	EnvPort       = "RESTAURANT_APP_PORT"
	EnvLogLevel   = "RESTAURANT_LOG_LEVEL"
	EnvLogFormat  = "RESTAURANT_LOG_FORMAT"
	EnvDBDSN      = "RESTAURANT_DB_DSN"
	EnvDBDriver   = "RESTAURANT_DB_DRIVER"
	EnvDBHost     = "RESTAURANT_DB_HOST"
	EnvDBUser     = "RESTAURANT_DB_USER"
	EnvDBName     = "RESTAURANT_DB_NAME"
	EnvRedisURL   = "RESTAURANT_REDIS_URL"
	EnvSiteURL    = "RESTAURANT_SITE_BASE_URL"
	EnvStripeKey  = "RESTAURANT_STRIPE_SECRET_KEY"
	EnvStripeEnv  = "RESTAURANT_STRIPE_ENV"
	EnvAcqUser    = "RESTAURANT_ACQUIRING_USERNAME"
	EnvAcqPass    = "RESTAURANT_ACQUIRING_PASSWORD"
	EnvAcqBaseURL = "RESTAURANT_ACQUIRING_BASE_URL"
	EnvAcqTimeout = "RESTAURANT_ACQUIRING_TIMEOUT"
	EnvRetention  = "RESTAURANT_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
