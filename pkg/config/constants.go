package config

const EnvPrefix = "BELIEVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BELIEVE_APP_ENV"
	EnvPort     = "BELIEVE_APP_PORT"
	EnvLogLevel = "BELIEVE_LOG_LEVEL"

	EnvDBDSN      = "BELIEVE_DB_DSN"
	EnvDBDriver   = "BELIEVE_DB_DRIVER"
	EnvDBHost     = "BELIEVE_DB_HOST"
	EnvDBUser     = "BELIEVE_DB_USER"
	EnvDBName     = "BELIEVE_DB_NAME"
	EnvDBPassword = "BELIEVE_DB_PASSWORD"

	EnvRedisURL = "BELIEVE_REDIS_URL"

	EnvJWTSecret  = "BELIEVE_JWT_SECRET"
	EnvJWTIssuer  = "BELIEVE_JWT_ISSUER"
	EnvJWTExpMins = "BELIEVE_JWT_EXPIRATION_MINUTES"

	EnvFeesPlatformRate = "BELIEVE_FEES_PLATFORM_RATE"
	EnvFeesSalesTaxRate = "BELIEVE_FEES_SALES_TAX_RATE"

	EnvGCPProjectID = "BELIEVE_GCP_PROJECT_ID"

	EnvPubSubDomainTopic    = "BELIEVE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubAnalyticsSub   = "BELIEVE_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvNotificationChannels = "BELIEVE_NOTIFICATION_CHANNELS"
)

// DriverSQLite selects the embedded SQLite dialector for local development.
const DriverSQLite = "sqlite"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
