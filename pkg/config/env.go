package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "TIENDAS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "TIENDAS_APP_ENV"
	EnvPort                   = "TIENDAS_APP_PORT"
	EnvDBDSN                  = "TIENDAS_DB_DSN"
	EnvDBHost                 = "TIENDAS_DB_HOST"
	EnvDBUser                 = "TIENDAS_DB_USER"
	EnvDBPassword             = "TIENDAS_DB_PASSWORD"
	EnvDBName                 = "TIENDAS_DB_NAME"
	EnvRedisURL               = "TIENDAS_REDIS_URL"
	EnvJWTSecret              = "TIENDAS_JWT_SECRET"
	EnvJWTIssuer              = "TIENDAS_JWT_ISSUER"
	EnvJWTExpMins             = "TIENDAS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TIENDAS_REFRESH_TOKEN_TTL_MINUTES"
	EnvFrontendURL            = "TIENDAS_FRONTEND_URL"
	EnvCheckoutCurrency       = "TIENDAS_CHECKOUT_CURRENCY"
	EnvCheckoutRetryDelay     = "TIENDAS_CHECKOUT_CONFIRM_RETRY_DELAY"
	EnvStripeAPIKey           = "TIENDAS_STRIPE_API_KEY"
	EnvStripeSecret           = "TIENDAS_STRIPE_SECRET"
	EnvGCPProjectID           = "TIENDAS_GCP_PROJECT_ID"
	EnvPubSubSalesTopic       = "TIENDAS_PUBSUB_SALES_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
