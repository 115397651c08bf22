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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
	Metrics       MetricsConfig
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
	Env          string   `envconfig:"TIENDAS_APP_ENV" required:"true"`
	Port         string   `envconfig:"TIENDAS_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TIENDAS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TIENDAS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TIENDAS_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TIENDAS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TIENDAS_DB_DSN"`
	Driver string `envconfig:"TIENDAS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIENDAS_DB_HOST"`
	LegacyPort     int    `envconfig:"TIENDAS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIENDAS_DB_USER"`
	LegacyPassword string `envconfig:"TIENDAS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIENDAS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIENDAS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIENDAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIENDAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIENDAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIENDAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	LockTimeout   time.Duration `envconfig:"TIENDAS_DB_LOCK_TIMEOUT" default:"5s"`
	SlowThreshold time.Duration `envconfig:"TIENDAS_DB_SLOW_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIENDAS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIENDAS_REDIS_ADDR"`
	Password     string        `envconfig:"TIENDAS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIENDAS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIENDAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIENDAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIENDAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIENDAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIENDAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TIENDAS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TIENDAS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TIENDAS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TIENDAS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TIENDAS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TIENDAS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TIENDAS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TIENDAS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TIENDAS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TIENDAS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TIENDAS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TIENDAS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TIENDAS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"10m"`
	RegisterEmailLimit int           `envconfig:"TIENDAS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TIENDAS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TIENDAS_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig drives the storefront checkout and settlement flow.
type CheckoutConfig struct {
	FrontendURL          string        `envconfig:"TIENDAS_FRONTEND_URL" default:"http://localhost:5173"`
	Currency             string        `envconfig:"TIENDAS_CHECKOUT_CURRENCY" default:"bob"`
	ConfirmRetryDelay    time.Duration `envconfig:"TIENDAS_CHECKOUT_CONFIRM_RETRY_DELAY" default:"2s"`
	ShippingSchedule     string        `envconfig:"TIENDAS_CHECKOUT_SHIPPING_SCHEDULE"`
	WebhookIdempotentTTL time.Duration `envconfig:"TIENDAS_CHECKOUT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TIENDAS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SalesTopic   string `envconfig:"TIENDAS_PUBSUB_SALES_TOPIC" default:"tiendas-sales-events"`
	CatalogTopic string `envconfig:"TIENDAS_PUBSUB_CATALOG_TOPIC" default:"tiendas-catalog-events"`
}

type OutboxConfig struct {
	BatchSize       int           `envconfig:"TIENDAS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS  int           `envconfig:"TIENDAS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts     int           `envconfig:"TIENDAS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout  time.Duration `envconfig:"TIENDAS_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	OrderingEnabled bool          `envconfig:"TIENDAS_OUTBOX_ORDERING_ENABLED" default:"true"`
}

type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"TIENDAS_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"TIENDAS_MAINTENANCE_LOCK_TTL" default:"55m"`
	OutboxRetentionDays int           `envconfig:"TIENDAS_MAINTENANCE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"TIENDAS_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"TIENDAS_METRICS_PATH" default:"/metrics"`
}

type StripeConfig struct {
	APIKey string `envconfig:"TIENDAS_STRIPE_API_KEY"`
	Secret string `envconfig:"TIENDAS_STRIPE_SECRET"`
	Env    string `envconfig:"TIENDAS_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
