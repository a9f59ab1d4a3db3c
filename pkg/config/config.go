package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Site      SiteConfig
	Stripe    StripeConfig
	Acquiring AcquiringConfig
	Retention RetentionConfig
	Cron      CronConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Site.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Acquiring.validate(cfg.App.IsProd()); err != nil {
		return nil, err
	}
	if cfg.Retention.Days <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvRetention)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RESTAURANT_APP_ENV" required:"true"`
	Port         string `envconfig:"RESTAURANT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RESTAURANT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"RESTAURANT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"RESTAURANT_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"RESTAURANT_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RESTAURANT_DB_DSN"`
	Driver string `envconfig:"RESTAURANT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESTAURANT_DB_HOST"`
	LegacyPort     int    `envconfig:"RESTAURANT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESTAURANT_DB_USER"`
	LegacyPassword string `envconfig:"RESTAURANT_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESTAURANT_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESTAURANT_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"RESTAURANT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"RESTAURANT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"RESTAURANT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESTAURANT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// TxRetries is how often a transaction hit by a serialization failure or
	// deadlock is replayed.
	TxRetries          int           `envconfig:"RESTAURANT_DB_TX_RETRIES" default:"2"`
	SlowQueryThreshold time.Duration `envconfig:"RESTAURANT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESTAURANT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"RESTAURANT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESTAURANT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESTAURANT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESTAURANT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"RESTAURANT_REDIS_WRITE_TIMEOUT" default:"3s"`
	KeyPrefix    string        `envconfig:"RESTAURANT_REDIS_KEY_PREFIX" default:"rb"`
}

// SiteConfig holds the public storefront URL used to build gateway return links.
type SiteConfig struct {
	BaseURL string `envconfig:"RESTAURANT_SITE_BASE_URL" required:"true"`
}

// ReturnURL is where the acquiring gateway sends the browser after a payment attempt.
func (s SiteConfig) ReturnURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/payment/redirect/return"
}

// FailURL is where the acquiring gateway sends the browser after an aborted payment.
func (s SiteConfig) FailURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/payment/redirect/fail"
}

func (s SiteConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvSiteURL)
	}
	return nil
}

type StripeConfig struct {
	SecretKey string `envconfig:"RESTAURANT_STRIPE_SECRET_KEY" required:"true"`
	Env       string `envconfig:"RESTAURANT_STRIPE_ENV" default:"test"`
	Currency  string `envconfig:"RESTAURANT_STRIPE_CURRENCY" default:"eur"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// AcquiringConfig configures the redirect-based card acquiring gateway.
type AcquiringConfig struct {
	Username string        `envconfig:"RESTAURANT_ACQUIRING_USERNAME" required:"true"`
	Password string        `envconfig:"RESTAURANT_ACQUIRING_PASSWORD" required:"true"`
	BaseURL  string        `envconfig:"RESTAURANT_ACQUIRING_BASE_URL" required:"true"`
	Timeout  time.Duration `envconfig:"RESTAURANT_ACQUIRING_TIMEOUT" default:"15s"`
	Language string        `envconfig:"RESTAURANT_ACQUIRING_LANGUAGE" default:"en"`
}

func (a AcquiringConfig) validate(prod bool) error {
	u, err := url.Parse(strings.TrimSpace(a.BaseURL))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvAcqBaseURL)
	}
	if prod && u.Scheme != "https" {
		return fmt.Errorf("%s must use https in production", EnvAcqBaseURL)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvAcqTimeout)
	}
	return nil
}

// RetentionConfig controls the order purge policy.
type RetentionConfig struct {
	Days        int  `envconfig:"RESTAURANT_RETENTION_DAYS" default:"30"`
	CronEnabled bool `envconfig:"RESTAURANT_RETENTION_CRON_ENABLED" default:"false"`
}

type CronConfig struct {
	Interval      time.Duration `envconfig:"RESTAURANT_CRON_INTERVAL" default:"10m"`
	PendingMinAge time.Duration `envconfig:"RESTAURANT_CRON_PENDING_MIN_AGE" default:"15m"`
	PendingMaxAge time.Duration `envconfig:"RESTAURANT_CRON_PENDING_MAX_AGE" default:"48h"`
	PendingBatch  int           `envconfig:"RESTAURANT_CRON_PENDING_BATCH" default:"50"`
	LockTTL       time.Duration `envconfig:"RESTAURANT_CRON_LOCK_TTL" default:"30m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"RESTAURANT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
