package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Reviews      ReviewsConfig
	Events       EventsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"QUOTEDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"QUOTEDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QUOTEDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QUOTEDESK_LOG_WARN_STACK" default:"false"`
	// LogFormat is "json" or "console".
	LogFormat string `envconfig:"QUOTEDESK_LOG_FORMAT" default:"json"`
	// CORSOrigins lists the SPA origins allowed to call the API.
	CORSOrigins []string `envconfig:"QUOTEDESK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

type DBConfig struct {
	DSN    string `envconfig:"QUOTEDESK_DB_DSN"`
	Driver string `envconfig:"QUOTEDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QUOTEDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"QUOTEDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUOTEDESK_DB_USER"`
	LegacyPassword string `envconfig:"QUOTEDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUOTEDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUOTEDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUOTEDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QUOTEDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QUOTEDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUOTEDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; 0 disables it.
	SlowQuery time.Duration `envconfig:"QUOTEDESK_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the sqlite driver was requested (local dev only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"QUOTEDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"QUOTEDESK_REDIS_ADDR"`
	Password     string        `envconfig:"QUOTEDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUOTEDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUOTEDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUOTEDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUOTEDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUOTEDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUOTEDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"QUOTEDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"QUOTEDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"QUOTEDESK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles the authenticated API; zero limits disable a dimension.
type RateLimitConfig struct {
	Window    time.Duration `envconfig:"QUOTEDESK_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit   int           `envconfig:"QUOTEDESK_RATE_LIMIT_IP" default:"600"`
	UserLimit int           `envconfig:"QUOTEDESK_RATE_LIMIT_USER" default:"300"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QUOTEDESK_AUTO_MIGRATE" default:"false"`
	// RequireItemVersion rejects bulk item saves that do not carry an expected version.
	RequireItemVersion bool `envconfig:"QUOTEDESK_REQUIRE_ITEM_VERSION" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"QUOTEDESK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"QUOTEDESK_PUBSUB_DOMAIN_TOPIC" default:"qd-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"QUOTEDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"QUOTEDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"QUOTEDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"QUOTEDESK_OUTBOX_RETENTION" default:"720h"`
}

type ReviewsConfig struct {
	Workers   int           `envconfig:"QUOTEDESK_REVIEWS_WORKERS" default:"4"`
	QueueSize int           `envconfig:"QUOTEDESK_REVIEWS_QUEUE_SIZE" default:"64"`
	Timeout   time.Duration `envconfig:"QUOTEDESK_REVIEWS_TIMEOUT" default:"60s"`

	// RateLimit caps review starts per quote per RateWindow; 0 disables it.
	RateLimit  int64         `envconfig:"QUOTEDESK_REVIEWS_RATE_LIMIT" default:"6"`
	RateWindow time.Duration `envconfig:"QUOTEDESK_REVIEWS_RATE_WINDOW" default:"1m"`
	// StaleAfter is how long a job may stay open before the reaper fails it.
	StaleAfter time.Duration `envconfig:"QUOTEDESK_REVIEWS_STALE_AFTER" default:"10m"`
}

type EventsConfig struct {
	RedisChannel     string        `envconfig:"QUOTEDESK_EVENTS_REDIS_CHANNEL" default:"qd:events"`
	SubscriberBuffer int           `envconfig:"QUOTEDESK_EVENTS_SUBSCRIBER_BUFFER" default:"32"`
	PingInterval     time.Duration `envconfig:"QUOTEDESK_EVENTS_PING_INTERVAL" default:"30s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"QUOTEDESK_CRON_INTERVAL" default:"5m"`
	LockKey  string        `envconfig:"QUOTEDESK_CRON_LOCK_KEY" default:"qd:cron:lock"`
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
