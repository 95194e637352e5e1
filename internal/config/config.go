// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "GROUPORDER"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Environment variable names referenced by validation errors and tests.
const (
	EnvStoreDriver  = "GROUPORDER_STORE_DRIVER"
	EnvPostgresDSN  = "GROUPORDER_POSTGRES_DSN"
	EnvRedisURL     = "GROUPORDER_REDIS_URL"
	EnvRedisAddr    = "GROUPORDER_REDIS_ADDR"
	EnvJWTSecret    = "GROUPORDER_JWT_SECRET"
	EnvLogLevel     = "GROUPORDER_LOG_LEVEL"
	EnvLogFormat    = "GROUPORDER_LOG_FORMAT"
	EnvMinLeadTime  = "GROUPORDER_ORDERS_MIN_LEAD_TIME"
	EnvCORSOrigins  = "GROUPORDER_CORS_ALLOWED_ORIGINS"
	EnvSQLitePath   = "GROUPORDER_SQLITE_PATH"
	EnvAppPort      = "GROUPORDER_APP_PORT"
	EnvRedisKeyBase = "GROUPORDER_REDIS_KEY_PREFIX"
)

type Config struct {
	App      AppConfig
	Log      LogConfig
	Store    StoreConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Orders   OrdersConfig
	CORS     CORSConfig
}

// Load reads the configuration and checks that the selected store driver has
// what it needs to connect.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvJWTSecret))
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("%s is required for the sqlite driver", EnvSQLitePath))
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("%s is required for the postgres driver", EnvPostgresDSN))
		}
	case DriverRedis:
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("either %s or %s is required for the redis driver", EnvRedisURL, EnvRedisAddr))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be one of %s, %s, %s; got %q",
			EnvStoreDriver, DriverSQLite, DriverPostgres, DriverRedis, c.Store.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%s must be debug, info, warn or error; got %q", EnvLogLevel, c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json; got %q", EnvLogFormat, c.Log.Format))
	}

	if c.Orders.MinLeadTime < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", EnvMinLeadTime))
	}
	if c.Orders.MaxSaveAttempts < 1 {
		errs = append(errs, errors.New("GROUPORDER_ORDERS_MAX_SAVE_ATTEMPTS must be at least 1"))
	}
	if c.Orders.TopN < 1 {
		errs = append(errs, errors.New("GROUPORDER_ORDERS_TOP_N must be at least 1"))
	}

	return errors.Join(errs...)
}

type AppConfig struct {
	Env             string        `envconfig:"GROUPORDER_APP_ENV" default:"dev"`
	Port            int           `envconfig:"GROUPORDER_APP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"GROUPORDER_APP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

// Addr is the listen address for the HTTP server.
func (a AppConfig) Addr() string {
	return fmt.Sprintf(":%d", a.Port)
}

type LogConfig struct {
	Level  string `envconfig:"GROUPORDER_LOG_LEVEL" default:"info"`
	Format string `envconfig:"GROUPORDER_LOG_FORMAT" default:"text"`
}

type StoreConfig struct {
	Driver string `envconfig:"GROUPORDER_STORE_DRIVER" default:"sqlite"`
}

type SQLiteConfig struct {
	Path string `envconfig:"GROUPORDER_SQLITE_PATH" default:"./data/grouporder.db"`
}

type PostgresConfig struct {
	DSN      string `envconfig:"GROUPORDER_POSTGRES_DSN"`
	MaxConns int32  `envconfig:"GROUPORDER_POSTGRES_MAX_CONNS" default:"10"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPORDER_REDIS_URL"`
	Addr         string        `envconfig:"GROUPORDER_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPORDER_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPORDER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPORDER_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"GROUPORDER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPORDER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"GROUPORDER_REDIS_WRITE_TIMEOUT" default:"3s"`
	KeyPrefix    string        `envconfig:"GROUPORDER_REDIS_KEY_PREFIX" default:"grouporder"`
}

type JWTConfig struct {
	Secret string        `envconfig:"GROUPORDER_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"GROUPORDER_JWT_ISSUER" default:"grouporder"`
	TTL    time.Duration `envconfig:"GROUPORDER_JWT_TTL" default:"24h"`
}

type OrdersConfig struct {
	MinLeadTime     time.Duration `envconfig:"GROUPORDER_ORDERS_MIN_LEAD_TIME" default:"30m"`
	MaxSaveAttempts int           `envconfig:"GROUPORDER_ORDERS_MAX_SAVE_ATTEMPTS" default:"3"`
	TopN            int           `envconfig:"GROUPORDER_ORDERS_TOP_N" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"GROUPORDER_CORS_ALLOWED_ORIGINS" default:"*"`
}
