package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/cetzal/authcore/pkg/config"
	"github.com/cetzal/authcore/pkg/database"
	"github.com/cetzal/authcore/pkg/tracing"
)

// DefaultJWTSecret is accepted only in development.
const DefaultJWTSecret = "change-this-to-a-secure-secret"

const minSecretLength = 32

// Blacklist backends.
const (
	BlacklistPostgres = "postgres"
	BlacklistMemory   = "memory"
)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"authcore"`

	// HTTP server
	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8000"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"authcore"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"authcore_secret"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"authcore"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQuery        time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis blacklist cache
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka auth events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"authcore"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	JWTRotateRefresh bool          `env:"JWT_ROTATE_REFRESH" envDefault:"true"`

	// Blacklist
	StoreTimeout           time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	BlacklistStore         string        `env:"BLACKLIST_STORE" envDefault:"postgres"`
	BlacklistPurgeInterval time.Duration `env:"BLACKLIST_PURGE_INTERVAL" envDefault:"1h"`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load authcore config: %w", err)
	}
	return cfg, nil
}

// Validate implements pkgconfig.Validator.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= 0 {
		return fmt.Errorf("JWT expiries must be positive")
	}
	if c.JWTAccessExpiry >= c.JWTRefreshExpiry {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRY (%s) must be shorter than JWT_REFRESH_TOKEN_EXPIRY (%s)", c.JWTAccessExpiry, c.JWTRefreshExpiry)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.BlacklistPurgeInterval <= 0 {
		return fmt.Errorf("BLACKLIST_PURGE_INTERVAL must be positive, got %s", c.BlacklistPurgeInterval)
	}
	switch c.BlacklistStore {
	case BlacklistPostgres, BlacklistMemory:
	default:
		return fmt.Errorf("BLACKLIST_STORE must be %q or %q, got %q", BlacklistPostgres, BlacklistMemory, c.BlacklistStore)
	}

	// Outside development the signing key must be explicit and strong.
	if !c.IsDevelopment() {
		if c.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTSecret))
		}
		if c.BlacklistStore == BlacklistMemory {
			return fmt.Errorf("BLACKLIST_STORE=memory is only allowed in development")
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	pg.StatementTimeout = c.StoreTimeout
	return pg
}

// Redis returns the blacklist cache connection configuration.
func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Host = c.RedisHost
	r.Port = c.RedisPort
	r.Password = c.RedisPassword
	r.DB = c.RedisDB
	if c.StoreTimeout < r.ReadTimeout {
		r.ReadTimeout = c.StoreTimeout
	}
	return r
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	t := tracing.DefaultConfig(c.ServiceName)
	t.Environment = c.Environment
	t.OTLPEndpoint = c.OTelEndpoint
	t.SampleRate = c.OTelSampleRate
	t.Enabled = c.OTelEnabled
	return t
}
