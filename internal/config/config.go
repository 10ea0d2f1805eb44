package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Assignment   AssignmentConfig
	Store        StoreConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls delivery of fan-out notifications.
type NotificationConfig struct {
	Transport      string
	MaxAttempts    int
	RetryBackoffMS int
	InboxSize      int
	InboxTTLHours  int
}

// SLAConfig holds the resolution window per priority, in hours.
type SLAConfig struct {
	UrgentHours          int
	HighHours            int
	MediumHours          int
	LowHours             int
	SweepIntervalSeconds int
}

// AssignmentConfig tunes auto-assignment.
type AssignmentConfig struct {
	DefaultCapacity int
}

// StoreConfig selects the ticket store backend: "memory" or "postgres".
type StoreConfig struct {
	Driver string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Transport:      getEnv("NOTIFY_TRANSPORT", "redis"),
			MaxAttempts:    getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			RetryBackoffMS: getEnvAsInt("NOTIFY_RETRY_BACKOFF_MS", 200),
			InboxSize:      getEnvAsInt("NOTIFY_INBOX_SIZE", 100),
			InboxTTLHours:  getEnvAsInt("NOTIFY_INBOX_TTL_HOURS", 72),
		},
		SLA: SLAConfig{
			UrgentHours:          getEnvAsInt("SLA_URGENT_HOURS", 4),
			HighHours:            getEnvAsInt("SLA_HIGH_HOURS", 24),
			MediumHours:          getEnvAsInt("SLA_MEDIUM_HOURS", 48),
			LowHours:             getEnvAsInt("SLA_LOW_HOURS", 72),
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 60),
		},
		Assignment: AssignmentConfig{
			DefaultCapacity: getEnvAsInt("ASSIGN_DEFAULT_CAPACITY", 5),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	for name, hours := range map[string]int{
		"SLA_URGENT_HOURS": c.SLA.UrgentHours,
		"SLA_HIGH_HOURS":   c.SLA.HighHours,
		"SLA_MEDIUM_HOURS": c.SLA.MediumHours,
		"SLA_LOW_HOURS":    c.SLA.LowHours,
	} {
		if hours <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	switch c.Notification.Transport {
	case "redis", "log":
	default:
		return fmt.Errorf("invalid NOTIFY_TRANSPORT %q", c.Notification.Transport)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns how often the SLA sweeper runs.
func (s SLAConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// RetryBackoff returns the base delay between delivery attempts.
func (n NotificationConfig) RetryBackoff() time.Duration {
	return time.Duration(n.RetryBackoffMS) * time.Millisecond
}

// InboxTTL returns how long undelivered inbox entries are kept.
func (n NotificationConfig) InboxTTL() time.Duration {
	return time.Duration(n.InboxTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
