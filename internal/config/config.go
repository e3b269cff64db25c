package config

import (
	"errors"
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
	Compliance   ComplianceConfig
	Scheduler    SchedulerConfig
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
	MigrationsDir  string
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
	Level string
}

// AuthConfig defines admin token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig selects and configures outbound sinks. Every sink with
// a non-empty endpoint is enabled; with none configured messages are only logged.
type NotificationConfig struct {
	EmailFrom     string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	WebhookURL    string
	RedisQueue    string
	RatePerSecond float64
	// RateMaxWait caps how long one delivery may queue for the limiter.
	RateMaxWait   time.Duration
	FrontendURL   string
}

// ComplianceConfig drives the SLA scan loop.
type ComplianceConfig struct {
	Interval                time.Duration
	WarningThresholdPercent float64
	Concurrency             int
	PageSize                int
	RunOnStart              bool
}

// SchedulerConfig drives the automation loop.
type SchedulerConfig struct {
	TickInterval   time.Duration
	ReloadInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:      os.Getenv("SMTP_USER"),
			SMTPPassword:  os.Getenv("SMTP_PASS"),
			WebhookURL:    os.Getenv("NOTIFY_WEBHOOK_URL"),
			RedisQueue:    os.Getenv("NOTIFY_REDIS_QUEUE"),
			RatePerSecond: getEnvAsFloat("NOTIFY_RATE_PER_SECOND", 5),
			RateMaxWait:   getEnvAsDuration("NOTIFY_RATE_MAX_WAIT", 5*time.Second),
			FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Compliance: ComplianceConfig{
			Interval:                getEnvAsDuration("SLA_SCAN_INTERVAL", 15*time.Minute),
			WarningThresholdPercent: getEnvAsFloat("SLA_WARNING_THRESHOLD_PERCENT", 80),
			Concurrency:             getEnvAsInt("SLA_SCAN_CONCURRENCY", 4),
			PageSize:                getEnvAsInt("SLA_SCAN_PAGE_SIZE", 200),
			RunOnStart:              getEnvAsBool("SLA_RUN_ON_START", true),
		},
		Scheduler: SchedulerConfig{
			TickInterval:   getEnvAsDuration("SCHEDULER_TICK_INTERVAL", time.Minute),
			ReloadInterval: getEnvAsDuration("SCHEDULER_RELOAD_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the workers cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if t := c.Compliance.WarningThresholdPercent; t <= 0 || t > 100 {
		errs = append(errs, fmt.Errorf("SLA_WARNING_THRESHOLD_PERCENT must be in (0,100], got %v", t))
	}
	if c.Compliance.Interval <= 0 {
		errs = append(errs, errors.New("SLA_SCAN_INTERVAL must be positive"))
	}
	if c.Compliance.Concurrency <= 0 {
		errs = append(errs, errors.New("SLA_SCAN_CONCURRENCY must be positive"))
	}
	if c.Compliance.PageSize <= 0 {
		errs = append(errs, errors.New("SLA_SCAN_PAGE_SIZE must be positive"))
	}
	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_TICK_INTERVAL must be positive"))
	}
	if c.Scheduler.ReloadInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_RELOAD_INTERVAL must be positive"))
	}
	if c.Notification.RatePerSecond < 0 {
		errs = append(errs, errors.New("NOTIFY_RATE_PER_SECOND must not be negative"))
	}
	return errors.Join(errs...)
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

// AccessTokenTTL returns the admin token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

// getEnvAsDuration accepts Go duration strings ("15m") or bare seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
