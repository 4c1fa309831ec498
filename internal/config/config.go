package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
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
	Kafka        KafkaConfig
	Lock         LockConfig
	Policy       PolicyConfig
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
	DSN           string
	MaxConns      int32
	MinConns      int32
	RunMigrations bool
	// MigrationsDir overrides the embedded migrations with a directory on disk.
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	TimeoutSeconds int
}

// KafkaConfig configures the ticket event feed. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LockConfig tunes the per-ticket mutation lock.
type LockConfig struct {
	TTLSeconds    int
	RetryMillis   int
	WaitTimeoutMS int
}

// PolicyConfig carries the warranty, return and capacity policy values.
type PolicyConfig struct {
	WarrantyMonths       int
	ReturnWindowDays     int
	CapacityLimit        int
	SerializeAssignments bool
}

// DefaultPolicy returns the stock portal policy.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		WarrantyMonths:   24,
		ReturnWindowDays: 15,
		CapacityLimit:    5,
	}
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

	defaults := DefaultPolicy()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "repair-portal"),
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
			MigrationsDir:  os.Getenv("POSTGRES_MIGRATIONS_DIR"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
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
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "repair-portal.tickets"),
		},
		Lock: LockConfig{
			TTLSeconds:    getEnvAsInt("LOCK_TTL_SECONDS", 10),
			RetryMillis:   getEnvAsInt("LOCK_RETRY_MILLIS", 25),
			WaitTimeoutMS: getEnvAsInt("LOCK_WAIT_TIMEOUT_MS", 5000),
		},
		Policy: PolicyConfig{
			WarrantyMonths:       getEnvAsInt("POLICY_WARRANTY_MONTHS", defaults.WarrantyMonths),
			ReturnWindowDays:     getEnvAsInt("POLICY_RETURN_WINDOW_DAYS", defaults.ReturnWindowDays),
			CapacityLimit:        getEnvAsInt("POLICY_CAPACITY_LIMIT", defaults.CapacityLimit),
			SerializeAssignments: getEnvAsBool("POLICY_SERIALIZE_ASSIGNMENTS", false),
		},
	}

	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.App.Env == "production" && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "dev-secret") {
		return errors.New("config: AUTH_JWT_SECRET must be set in production")
	}
	return nil
}

// Validate checks that every policy threshold is usable.
func (p PolicyConfig) Validate() error {
	if p.WarrantyMonths <= 0 {
		return errors.New("config: POLICY_WARRANTY_MONTHS must be positive")
	}
	if p.ReturnWindowDays <= 0 {
		return errors.New("config: POLICY_RETURN_WINDOW_DAYS must be positive")
	}
	if p.CapacityLimit <= 0 {
		return errors.New("config: POLICY_CAPACITY_LIMIT must be positive")
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

// Timeout bounds a single notification delivery.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// TTL returns how long a held lock survives a crashed holder.
func (l LockConfig) TTL() time.Duration {
	if l.TTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(l.TTLSeconds) * time.Second
}

// RetryInterval returns the poll interval while waiting on a held lock.
func (l LockConfig) RetryInterval() time.Duration {
	if l.RetryMillis <= 0 {
		return 25 * time.Millisecond
	}
	return time.Duration(l.RetryMillis) * time.Millisecond
}

// WaitTimeout caps how long a mutation waits for its ticket lock.
func (l LockConfig) WaitTimeout() time.Duration {
	if l.WaitTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(l.WaitTimeoutMS) * time.Millisecond
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
