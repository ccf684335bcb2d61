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

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	// CORSOrigins lists browser origins allowed to call the API, e.g. the admin UI.
	CORSOrigins []string

	StoreDriver    string
	MigrationsPath string

	DB      DatabaseConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Catalog CatalogConfig
	Worker  WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters. An empty Host disables
// the tree cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig selects the outbox publisher. With no brokers, events go to
// the log.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CatalogConfig tunes the catalog service.
type CatalogConfig struct {
	TxMaxAttempts int
	TxBackoff     time.Duration
	TreeCacheTTL  time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	OutboxInterval  time.Duration
	OutboxBatchSize int
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Missing .env is fine: production sets real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.CORSOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.StoreDriver = getEnv("STORE_DRIVER", DriverPostgres)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", "migrations")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Kafka
	cfg.Kafka = KafkaConfig{
		Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
		Topic:   getEnv("KAFKA_TOPIC", "catalog-events"),
	}

	cfg.Catalog.TxMaxAttempts = getEnvInt("CATALOG_TX_MAX_ATTEMPTS", 3)
	cfg.Worker.OutboxBatchSize = getEnvInt("OUTBOX_BATCH_SIZE", 100)

	var err error
	if cfg.Catalog.TxBackoff, err = parseDurationEnv("CATALOG_TX_BACKOFF", "20ms"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_TX_BACKOFF: %w", err)
	}
	if cfg.Catalog.TreeCacheTTL, err = parseDurationEnv("TREE_CACHE_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid TREE_CACHE_TTL: %w", err)
	}
	if cfg.Worker.OutboxInterval, err = parseDurationEnv("OUTBOX_INTERVAL", "5s"); err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q: use %s or %s", c.StoreDriver, DriverPostgres, DriverMemory)
	}
	if c.Catalog.TxMaxAttempts < 1 {
		return errors.New("CATALOG_TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Worker.OutboxBatchSize < 1 {
		return errors.New("OUTBOX_BATCH_SIZE must be at least 1")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
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
