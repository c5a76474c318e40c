package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Driver   string // postgres, sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file path
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// UpstreamConfig points at the commerce API that owns catalog and cart state
type UpstreamConfig struct {
	BaseURL     string
	Timeout     time.Duration
	CartEnabled bool
}

// CacheConfig holds the cache and retry tunables. The defaults mirror the
// behaviour observed in the storefront app; none of them come from an SLA.
type CacheConfig struct {
	EntityTTL          time.Duration
	EntityFetchTimeout time.Duration
	ResponseTTL        time.Duration
	ResponsePrefix     string
	CredentialPrefix   string
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMultiplier    float64
	PruneSchedule      string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "nubian"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "nubian_storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "storefront.db"),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Upstream: UpstreamConfig{
			BaseURL:     strings.TrimSuffix(getEnv("UPSTREAM_BASE_URL", "http://localhost:3000/api"), "/"),
			Timeout:     parseDuration(getEnv("UPSTREAM_TIMEOUT", "10s"), 10*time.Second),
			CartEnabled: parseBool(getEnv("UPSTREAM_CART_ENABLED", "true")),
		},
		Cache: CacheConfig{
			EntityTTL:          parseDuration(getEnv("ENTITY_CACHE_TTL", "60s"), 60*time.Second),
			EntityFetchTimeout: parseDuration(getEnv("ENTITY_FETCH_TIMEOUT", "30s"), 30*time.Second),
			ResponseTTL:        parseDuration(getEnv("RESPONSE_CACHE_TTL", "60s"), 60*time.Second),
			ResponsePrefix:     getEnv("RESPONSE_CACHE_PREFIX", "nubian:httpcache:"),
			CredentialPrefix:   getEnv("CREDENTIAL_PREFIX", "nubian:credential:"),
			MaxRetries:         parseInt(getEnv("RETRY_MAX", "2"), 2),
			RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "300ms"), 300*time.Millisecond),
			RetryMultiplier:    parseFloat(getEnv("RETRY_MULTIPLIER", "2"), 2),
			PruneSchedule:      getEnv("CACHE_PRUNE_SCHEDULE", "@every 5m"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:8081")),
		},
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
		if config.Server.Environment == "development" {
			config.Log.Level = "debug"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	if c.Cache.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX must not be negative")
	}
	if c.Cache.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		log.Printf("Invalid number %s, using default %g", s, fallback)
		return fallback
	}
	return f
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func parseSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
