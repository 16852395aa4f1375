package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Broker    BrokerConfig
	Auth      AuthConfig
	App       AppConfig
	Analytics AnalyticsConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Startup connection is retried ConnectAttempts times, ConnectDelay apart.
	ConnectAttempts int
	ConnectDelay    time.Duration

	MigrationsPath string
	AutoMigrate    bool
}

// Redis caching layer configuration
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	TTL      time.Duration
}

// BrokerConfig configures the click event queue. An empty URL keeps
// click recording in-process.
type BrokerConfig struct {
	URL   string
	Queue string
}

type AuthConfig struct {
	JWTSecret           string
	TokenTTL            time.Duration
	DefaultUserEmail    string
	DefaultUserPassword string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment      string
	ServiceName      string
	LogLevel         string
	OTLPEndpoint     string
	TraceSampleRatio float64
	BaseURL          string // Base URL for generating short links
	FrontendURL      string
	ShortCodeLen     int
	ShortCodeRetries int
	MaxAliasLen      int
	MinAliasLen      int
	DefaultPageSize  int
	MaxPageSize      int
}

// AnalyticsConfig sizes the asynchronous click recorder.
type AnalyticsConfig struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// RateLimitConfig holds per-IP limits. A non-positive RPS disables the limiter.
type RateLimitConfig struct {
	RedirectRPS   float64
	RedirectBurst int
	AuthRPS       float64
	AuthBurst     int
}

const defaultJWTSecret = "your-secret-key"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "shortener"),
			Password:        getEnv("DB_PASSWORD", "shortener_secret"),
			DBName:          getEnv("DB_NAME", "urlshortener"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
			ConnectDelay:    getEnvDuration("DB_CONNECT_DELAY", 5*time.Second),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "migrations/schema"),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", true),
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			User:     getEnv("RDB_USER", ""),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Broker: BrokerConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("CLICK_QUEUE", "click_events"),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			TokenTTL:            getEnvDuration("JWT_TTL", 7*24*time.Hour),
			DefaultUserEmail:    getEnv("DEFAULT_USER_EMAIL", ""),
			DefaultUserPassword: getEnv("DEFAULT_USER_PASSWORD", ""),
		},
		App: AppConfig{
			Environment:      getEnv("ENVIRONMENT", "development"),
			ServiceName:      getEnv("SERVICE_NAME", "url-shortener"),
			LogLevel:         getEnv("LOG_LEVEL", ""),
			OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
			TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1),
			BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
			FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
			ShortCodeLen:     getEnvInt("SHORT_CODE_LENGTH", 7),
			ShortCodeRetries: getEnvInt("SHORT_CODE_MAX_RETRIES", 5),
			MinAliasLen:      getEnvInt("MIN_ALIAS_LENGTH", 3),
			MaxAliasLen:      getEnvInt("MAX_ALIAS_LENGTH", 32),
			DefaultPageSize:  getEnvInt("DEFAULT_PAGE_SIZE", 5),
			MaxPageSize:      getEnvInt("MAX_PAGE_SIZE", 100),
		},
		Analytics: AnalyticsConfig{
			BufferSize:   getEnvInt("CLICK_BUFFER_SIZE", 1024),
			Workers:      getEnvInt("CLICK_WORKERS", 4),
			WriteTimeout: getEnvDuration("CLICK_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RedirectRPS:   getEnvFloat("RATE_LIMIT_REDIRECT_RPS", 30),
			RedirectBurst: getEnvInt("RATE_LIMIT_REDIRECT_BURST", 60),
			AuthRPS:       getEnvFloat("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:     getEnvInt("RATE_LIMIT_AUTH_BURST", 5),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.Auth.JWTSecret = defaultJWTSecret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) validate() error {
	switch {
	case c.App.ShortCodeLen < 4:
		return fmt.Errorf("SHORT_CODE_LENGTH must be at least 4, got %d", c.App.ShortCodeLen)
	case c.App.ShortCodeRetries < 1:
		return fmt.Errorf("SHORT_CODE_MAX_RETRIES must be positive, got %d", c.App.ShortCodeRetries)
	case c.App.MinAliasLen < 1 || c.App.MinAliasLen > c.App.MaxAliasLen:
		return fmt.Errorf("alias bounds are inconsistent: min=%d max=%d", c.App.MinAliasLen, c.App.MaxAliasLen)
	case c.App.DefaultPageSize < 1 || c.App.DefaultPageSize > c.App.MaxPageSize:
		return fmt.Errorf("page size bounds are inconsistent: default=%d max=%d", c.App.DefaultPageSize, c.App.MaxPageSize)
	case c.Database.ConnectAttempts < 1:
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be positive, got %d", c.Database.ConnectAttempts)
	case c.Analytics.BufferSize < 1 || c.Analytics.Workers < 1:
		return errors.New("CLICK_BUFFER_SIZE and CLICK_WORKERS must be positive")
	}
	return nil
}

type ConnectionInterface interface {
	ConnectionString() string
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
