package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Settings and profile store
	Store StoreConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Model providers
	Providers ProvidersConfig

	// Circuit breaker around model providers
	Breaker BreakerConfig

	// Analysis pipeline
	Analysis AnalysisConfig

	// Headless browser used for injection
	Browser BrowserConfig

	// Analysis archive
	Storage StorageConfig

	// Rate Limits
	RateLimits RateLimitConfig

	// Security
	Security SecurityConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" default:"smartfill"`
	Version string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"10485760"` // 10MB
}

// StoreConfig selects the key-value backend for settings and profiles
type StoreConfig struct {
	Backend   string `envconfig:"STORE_BACKEND" default:"memory"`
	KeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"smartfill:"`
	// EncryptionKey seals the stored API key: 32 bytes, base64 or raw
	EncryptionKey string `envconfig:"STORE_ENCRYPTION_KEY" default:""`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"smartfill"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"smartfill"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProvidersConfig holds endpoints and defaults for the remote model providers.
// API keys are not configured here: they live in the user's stored settings.
type ProvidersConfig struct {
	Timeout         time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	MaxOutputTokens int           `envconfig:"PROVIDER_MAX_OUTPUT_TOKENS" default:"2048"`
	Temperature     float64       `envconfig:"PROVIDER_TEMPERATURE" default:"0.1"`
	RateLimitRPM    int           `envconfig:"PROVIDER_RATE_LIMIT_RPM" default:"60"`

	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-lite-preview-06-17"`

	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	ClaudeBaseURL    string `envconfig:"CLAUDE_BASE_URL" default:"https://api.anthropic.com"`
	ClaudeModel      string `envconfig:"CLAUDE_MODEL" default:"claude-sonnet-4-20250514"`
	AnthropicVersion string `envconfig:"ANTHROPIC_VERSION" default:"2023-06-01"`
}

// BreakerConfig holds circuit breaker settings for provider calls
type BreakerConfig struct {
	Enabled          bool          `envconfig:"BREAKER_ENABLED" default:"true"`
	FailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"3"`
	OpenTimeout      time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
	Interval         time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	HalfOpenRequests uint32        `envconfig:"BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// AnalysisConfig holds pipeline limits and injection pacing
type AnalysisConfig struct {
	Cooldown          time.Duration `envconfig:"ANALYSIS_COOLDOWN" default:"2s"`
	MaxModelChars     int           `envconfig:"ANALYSIS_MAX_MODEL_CHARS" default:"100000"`
	TypingDelay       time.Duration `envconfig:"ANALYSIS_TYPING_DELAY" default:"10ms"`
	HighlightDuration time.Duration `envconfig:"ANALYSIS_HIGHLIGHT_DURATION" default:"2s"`
	FillDelay         time.Duration `envconfig:"ANALYSIS_FILL_DELAY" default:"50ms"`
	// NamePrecedence is "profile" or "info"
	NamePrecedence string `envconfig:"PROFILE_NAME_PRECEDENCE" default:"profile"`
}

// BrowserConfig holds Playwright settings
type BrowserConfig struct {
	Enabled           bool          `envconfig:"BROWSER_ENABLED" default:"false"`
	Headless          bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	NavigationTimeout time.Duration `envconfig:"BROWSER_NAVIGATION_TIMEOUT" default:"30s"`
}

// StorageConfig holds object storage settings for the analysis archive
type StorageConfig struct {
	Enabled     bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint    string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey   string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey   string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket      string `envconfig:"STORAGE_BUCKET" default:"smartfill"`
	UseSSL      bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	AnalysisDir string `envconfig:"STORAGE_ANALYSIS_PATH" default:"analyses"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMin int  `envconfig:"RATE_LIMIT_REQUESTS_PER_MIN" default:"120"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and falls back to defaults on error (for CLI tools)
func LoadWithDefaults() (*Config, error) {
	var cfg Config

	// Try to load from env, but don't fail on malformed values
	envconfig.Process("", &cfg)

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Providers.Timeout <= 0 {
		cfg.Providers.Timeout = 30 * time.Second
	}
	if cfg.Analysis.MaxModelChars <= 0 {
		cfg.Analysis.MaxModelChars = 100000
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		errors = append(errors, fmt.Sprintf("STORE_BACKEND must be one of memory, redis, postgres (got %q)", c.Store.Backend))
	}

	if c.Store.Backend == StorePostgres && c.Env != EnvDevelopment && c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required for the postgres store in non-development mode")
	}

	if k := c.Store.EncryptionKey; k != "" && len(k) != 32 {
		if decoded, err := base64.StdEncoding.DecodeString(k); err != nil || len(decoded) != 32 {
			errors = append(errors, "STORE_ENCRYPTION_KEY must be 32 bytes, raw or base64 encoded")
		}
	}

	if c.Store.Backend != StoreMemory && c.IsProduction() && c.Store.EncryptionKey == "" {
		errors = append(errors, "STORE_ENCRYPTION_KEY is required for a persistent store in production")
	}

	if c.Providers.Timeout <= 0 {
		errors = append(errors, "PROVIDER_TIMEOUT must be positive")
	}

	if c.Analysis.MaxModelChars <= 0 {
		errors = append(errors, "ANALYSIS_MAX_MODEL_CHARS must be positive")
	}

	switch c.Analysis.NamePrecedence {
	case "", "profile", "info":
	default:
		errors = append(errors, fmt.Sprintf("PROFILE_NAME_PRECEDENCE must be profile or info (got %q)", c.Analysis.NamePrecedence))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
