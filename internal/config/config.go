// Package config provides unified configuration loading for drawn-weight.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/drawn-weight/internal/domain"
)

// Provider names accepted by extraction.provider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// DefaultModels is the Gemini fallback order tried for every drawing.
var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite-preview-02-05",
	"gemini-2.5-flash",
	"gemini-flash-latest",
}

// Config holds all configuration for drawn-weight.
type Config struct {
	Material      domain.MaterialConstants `yaml:"material"`
	Extraction    ExtractionConfig         `yaml:"extraction"`
	Preprocess    PreprocessConfig         `yaml:"preprocess"`
	Cache         CacheConfig              `yaml:"cache"`
	Database      DatabaseConfig           `yaml:"database"`
	Server        ServerConfig             `yaml:"server"`
	Auth          AuthConfig               `yaml:"auth"`
	Observability ObservabilityConfig      `yaml:"observability"`
}

// ExtractionConfig selects the vision provider and model fallback order.
type ExtractionConfig struct {
	Provider       string        `yaml:"provider"` // gemini or openrouter
	Models         []string      `yaml:"models"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	Temperature    float32       `yaml:"temperature"`
	OpenRouterURL  string        `yaml:"openrouter_url"`

	// Credentials are read from the environment only.
	GoogleAPIKey     string `yaml:"-"`
	OpenRouterAPIKey string `yaml:"-"`
}

// PreprocessConfig controls PDF rasterization.
type PreprocessConfig struct {
	TempDir     string `yaml:"temp_dir"`
	DPI         int    `yaml:"dpi"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// CacheConfig holds extraction cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory, redis or none
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// DatabaseConfig holds history database settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadMB      int64         `yaml:"max_upload_mb"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"`
	Tokens  map[string]string `yaml:"tokens"` // bearer token -> user id
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads .env, then the YAML file at path (if any), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Material: domain.DefaultMaterial(),
		Extraction: ExtractionConfig{
			Provider:       ProviderGemini,
			Models:         append([]string(nil), DefaultModels...),
			AttemptTimeout: 60 * time.Second,
			OpenRouterURL:  "https://openrouter.ai/api/v1/chat/completions",
		},
		Preprocess: PreprocessConfig{
			DPI:         200,
			JPEGQuality: 85,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "dw:",
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "drawn-weight.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   5 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			MaxUploadMB:      25,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "drawn-weight",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Material.DensityGPerCm3 <= 0 {
		return fmt.Errorf("material density must be positive, got %v", c.Material.DensityGPerCm3)
	}
	if c.Material.ThicknessMM <= 0 {
		return fmt.Errorf("material thickness must be positive, got %v", c.Material.ThicknessMM)
	}
	if c.Material.OverheadMM2 < 0 {
		return fmt.Errorf("material overhead cannot be negative, got %v", c.Material.OverheadMM2)
	}

	if c.Extraction.Provider != ProviderGemini && c.Extraction.Provider != ProviderOpenRouter {
		return fmt.Errorf("invalid extraction provider: %s", c.Extraction.Provider)
	}
	if len(c.Extraction.Models) == 0 {
		return domain.ConfigError("extraction.models is empty", domain.ErrNoModelsConfigured)
	}
	if c.Extraction.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive")
	}

	if c.Preprocess.DPI < 36 || c.Preprocess.DPI > 600 {
		return fmt.Errorf("dpi must be between 36 and 600, got %d", c.Preprocess.DPI)
	}
	if c.Preprocess.JPEGQuality < 1 || c.Preprocess.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.Preprocess.JPEGQuality)
	}

	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// Credential returns the API key for the configured provider.
func (c *Config) Credential() string {
	if c.Extraction.Provider == ProviderOpenRouter {
		return c.Extraction.OpenRouterAPIKey
	}
	return c.Extraction.GoogleAPIKey
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	cfg.Extraction.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.Extraction.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")

	if v := os.Getenv("DRAWN_WEIGHT_PROVIDER"); v != "" {
		cfg.Extraction.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("DRAWN_WEIGHT_MODELS"); v != "" {
		cfg.Extraction.Models = splitList(v)
	}

	if v := os.Getenv("DENSITY_G_CM3"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Material.DensityGPerCm3 = f
		}
	}

	if v := os.Getenv("THICKNESS_MM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Material.ThicknessMM = f
		}
	}

	if v := os.Getenv("OVERHEAD_MM2"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Material.OverheadMM2 = f
		}
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
