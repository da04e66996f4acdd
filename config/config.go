package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lostfound/backend/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Embedding EmbeddingConfig
	Cache     CacheConfig
	Matching  MatchingConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"` // "ollama" or "openai"
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Models    []string      `mapstructure:"models"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst"`
}

// CacheConfig holds embedding cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds the matching engine settings
type MatchingConfig struct {
	Weights            map[string]float64 `mapstructure:"weights"`
	NameFloor          float64            `mapstructure:"name_floor"`
	DateDecay          []float64          `mapstructure:"date_decay"`
	ResultCap          int                `mapstructure:"result_cap"`
	ProviderTimeout    time.Duration      `mapstructure:"provider_timeout"`
	MaxConcurrency     int                `mapstructure:"max_concurrency"`
	EnableDebugLogging bool               `mapstructure:"enable_debug_logging"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// FieldWeights parses the configured weight table
func (m MatchingConfig) FieldWeights() (domain.FieldWeights, error) {
	return domain.ParseFieldWeights(m.Weights)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lostfound/")

	// LOSTFOUND_EMBEDDING_API_KEY -> embedding.api_key
	v.SetEnvPrefix("LOSTFOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Embedding defaults
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.models", []string{"nomic-embed-text"})
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.rate_limit", 10.0)
	v.SetDefault("embedding.burst", 10)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Matching defaults
	v.SetDefault("matching.weights", domain.DefaultFieldWeights().Map())
	v.SetDefault("matching.name_floor", 0.1)
	v.SetDefault("matching.date_decay", []float64(domain.DefaultDateDecay()))
	v.SetDefault("matching.result_cap", 3)
	v.SetDefault("matching.provider_timeout", "10s")
	v.SetDefault("matching.max_concurrency", 4)
	v.SetDefault("matching.enable_debug_logging", false)

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Embedding.Provider {
	case "ollama":
	case "openai":
		if config.Embedding.APIKey == "" {
			return fmt.Errorf("embedding API key is required for the openai provider (set LOSTFOUND_EMBEDDING_API_KEY)")
		}
	default:
		return fmt.Errorf("embedding provider must be 'ollama' or 'openai', got: %s", config.Embedding.Provider)
	}

	if config.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding base URL is required")
	}

	switch config.Cache.Type {
	case "memory", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	if _, err := config.Matching.FieldWeights(); err != nil {
		return err
	}

	if config.Matching.NameFloor < 0 || config.Matching.NameFloor > 1 {
		return fmt.Errorf("%w: name floor must be within [0,1], got %v", domain.ErrInvalidConfig, config.Matching.NameFloor)
	}

	if err := domain.DateDecay(config.Matching.DateDecay).Validate(); err != nil {
		return err
	}

	if config.Matching.ResultCap <= 0 {
		return fmt.Errorf("%w: result cap must be positive, got %d", domain.ErrInvalidConfig, config.Matching.ResultCap)
	}

	if config.Matching.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max concurrency must be positive, got %d", domain.ErrInvalidConfig, config.Matching.MaxConcurrency)
	}

	if config.Matching.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: provider timeout must be positive, got %s", domain.ErrInvalidConfig, config.Matching.ProviderTimeout)
	}

	return nil
}

// loadEnvFile loads KEY=VALUE lines from ./.env without overriding variables
// already present in the environment. A missing file is not an error.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}

	return scanner.Err()
}
