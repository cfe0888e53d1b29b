package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REVIEWSENTIMENT_SERVER_PORT
const EnvPrefix = "REVIEWSENTIMENT"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Lexicon   LexiconConfig   `mapstructure:"lexicon"`
	Keywords  KeywordsConfig  `mapstructure:"keywords"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds review store configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// LexiconConfig points at the newline-delimited word lists
type LexiconConfig struct {
	PositivePath string `mapstructure:"positive_path"`
	NegativePath string `mapstructure:"negative_path"`
}

// KeywordsConfig holds keyword extraction settings
type KeywordsConfig struct {
	Limit int `mapstructure:"limit"`
}

// QueueConfig holds asynq configuration
type QueueConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	RedisAddr   string `mapstructure:"redis_addr"`
	Concurrency int    `mapstructure:"concurrency"`
}

// SchedulerConfig holds the unscored-review sweep configuration
type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Spec      string `mapstructure:"spec"`
	BatchSize int    `mapstructure:"batch_size"`
}

// OllamaConfig holds review summarisation configuration
type OllamaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Model   string `mapstructure:"model"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // collector host:port for OTLP gRPC
	Insecure     bool   `mapstructure:"insecure"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables.
// A .env file in the working directory is loaded first when present; an
// empty path skips the config file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "reviewsentiment.db")

	v.SetDefault("lexicon.positive_path", "")
	v.SetDefault("lexicon.negative_path", "")

	v.SetDefault("keywords.limit", 10)

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.concurrency", 5)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 5m")
	v.SetDefault("scheduler.batch_size", 100)

	v.SetDefault("ollama.enabled", false)
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.service_name", "reviewsentiment")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be one of: sqlite, postgres")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Keywords.Limit < 1 {
		return fmt.Errorf("keywords.limit must be at least 1")
	}

	if c.Queue.Enabled {
		if c.Queue.RedisAddr == "" {
			return fmt.Errorf("queue.redis_addr is required when queue is enabled")
		}
		if c.Queue.Concurrency < 1 {
			return fmt.Errorf("queue.concurrency must be at least 1")
		}
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return fmt.Errorf("scheduler.spec is invalid: %w", err)
		}
		if c.Scheduler.BatchSize < 1 {
			return fmt.Errorf("scheduler.batch_size must be at least 1")
		}
	}

	if c.Ollama.Enabled && c.Ollama.URL == "" {
		return fmt.Errorf("ollama.url is required when ollama is enabled")
	}

	if c.Tracing.Enabled {
		if c.Tracing.ServiceName == "" {
			return fmt.Errorf("tracing.service_name is required when tracing is enabled")
		}
		if c.Tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when tracing is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
