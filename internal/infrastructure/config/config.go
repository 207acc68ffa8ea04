package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Uploads       UploadsConfig       `koanf:"uploads"`
	Extraction    ExtractionConfig    `koanf:"extraction"`
	AnomalyScorer AnomalyScorerConfig `koanf:"anomaly_scorer"`
	Explanation   ExplanationConfig   `koanf:"explanation"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MinIdleConns    int           `koanf:"min_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type UploadsConfig struct {
	Dir string `koanf:"dir"`
}

type ExtractionConfig struct {
	Endpoint     string        `koanf:"endpoint"`
	APIKey       string        `koanf:"api_key"`
	APIVersion   string        `koanf:"api_version"`
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

type AnomalyScorerConfig struct {
	Endpoint string        `koanf:"endpoint"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"`
}

type ExplanationConfig struct {
	Endpoint   string        `koanf:"endpoint"`
	APIKey     string        `koanf:"api_key"`
	Deployment string        `koanf:"deployment"`
	APIVersion string        `koanf:"api_version"`
	Timeout    time.Duration `koanf:"timeout"`
}

// Load layers defaults, the optional configs/config.yaml and IFD_-prefixed
// environment variables, last writer wins. IFD_DATABASE_URL overrides
// database.url and so on.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/invoice_fraud?sslmode=disable",
			MaxOpenConns:    25,
			MinIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:      "localhost:6379",
			CacheTTL: 5 * time.Minute,
		},
		Uploads: UploadsConfig{
			Dir: "uploads",
		},
		Extraction: ExtractionConfig{
			Timeout:      60 * time.Second,
			PollInterval: 2 * time.Second,
		},
		AnomalyScorer: AnomalyScorerConfig{
			Timeout: 10 * time.Second,
		},
		Explanation: ExplanationConfig{
			Timeout: 10 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
	}

	if err := k.Load(env.Provider("IFD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "IFD_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
