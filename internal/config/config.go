package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values load from an optional
// YAML file and may be overridden by environment variables.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	// Transport selects the match channel backend: "redis" or "nats".
	Transport string `yaml:"transport"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	// DatabaseURL enables durable score records when set.
	DatabaseURL string `yaml:"database_url"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Transport = "redis"
	cfg.NATS.URL = "nats://localhost:4222"
	return cfg
}

// Load reads the YAML file at path (skipped when empty or missing) and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Transport = getEnv("MATCH_TRANSPORT", cfg.Transport)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	if cfg.Transport != "redis" && cfg.Transport != "nats" {
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
