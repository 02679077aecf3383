package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Dispatch   DispatchConfig
	Resilience ResilienceConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DispatchConfig struct {
	Concurrency int
}

type ResilienceConfig struct {
	RateLimitRPS        float64
	RateLimitBurst      int
	BreakerThreshold    int
	BreakerReset        time.Duration
	HealthCheckInterval time.Duration
}

type MetricsConfig struct {
	Namespace string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			BaseURL: strings.TrimRight(getEnv("NAMEDIVIDER_BASE_URL", "http://localhost:8000"), "/"),
			Timeout: time.Duration(getEnvInt("NAMEDIVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Dispatch: DispatchConfig{
			Concurrency: getEnvInt("NAMEDIVIDER_BATCH_CONCURRENCY", 3),
		},
		Resilience: ResilienceConfig{
			RateLimitRPS:        getEnvFloat("NAMEDIVIDER_RATE_LIMIT_RPS", 0),
			RateLimitBurst:      getEnvInt("NAMEDIVIDER_RATE_LIMIT_BURST", 1),
			BreakerThreshold:    getEnvInt("NAMEDIVIDER_BREAKER_THRESHOLD", 0),
			BreakerReset:        time.Duration(getEnvInt("NAMEDIVIDER_BREAKER_RESET_SECONDS", 30)) * time.Second,
			HealthCheckInterval: time.Duration(getEnvInt("NAMEDIVIDER_HEALTH_CHECK_SECONDS", 60)) * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("NAMEDIVIDER_METRICS_NAMESPACE", "namedivider"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("NAMEDIVIDER_BASE_URL must be an absolute URL, got %q", c.Server.BaseURL)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("NAMEDIVIDER_TIMEOUT_SECONDS must be positive")
	}
	if c.Dispatch.Concurrency <= 0 {
		return fmt.Errorf("NAMEDIVIDER_BATCH_CONCURRENCY must be positive")
	}
	if c.Resilience.RateLimitRPS < 0 || c.Resilience.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.Resilience.BreakerThreshold < 0 {
		return fmt.Errorf("NAMEDIVIDER_BREAKER_THRESHOLD must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
