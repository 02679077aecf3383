package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kapu/namedivider-go/internal/config"
	"github.com/kapu/namedivider-go/pkg/namedivider"
)

// Container bundles the configured client with what built it.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Client   *namedivider.Client
	Registry *prometheus.Registry
}

// Build assembles a client from cfg. When probe is true the service health
// endpoint is checked once and a failure is logged, not returned.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, probe bool) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	registry := prometheus.NewRegistry()
	client, err := namedivider.New(
		namedivider.WithBaseURL(cfg.Server.BaseURL),
		namedivider.WithTimeout(cfg.Server.Timeout),
		namedivider.WithConcurrency(cfg.Dispatch.Concurrency),
		namedivider.WithRateLimit(cfg.Resilience.RateLimitRPS, cfg.Resilience.RateLimitBurst),
		namedivider.WithCircuitBreaker(
			cfg.Resilience.BreakerThreshold,
			cfg.Resilience.BreakerReset,
			cfg.Resilience.HealthCheckInterval,
		),
		namedivider.WithMetrics(cfg.Metrics.Namespace, registry),
		namedivider.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create namedivider client: %w", err)
	}

	if probe {
		if client.Ping(ctx) {
			logger.Info("NameDivider API reachable", zap.String("base_url", client.BaseURL()))
		} else {
			logger.Warn("NameDivider API health check failed", zap.String("base_url", client.BaseURL()))
		}
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Registry: registry,
	}, nil
}
