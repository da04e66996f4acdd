// Package bootstrap wires configuration into a ready matching engine.
// Both the HTTP server and matchctl build their dependencies here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/config"
	"github.com/lostfound/backend/internal/domain"
	"github.com/lostfound/backend/internal/infrastructure/cache"
	"github.com/lostfound/backend/internal/infrastructure/embedding"
	"github.com/lostfound/backend/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const redisPingTimeout = 3 * time.Second

// Engine bundles the matching service with the infrastructure behind it
type Engine struct {
	Client   *embedding.Client
	Provider domain.EmbeddingProvider
	Matcher  *usecase.MatchingService
	Metrics  *usecase.Metrics
	Registry *prometheus.Registry

	closers []func() error
}

// ConfigureLogging sets the level and format of the default logger
func ConfigureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.RFC3339)
	return nil
}

// NewEngine builds the embedding client, cache, metrics and matching service
// described by cfg. Call Close when done.
func NewEngine(cfg *config.Config) (*Engine, error) {
	e := &Engine{}

	defaultModel := ""
	if len(cfg.Embedding.Models) > 0 {
		defaultModel = cfg.Embedding.Models[0]
	}

	e.Client = embedding.NewClient(embedding.Options{
		Kind:         embedding.Kind(cfg.Embedding.Provider),
		BaseURL:      cfg.Embedding.BaseURL,
		APIKey:       cfg.Embedding.APIKey,
		DefaultModel: defaultModel,
		Timeout:      cfg.Embedding.Timeout,
		RateLimit:    cfg.Embedding.RateLimit,
		Burst:        cfg.Embedding.Burst,
	})
	if cfg.Server.Environment == "development" {
		e.Client.SetDebug(true)
	}

	e.Metrics = usecase.NewMetrics()
	e.Registry = prometheus.NewRegistry()
	if err := e.Metrics.Register(e.Registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if err := e.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := e.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	store, closeStore, err := newCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		e.closers = append(e.closers, closeStore)
	}

	e.Provider = e.Client
	if store != nil {
		e.Provider = usecase.NewEmbeddingService(store, e.Client, usecase.EmbeddingServiceConfig{
			CacheTTL:        cfg.Cache.TTL,
			UpstreamTimeout: cfg.Matching.ProviderTimeout,
			Metrics:         e.Metrics,
		})
	}

	weights, err := cfg.Matching.FieldWeights()
	if err != nil {
		e.Close()
		return nil, err
	}

	nameFloor := cfg.Matching.NameFloor
	e.Matcher, err = usecase.NewMatchingService(e.Provider, usecase.MatchConfig{
		Weights:            weights,
		NameFloor:          &nameFloor,
		DateDecay:          domain.DateDecay(cfg.Matching.DateDecay),
		ResultCap:          cfg.Matching.ResultCap,
		Models:             cfg.Embedding.Models,
		ProviderTimeout:    cfg.Matching.ProviderTimeout,
		MaxConcurrency:     cfg.Matching.MaxConcurrency,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
		Metrics:            e.Metrics,
	})
	if err != nil {
		e.Close()
		return nil, err
	}

	return e, nil
}

// newCache returns the configured cache and its close function.
// Type "none" yields a nil cache and no caching decorator.
func newCache(cfg config.CacheConfig) (domain.CacheRepository, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		c := cache.NewMemoryCache()
		return c, c.Close, nil
	case "none":
		return nil, nil, nil
	case "redis":
		c, err := cache.NewRedisCacheFromURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown cache type %q", domain.ErrInvalidConfig, cfg.Type)
}

// Close releases the cache
func (e *Engine) Close() error {
	var errs []error
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
