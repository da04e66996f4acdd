package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultEmbeddingCacheTTL is how long a text's vector stays cached
	DefaultEmbeddingCacheTTL = 720 * time.Hour

	// DefaultUpstreamTimeout bounds one shared upstream call
	DefaultUpstreamTimeout = 30 * time.Second
)

// EmbeddingServiceConfig holds configuration for the embedding service
type EmbeddingServiceConfig struct {
	CacheTTL        time.Duration
	UpstreamTimeout time.Duration
	Metrics         *Metrics
}

// EmbeddingService is an EmbeddingProvider that serves vectors from cache and
// falls through to an upstream provider. Identical concurrent requests share
// one upstream call.
type EmbeddingService struct {
	cache           domain.CacheRepository
	upstream        domain.EmbeddingProvider
	cacheTTL        time.Duration
	upstreamTimeout time.Duration
	metrics         *Metrics
	group           singleflight.Group
}

// NewEmbeddingService creates a caching embedding provider
func NewEmbeddingService(
	cache domain.CacheRepository,
	upstream domain.EmbeddingProvider,
	config EmbeddingServiceConfig,
) *EmbeddingService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultEmbeddingCacheTTL
	}

	upstreamTimeout := config.UpstreamTimeout
	if upstreamTimeout == 0 {
		upstreamTimeout = DefaultUpstreamTimeout
	}

	return &EmbeddingService{
		cache:           cache,
		upstream:        upstream,
		cacheTTL:        cacheTTL,
		upstreamTimeout: upstreamTimeout,
		metrics:         config.Metrics,
	}
}

// Embed returns one vector per text.
// Flow: check cache for every text -> on any miss, embed all texts in a single
// upstream call -> cache each vector -> return.
// The shared upstream call is detached from any one caller's cancellation;
// each caller stops waiting when its own ctx ends.
func (s *EmbeddingService) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	vectors := make([][]float32, len(texts))
	complete := true
	for i, text := range texts {
		keys[i] = generateCacheKey(model, text)
		if !complete {
			continue
		}
		vec, err := s.getFromCache(ctx, keys[i])
		if err != nil {
			complete = false
			continue
		}
		vectors[i] = vec
	}

	if complete {
		s.metrics.IncCacheHit()
		return vectors, nil
	}
	s.metrics.IncCacheMiss()

	flightKey := strings.Join(keys, "|")
	ch := s.group.DoChan(flightKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.upstreamTimeout)
		defer cancel()

		fresh, err := s.upstream.Embed(ctx, model, texts)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrMalformedEmbedding, len(fresh), len(texts))
		}

		for i, vec := range fresh {
			if len(vec) == 0 {
				continue
			}
			if err := s.setInCache(ctx, keys[i], vec); err != nil {
				// Caching is best effort
				log.Warn("[CACHE] failed to store embedding", "key", keys[i], "err", err)
			}
		}
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([][]float32), nil
	}
}

// generateCacheKey creates a cache key for a text embedded with model.
// Format: "embedding:{model}:{sha256(text)}"
func generateCacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", normalizeModelForCacheKey(model), hex.EncodeToString(sum[:]))
}

// normalizeModelForCacheKey trims the model name and keeps its case; "" becomes "default"
func normalizeModelForCacheKey(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "default"
	}
	return model
}

// getFromCache retrieves a vector from cache
func (s *EmbeddingService) getFromCache(ctx context.Context, key string) ([]float32, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	vec, ok := decodeVector(value)
	if !ok || len(vec) == 0 {
		return nil, domain.ErrCacheMiss
	}
	return vec, nil
}

// setInCache stores a vector in cache
func (s *EmbeddingService) setInCache(ctx context.Context, key string, vec []float32) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, key, vec, s.cacheTTL)
}

// decodeVector converts a cached value back into a vector.
// Caches hand values back JSON round-tripped, so []interface{} of float64 is the common case.
func decodeVector(value interface{}) ([]float32, bool) {
	switch v := value.(type) {
	case []float32:
		return v, true
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, true
	case []interface{}:
		out := make([]float32, len(v))
		for i, elem := range v {
			f, ok := elem.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	case string:
		var out []float32
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}
