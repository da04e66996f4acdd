package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// EmbeddingProvider turns texts into vectors with the named model.
// On success the result has one vector per input text, in input order.
// An empty model selects the provider's default model.
type EmbeddingProvider interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Matcher ranks a candidate pool against a query item
type Matcher interface {
	FindMatches(ctx context.Context, query Item, candidates []Item) ([]MatchResult, error)
}
