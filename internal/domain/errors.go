package domain

import "errors"

var (
	// ErrInvalidConfig is returned when engine configuration is unusable
	ErrInvalidConfig = errors.New("invalid matching configuration")

	// ErrInvalidWeights is returned when the field weight table does not sum to 100
	ErrInvalidWeights = errors.New("invalid field weights")

	// ErrUnknownField is returned when a weight table names a field that is not scored
	ErrUnknownField = errors.New("unknown field in weight table")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrProviderFailure is returned when the embedding provider request fails
	ErrProviderFailure = errors.New("embedding provider request failed")

	// ErrMalformedEmbedding is returned when the provider answers with the wrong shape
	ErrMalformedEmbedding = errors.New("malformed embedding response")

	// ErrRateLimited is returned when the provider keeps rejecting us with 429
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
