package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lostfound/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVectors gives every text used below a fixed 2-d embedding
func testVectors() map[string][]float32 {
	return map[string][]float32{
		"wallet":        {1, 0},
		"billfold":      {1, 1.7320508},     // cos 0.5 with wallet
		"purse":         {0.05, 0.99874922}, // cos 0.05 with wallet
		"umbrella":      {0, 1},
		"Library":       {0, 1},
		"Main Library":  {0.6, 0.8},
		"Gym":           {1, 0},
		"black leather": {1, 1},
		"brown leather": {1, 0.8},
	}
}

func newTestService(t *testing.T, provider domain.EmbeddingProvider, config MatchConfig) *MatchingService {
	t.Helper()
	svc, err := NewMatchingService(provider, config)
	require.NoError(t, err)
	return svc
}

func resultIDs(results []domain.MatchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func itemIDs(items []domain.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestNewMatchingService(t *testing.T) {
	t.Run("zero config selects defaults", func(t *testing.T) {
		svc := newTestService(t, nil, MatchConfig{})

		assert.Equal(t, domain.DefaultFieldWeights(), svc.Weights())
		assert.Equal(t, DefaultNameFloor, svc.nameFloor)
		assert.Equal(t, domain.DefaultDateDecay(), svc.dateDecay)
		assert.Equal(t, DefaultResultCap, svc.resultCap)
		assert.Equal(t, DefaultMaxConcurrency, svc.maxConcurrency)
		assert.Equal(t, DefaultProviderTimeout, svc.similarity.timeout)
		assert.Equal(t, []string{""}, svc.similarity.models)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		weights := domain.FieldWeights{Category: 50, Date: 50}
		svc := newTestService(t, nil, MatchConfig{
			Weights:         weights,
			NameFloor:       floatPtr(0.3),
			DateDecay:       domain.DateDecay{1, 0.5},
			ResultCap:       5,
			MaxConcurrency:  1,
			ProviderTimeout: time.Second,
			Models:          []string{"a", "b"},
		})

		assert.Equal(t, weights, svc.Weights())
		assert.Equal(t, 0.3, svc.nameFloor)
		assert.Equal(t, 5, svc.resultCap)
		assert.Equal(t, 1, svc.maxConcurrency)
		assert.Equal(t, []string{"a", "b"}, svc.similarity.models)
	})

	tests := []struct {
		name    string
		config  MatchConfig
		wantErr error
	}{
		{
			name:    "weights summing to 90",
			config:  MatchConfig{Weights: domain.FieldWeights{Category: 10, ItemName: 20, Location: 20, Date: 10, Description: 30}},
			wantErr: domain.ErrInvalidWeights,
		},
		{
			name:    "negative weight",
			config:  MatchConfig{Weights: domain.FieldWeights{Category: -10, Description: 110}},
			wantErr: domain.ErrInvalidWeights,
		},
		{
			name:    "name floor above 1",
			config:  MatchConfig{NameFloor: floatPtr(2)},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "negative name floor",
			config:  MatchConfig{NameFloor: floatPtr(-0.1)},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "increasing date decay",
			config:  MatchConfig{DateDecay: domain.DateDecay{0.2, 0.9}},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "empty date decay",
			config:  MatchConfig{DateDecay: domain.DateDecay{}},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "negative result cap",
			config:  MatchConfig{ResultCap: -1},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "negative concurrency",
			config:  MatchConfig{MaxConcurrency: -1},
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "negative provider timeout",
			config:  MatchConfig{ProviderTimeout: -time.Second},
			wantErr: domain.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewMatchingService(nil, tt.config)
			assert.Nil(t, svc)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScoreCandidate(t *testing.T) {
	ctx := context.Background()

	t.Run("identical reports score the full weight", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		query := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		candidate := withDescription(newItem("c", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")

		result := svc.ScoreCandidate(ctx, query, candidate)

		assert.Equal(t, "c", result.ID)
		assert.InDelta(t, 100.0, result.Score, 1e-6)
		assert.Equal(t, 10.0, result.Breakdown.Category)
		assert.Equal(t, 10.0, result.Breakdown.Date)
		assert.InDelta(t, 20.0, result.Breakdown.ItemName, 1e-6)
		assert.InDelta(t, 20.0, result.Breakdown.Location, 1e-6)
		assert.InDelta(t, 40.0, result.Breakdown.Description, 1e-6)
	})

	t.Run("score is the breakdown sum and each field stays within its weight", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		query := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		pool := []domain.Item{
			withDescription(newItem("1", "Accessories", "billfold", "Main Library", "2024-03-19"), "brown leather"),
			newItem("2", "Bags", "purse", "Gym", "2024-03-25"),
			newItem("3", "Accessories", "umbrella", "Library", "not a date"),
			newItem("4", "Accessories", "", "", ""),
		}

		weights := svc.Weights()
		for _, candidate := range pool {
			result := svc.ScoreCandidate(ctx, query, candidate)
			assert.Equal(t, result.Breakdown.Sum(), result.Score, "candidate %s", candidate.ID)
			assert.GreaterOrEqual(t, result.Score, 0.0)
			assert.LessOrEqual(t, result.Score, 100.0)
			for _, field := range domain.Fields {
				v := result.Breakdown.Get(field)
				assert.GreaterOrEqual(t, v, 0.0, "candidate %s field %s", candidate.ID, field)
				assert.LessOrEqual(t, v, weights.Get(field), "candidate %s field %s", candidate.ID, field)
			}
		}
	})

	t.Run("category and date scores are symmetric", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		a := newItem("a", "Accessories", "wallet", "Library", "2024-03-18")
		b := newItem("b", "Accessories", "billfold", "Gym", "2024-03-21")

		ab := svc.ScoreCandidate(ctx, a, b)
		ba := svc.ScoreCandidate(ctx, b, a)

		assert.Equal(t, ab.Breakdown.Category, ba.Breakdown.Category)
		assert.Equal(t, ab.Breakdown.Date, ba.Breakdown.Date)
		assert.InDelta(t, ab.Breakdown.ItemName, ba.Breakdown.ItemName, 1e-9)
		assert.InDelta(t, ab.Score, ba.Score, 1e-9)
	})

	t.Run("date decay steps", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{})
		query := newItem("q", "Keys", "keys", "Gym", "2024-03-18")

		tests := []struct {
			date string
			want float64
		}{
			{"2024-03-18", 10.0},
			{"2024-03-19", 8.0},
			{"2024-03-17", 8.0},
			{"2024-03-20", 6.0},
			{"2024-03-21", 4.0},
			{"2024-03-22", 2.0},
			{"2024-03-23", 0.0},
			{"2023-03-18", 0.0},
			{"", 0.0},
			{"yesterday", 0.0},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("date %q", tt.date), func(t *testing.T) {
				candidate := newItem("c", "Keys", "keys", "Gym", tt.date)
				result := svc.ScoreCandidate(ctx, query, candidate)
				assert.InDelta(t, tt.want, result.Breakdown.Date, 1e-9)
				assert.Equal(t, 10.0, result.Breakdown.Category)
			})
		}
	})

	t.Run("category requires an exact case-sensitive match", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		query := newItem("q", "Gadgets", "wallet", "Library", "2024-03-18")

		assert.Equal(t, 0.0, svc.ScoreCandidate(ctx, query, newItem("c", "gadgets", "wallet", "Library", "2024-03-18")).Breakdown.Category)
		assert.Equal(t, 0.0, svc.ScoreCandidate(ctx, query, newItem("c", "Gadgets ", "wallet", "Library", "2024-03-18")).Breakdown.Category)
		assert.Equal(t, 10.0, svc.ScoreCandidate(ctx, query, newItem("c", "Gadgets", "wallet", "Library", "2024-03-18")).Breakdown.Category)
	})

	t.Run("name similarity under the floor contributes nothing", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		query := newItem("q", "Accessories", "wallet", "Library", "2024-03-18")

		below := svc.ScoreCandidate(ctx, query, newItem("c1", "Accessories", "purse", "Library", "2024-03-18"))
		assert.Equal(t, 0.0, below.Breakdown.ItemName)

		above := svc.ScoreCandidate(ctx, query, newItem("c2", "Accessories", "billfold", "Library", "2024-03-18"))
		assert.InDelta(t, 10.0, above.Breakdown.ItemName, 1e-5)
	})

	t.Run("zero name floor keeps weak name similarity", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{NameFloor: floatPtr(0)})
		assert.Equal(t, 0.0, svc.nameFloor)

		query := newItem("q", "Accessories", "wallet", "Library", "2024-03-18")
		result := svc.ScoreCandidate(ctx, query, newItem("c", "Accessories", "purse", "Library", "2024-03-18"))
		assert.InDelta(t, 1.0, result.Breakdown.ItemName, 1e-5)
	})

	t.Run("location has no floor", func(t *testing.T) {
		vectors := testVectors()
		vectors["Cafe"] = []float32{0.05, 0.99874922}
		svc := newTestService(t, NewMockEmbeddingProvider(vectors), MatchConfig{})
		query := newItem("q", "Accessories", "wallet", "Gym", "2024-03-18")

		result := svc.ScoreCandidate(ctx, query, newItem("c", "Accessories", "wallet", "Cafe", "2024-03-18"))
		assert.InDelta(t, 1.0, result.Breakdown.Location, 1e-5)
	})

	t.Run("description is excluded when either side lacks one", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(testVectors())
		svc := newTestService(t, provider, MatchConfig{})
		query := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		blank := withDescription(newItem("c2", "Accessories", "wallet", "Library", "2024-03-18"), "   ")

		without := svc.ScoreCandidate(ctx, query, newItem("c1", "Accessories", "wallet", "Library", "2024-03-18"))
		assert.Equal(t, 0.0, without.Breakdown.Description)
		assert.InDelta(t, 60.0, without.Score, 1e-6)

		reversed := svc.ScoreCandidate(ctx, newItem("q2", "Accessories", "wallet", "Library", "2024-03-18"), withDescription(newItem("c3", "Accessories", "wallet", "Library", "2024-03-18"), "black leather"))
		assert.Equal(t, 0.0, reversed.Breakdown.Description)

		assert.Equal(t, 0.0, svc.ScoreCandidate(ctx, query, blank).Breakdown.Description)
		assert.False(t, provider.sawText("black leather"), "description must not reach the provider")
	})

	t.Run("provider failure zeroes only the semantic fields", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{})
		query := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		candidate := withDescription(newItem("c", "Accessories", "wallet", "Library", "2024-03-19"), "black leather")

		result := svc.ScoreCandidate(ctx, query, candidate)

		assert.Equal(t, domain.Breakdown{Category: 10, Date: 8}, result.Breakdown)
		assert.Equal(t, 18.0, result.Score)
	})
}

func TestFindMatches(t *testing.T) {
	ctx := context.Background()
	query := newItem("q", "Keys", "keys", "Gym", "2024-03-18")

	t.Run("empty pool returns an empty list", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		svc := newTestService(t, provider, MatchConfig{})

		results, err := svc.FindMatches(ctx, query, nil)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
		assert.Equal(t, 0, provider.callCount())
	})

	t.Run("returns the top three in descending order", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{
			Weights: domain.FieldWeights{Category: 50, Date: 50},
		})

		pool := []domain.Item{
			newItem("no-cat-0d", "Bags", "keys", "Gym", "2024-03-18"), // 50
			newItem("cat-2d", "Keys", "keys", "Gym", "2024-03-20"),    // 80
			newItem("no-cat-3d", "Bags", "keys", "Gym", "2024-03-21"), // 20
			newItem("cat-0d", "Keys", "keys", "Gym", "2024-03-18"),    // 100
			newItem("cat-1d", "Keys", "keys", "Gym", "2024-03-17"),    // 90
		}

		results, err := svc.FindMatches(ctx, query, pool)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []string{"cat-0d", "cat-1d", "cat-2d"}, resultIDs(results))
		assert.InDelta(t, 100.0, results[0].Score, 1e-9)
		assert.InDelta(t, 90.0, results[1].Score, 1e-9)
		assert.InDelta(t, 80.0, results[2].Score, 1e-9)
	})

	t.Run("small pools are returned whole", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{})

		results, err := svc.FindMatches(ctx, query, []domain.Item{
			newItem("a", "Bags", "x", "y", "2024-03-18"),
			newItem("b", "Keys", "x", "y", "2024-03-18"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, resultIDs(results))
	})

	t.Run("ties keep pool order", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{ResultCap: 10})

		pool := make([]domain.Item, 6)
		for i := range pool {
			pool[i] = newItem(fmt.Sprintf("item-%d", i), "Keys", "keys", "Gym", "2024-03-18")
		}

		results, err := svc.FindMatches(ctx, query, pool)
		require.NoError(t, err)
		assert.Equal(t, itemIDs(pool), resultIDs(results))
	})

	t.Run("provider failure still ranks the pool", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.err = errProviderDown
		svc := newTestService(t, provider, MatchConfig{})
		q := withDescription(query, "silver keyring")

		pool := make([]domain.Item, 5)
		for i := range pool {
			pool[i] = withDescription(newItem(fmt.Sprintf("c%d", i), "Keys", "keys", "Gym", "2024-03-18"), "silver keyring")
		}

		results, err := svc.FindMatches(ctx, q, pool)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, r := range results {
			assert.Equal(t, 0.0, r.Breakdown.ItemName)
			assert.Equal(t, 0.0, r.Breakdown.Location)
			assert.Equal(t, 0.0, r.Breakdown.Description)
			assert.Equal(t, 20.0, r.Score)
		}
		assert.Positive(t, provider.callCount())
	})

	t.Run("repeated calls produce identical output", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		q := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		pool := []domain.Item{
			withDescription(newItem("1", "Accessories", "billfold", "Main Library", "2024-03-19"), "brown leather"),
			newItem("2", "Bags", "purse", "Gym", "2024-03-25"),
			newItem("3", "Accessories", "umbrella", "Library", "2024-03-18"),
			newItem("4", "Accessories", "wallet", "Gym", "2024-03-20"),
		}

		first, err := svc.FindMatches(ctx, q, pool)
		require.NoError(t, err)
		second, err := svc.FindMatches(ctx, q, pool)
		require.NoError(t, err)

		firstJSON, err := json.Marshal(first)
		require.NoError(t, err)
		secondJSON, err := json.Marshal(second)
		require.NoError(t, err)
		assert.JSONEq(t, string(firstJSON), string(secondJSON))
	})

	t.Run("output does not depend on concurrency", func(t *testing.T) {
		q := withDescription(newItem("q", "Accessories", "wallet", "Library", "2024-03-18"), "black leather")
		pool := []domain.Item{
			withDescription(newItem("1", "Accessories", "billfold", "Main Library", "2024-03-19"), "brown leather"),
			newItem("2", "Bags", "purse", "Gym", "2024-03-25"),
			newItem("3", "Accessories", "umbrella", "Library", "2024-03-18"),
			newItem("4", "Accessories", "wallet", "Gym", "2024-03-20"),
			newItem("5", "Accessories", "wallet", "Library", "2024-03-18"),
		}

		serial := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{MaxConcurrency: 1, ResultCap: 5})
		parallel := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{MaxConcurrency: 8, ResultCap: 5})

		want, err := serial.FindMatches(ctx, q, pool)
		require.NoError(t, err)
		got, err := parallel.FindMatches(ctx, q, pool)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("cancelled context aborts ranking", func(t *testing.T) {
		svc := newTestService(t, NewMockEmbeddingProvider(testVectors()), MatchConfig{})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		results, err := svc.FindMatches(cancelled, query, []domain.Item{
			newItem("a", "Keys", "keys", "Gym", "2024-03-18"),
		})
		assert.Nil(t, results)
		assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	})

	t.Run("provider timeout degrades to zero instead of failing", func(t *testing.T) {
		provider := NewMockEmbeddingProvider(nil)
		provider.block = true
		svc := newTestService(t, provider, MatchConfig{ProviderTimeout: 20 * time.Millisecond})

		results, err := svc.FindMatches(ctx, query, []domain.Item{
			newItem("a", "Keys", "keys", "Gym", "2024-03-18"),
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 20.0, results[0].Score)
	})
}
