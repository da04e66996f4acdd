package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Engine defaults
const (
	DefaultNameFloor       = 0.1
	DefaultResultCap       = 3
	DefaultMaxConcurrency  = 4
	DefaultProviderTimeout = 10 * time.Second
)

// MatchConfig holds configuration for the matching service.
// Zero values select the defaults. NameFloor is a pointer because 0 is a
// valid floor; nil selects DefaultNameFloor.
type MatchConfig struct {
	Weights            domain.FieldWeights
	NameFloor          *float64
	DateDecay          domain.DateDecay
	ResultCap          int
	Models             []string
	ProviderTimeout    time.Duration
	MaxConcurrency     int
	EnableDebugLogging bool
	Metrics            *Metrics
}

// MatchingService ranks candidate reports against a query report
type MatchingService struct {
	similarity         *SemanticSimilarity
	weights            domain.FieldWeights
	nameFloor          float64
	dateDecay          domain.DateDecay
	resultCap          int
	maxConcurrency     int
	enableDebugLogging bool
	metrics            *Metrics
}

// NewMatchingService creates a matching service over provider.
// Returns an error wrapping domain.ErrInvalidConfig or domain.ErrInvalidWeights
// when the configuration is unusable.
func NewMatchingService(provider domain.EmbeddingProvider, config MatchConfig) (*MatchingService, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	similarity := NewSemanticSimilarity(provider, config.Models, config.ProviderTimeout, config.Metrics)
	similarity.debugLogging = config.EnableDebugLogging

	return &MatchingService{
		similarity:         similarity,
		weights:            config.Weights,
		nameFloor:          *config.NameFloor,
		dateDecay:          config.DateDecay,
		resultCap:          config.ResultCap,
		maxConcurrency:     config.MaxConcurrency,
		enableDebugLogging: config.EnableDebugLogging,
		metrics:            config.Metrics,
	}, nil
}

// withDefaults fills zero values and validates the rest
func (c MatchConfig) withDefaults() (MatchConfig, error) {
	if c.Weights == (domain.FieldWeights{}) {
		c.Weights = domain.DefaultFieldWeights()
	}
	if err := c.Weights.Validate(); err != nil {
		return c, err
	}

	floor := DefaultNameFloor
	if c.NameFloor != nil {
		floor = *c.NameFloor
	}
	if floor < 0 || floor > 1 || math.IsNaN(floor) {
		return c, fmt.Errorf("%w: name floor must be within [0,1], got %v", domain.ErrInvalidConfig, floor)
	}
	c.NameFloor = &floor

	if c.DateDecay == nil {
		c.DateDecay = domain.DefaultDateDecay()
	}
	if err := c.DateDecay.Validate(); err != nil {
		return c, err
	}

	if c.ResultCap == 0 {
		c.ResultCap = DefaultResultCap
	}
	if c.ResultCap < 0 {
		return c, fmt.Errorf("%w: result cap must be positive, got %d", domain.ErrInvalidConfig, c.ResultCap)
	}

	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxConcurrency < 0 {
		return c, fmt.Errorf("%w: max concurrency must be positive, got %d", domain.ErrInvalidConfig, c.MaxConcurrency)
	}

	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.ProviderTimeout < 0 {
		return c, fmt.Errorf("%w: provider timeout must be positive, got %s", domain.ErrInvalidConfig, c.ProviderTimeout)
	}

	return c, nil
}

// Weights returns the field weight table in use
func (s *MatchingService) Weights() domain.FieldWeights {
	return s.weights
}

// NameFloor returns the item name noise floor in use
func (s *MatchingService) NameFloor() float64 {
	return s.nameFloor
}

// FindMatches scores every candidate against query and returns at most
// ResultCap results, highest score first. Equal scores keep pool order.
// An empty pool yields an empty, non-nil slice. Provider failures only lower
// scores; the only error is the caller's context being cancelled or expiring.
func (s *MatchingService) FindMatches(
	ctx context.Context,
	query domain.Item,
	candidates []domain.Item,
) (matches []domain.MatchResult, err error) {
	start := time.Now()
	ctx, endSpan := startSpan(ctx, "matching.rank",
		attribute.String("query.id", query.ID),
		attribute.Int("candidates", len(candidates)),
	)
	defer func() {
		endSpan(err)
		s.metrics.ObserveRank(len(candidates), time.Since(start), err)
	}()

	if len(candidates) == 0 {
		return []domain.MatchResult{}, nil
	}

	if s.enableDebugLogging {
		log.Debug("[MATCH] ranking", "query", query.ID, "candidates", len(candidates))
	}

	results := make([]domain.MatchResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.ScoreCandidate(ctx, query, candidates[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ranking aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranking aborted: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.resultCap {
		results = results[:s.resultCap]
	}

	if s.enableDebugLogging && len(results) > 0 {
		log.Debug("[MATCH] best match", "query", query.ID, "id", results[0].ID, "score", results[0].Score)
	}

	return results, nil
}

// ScoreCandidate computes the weighted score of one candidate against query.
// The score is exactly the sum of the breakdown.
func (s *MatchingService) ScoreCandidate(ctx context.Context, query, candidate domain.Item) domain.MatchResult {
	var breakdown domain.Breakdown
	for _, field := range domain.Fields {
		raw := s.scoreField(ctx, field, query, candidate)
		breakdown.Set(field, raw*s.weights.Get(field))
	}

	result := domain.MatchResult{
		ID:        candidate.ID,
		Score:     breakdown.Sum(),
		Breakdown: breakdown,
	}

	if s.enableDebugLogging {
		log.Debug("[MATCH] candidate scored",
			"id", candidate.ID,
			"score", result.Score,
			"category", breakdown.Category,
			"itemName", breakdown.ItemName,
			"location", breakdown.Location,
			"date", breakdown.Date,
			"description", breakdown.Description,
		)
	}

	return result
}
