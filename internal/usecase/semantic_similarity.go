package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// SemanticSimilarity scores two texts by the cosine of their embeddings.
// It never returns an error: any provider failure scores 0 for that model.
type SemanticSimilarity struct {
	provider     domain.EmbeddingProvider
	models       []string
	timeout      time.Duration
	metrics      *Metrics
	debugLogging bool
}

// NewSemanticSimilarity creates a similarity function over provider.
// With several models the per-model cosines are averaged; an empty list uses
// the provider's default model.
func NewSemanticSimilarity(provider domain.EmbeddingProvider, models []string, timeout time.Duration, metrics *Metrics) *SemanticSimilarity {
	if len(models) == 0 {
		models = []string{""}
	}
	return &SemanticSimilarity{
		provider: provider,
		models:   models,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Similarity returns a value in [0,1]. Empty input short-circuits to 0
// without calling the provider.
func (s *SemanticSimilarity) Similarity(ctx context.Context, a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}

	var sum float64
	var succeeded int
	for _, model := range s.models {
		sim, err := s.modelSimilarity(ctx, model, a, b)
		if err != nil {
			s.metrics.IncProviderFailures(model)
			if s.debugLogging {
				log.Debug("[EMBED] similarity degraded to 0", "model", model, "err", err)
			}
			continue
		}
		sum += sim
		succeeded++
	}

	if succeeded == 0 {
		return 0
	}
	return sum / float64(succeeded)
}

// modelSimilarity embeds both texts in one provider call and returns their clamped cosine
func (s *SemanticSimilarity) modelSimilarity(ctx context.Context, model, a, b string) (sim float64, err error) {
	ctx, endSpan := startSpan(ctx, "embedding.similarity", attribute.String("embedding.model", model))
	defer func() { endSpan(err) }()

	if s.provider == nil {
		return 0, fmt.Errorf("%w: no provider configured", domain.ErrProviderFailure)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.metrics.IncProviderCalls(model)
	vectors, err := s.provider.Embed(callCtx, model, []string{a, b})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if len(vectors) != 2 {
		return 0, fmt.Errorf("%w: got %d vectors, want 2", domain.ErrMalformedEmbedding, len(vectors))
	}

	cos, ok := cosineSimilarity(vectors[0], vectors[1])
	if !ok {
		return 0, fmt.Errorf("%w: vectors of length %d and %d are not comparable",
			domain.ErrMalformedEmbedding, len(vectors[0]), len(vectors[1]))
	}
	return clampUnit(cos), nil
}

// cosineSimilarity computes dot(a,b) / (|a| * |b|), accumulating in float64.
// Returns false when the vectors differ in length, are empty or have zero magnitude.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cos) || math.IsInf(cos, 0) {
		return 0, false
	}
	return cos, true
}

// clampUnit limits v to [0,1]; negative cosines count as unrelated
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
