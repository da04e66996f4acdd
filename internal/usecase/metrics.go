package usecase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRankRequestsTotal      = "lostfound_rank_requests_total"
	MetricRankErrorsTotal        = "lostfound_rank_errors_total"
	MetricRankDuration           = "lostfound_rank_duration_seconds"
	MetricCandidatesScoredTotal  = "lostfound_candidates_scored_total"
	MetricProviderCallsTotal     = "lostfound_embedding_provider_calls_total"
	MetricProviderFailuresTotal  = "lostfound_embedding_provider_failures_total"
	MetricEmbeddingCacheRequests = "lostfound_embedding_cache_requests_total"
)

// Metrics contains Prometheus metrics for the matching engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	rankRequests     prometheus.Counter
	rankErrors       prometheus.Counter
	rankDuration     prometheus.Histogram
	candidatesScored prometheus.Counter
	providerCalls    *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	cacheRequests    *prometheus.CounterVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		rankRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankRequestsTotal,
			Help: "Total number of ranking requests",
		}),
		rankErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankErrorsTotal,
			Help: "Total number of ranking requests that returned an error",
		}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of ranking duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		candidatesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCandidatesScoredTotal,
			Help: "Total number of candidates scored against a query item",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricProviderCallsTotal,
			Help: "Total number of embedding provider calls issued by the similarity function",
		}, []string{"model"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricProviderFailuresTotal,
			Help: "Total number of similarity computations degraded to 0 by a provider failure",
		}, []string{"model"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEmbeddingCacheRequests,
			Help: "Embedding cache lookups by result",
		}, []string{"result"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.rankRequests,
		m.rankErrors,
		m.rankDuration,
		m.candidatesScored,
		m.providerCalls,
		m.providerFailures,
		m.cacheRequests,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records one ranking call
func (m *Metrics) ObserveRank(candidates int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.rankRequests.Inc()
	m.rankDuration.Observe(d.Seconds())
	m.candidatesScored.Add(float64(candidates))
	if err != nil {
		m.rankErrors.Inc()
	}
}

// IncProviderCalls counts a provider call for model
func (m *Metrics) IncProviderCalls(model string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(modelLabel(model)).Inc()
}

// IncProviderFailures counts a degraded similarity for model
func (m *Metrics) IncProviderFailures(model string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(modelLabel(model)).Inc()
}

// IncCacheHit counts an embedding cache hit
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues("hit").Inc()
}

// IncCacheMiss counts an embedding cache miss
func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues("miss").Inc()
}

func modelLabel(model string) string {
	if model == "" {
		return "default"
	}
	return model
}
