package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/lostfound/backend/internal/domain"
)

// AvailabilityChecker reports whether the embedding backend answers
type AvailabilityChecker interface {
	Available(ctx context.Context) bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher  domain.Matcher
	embedder AvailabilityChecker
}

// NewHandler creates a new HTTP handler. Either dependency may be nil.
func NewHandler(matcher domain.Matcher, embedder AvailabilityChecker) *Handler {
	return &Handler{
		matcher:  matcher,
		embedder: embedder,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	embedding := "not configured"
	if h.embedder != nil {
		embedding = "unavailable"
		if h.embedder.Available(c.Request.Context()) {
			embedding = "available"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "lostfound-backend",
		"version":   "1.0.0",
		"embedding": embedding,
	})
}

// FindMatches ranks the candidates in the request body against its query
func (h *Handler) FindMatches(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "matching service not configured",
		})
		return
	}

	var req domain.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrInvalidRequest.Error() + ": " + err.Error(),
		})
		return
	}

	candidates := req.Candidates
	if candidates == nil {
		candidates = []domain.Item{}
	}

	matches, err := h.matcher.FindMatches(c.Request.Context(), *req.Query, candidates)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			status = http.StatusServiceUnavailable
		}
		log.Error("[HTTP] ranking failed", "query", req.Query.ID, "candidates", len(candidates), "err", err, "request_id", GetRequestID(c))
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}
