package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/internal/domain"
	"golang.org/x/time/rate"
)

// Kind selects the wire format spoken by the embedding backend
type Kind string

const (
	// KindOpenAI is the OpenAI-compatible POST /v1/embeddings API
	KindOpenAI Kind = "openai"
	// KindOllama is the Ollama POST /api/embed API
	KindOllama Kind = "ollama"
)

const (
	maxAttempts     = 3
	maxResponseSize = 10 << 20
)

// Options configures a Client
type Options struct {
	Kind         Kind
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	RateLimit    float64 // requests per second
	Burst        int
}

// Client handles communication with an embedding backend
type Client struct {
	httpClient   *http.Client
	kind         Kind
	apiKey       string
	baseURL      string
	defaultModel string
	rateLimiter  *rate.Limiter
	debug        bool
}

// NewClient creates a new embedding API client
func NewClient(opts Options) *Client {
	if opts.Kind == "" {
		opts.Kind = KindOllama
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		kind:         opts.Kind,
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		defaultModel: opts.DefaultModel,
		rateLimiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
	}
}

// SetDebug enables or disables request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before retrying after attempt (1-based)
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// Embed returns one vector per text, in input order, using model
// (or the client's default model when model is empty).
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if model == "" {
		model = c.defaultModel
	}

	endpoint, body, err := c.buildRequest(model, texts)
	if err != nil {
		return nil, err
	}

	if c.debug {
		log.Debug("[EMBED] request", "kind", c.kind, "model", model, "texts", len(texts))
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		status, respBody, err := c.doRequest(ctx, endpoint, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: request cancelled: %v", domain.ErrProviderFailure, ctx.Err())
			}
			log.Warn("[EMBED] request error", "attempt", attempt, "err", err)
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, ctx.Err())
			}
			continue
		}

		if status != http.StatusOK {
			log.Warn("[EMBED] API error", "attempt", attempt, "status", status, "body", truncate(string(respBody), 200))
			if !retryableStatus(status) {
				return nil, fmt.Errorf("%w: status %d", domain.ErrProviderFailure, status)
			}
			if status == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("%w: %w: status %d", domain.ErrProviderFailure, domain.ErrRateLimited, status)
			} else {
				lastErr = fmt.Errorf("%w: status %d", domain.ErrProviderFailure, status)
			}
			if !c.sleep(ctx, attempt) {
				return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, ctx.Err())
			}
			continue
		}

		vectors, err := c.decodeResponse(respBody, len(texts))
		if err != nil {
			log.Warn("[EMBED] decode error", "err", err)
			return nil, err
		}

		if c.debug {
			log.Debug("[EMBED] response", "model", model, "vectors", len(vectors), "dims", len(vectors[0]))
		}
		return vectors, nil
	}

	log.Warn("[EMBED] all retries failed", "model", model)
	return nil, lastErr
}

// Available reports whether the backend answers. For Ollama it also checks
// that the default model is installed.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	switch c.kind {
	case KindOpenAI:
		if c.apiKey == "" {
			return false
		}
		status, _, err := c.doGet(ctx, c.baseURL+"/v1/models")
		return err == nil && status == http.StatusOK
	default:
		status, body, err := c.doGet(ctx, c.baseURL+"/api/tags")
		if err != nil || status != http.StatusOK {
			return false
		}
		return ollamaHasModel(body, c.defaultModel)
	}
}

// buildRequest returns the endpoint and JSON body for the configured wire format
func (c *Client) buildRequest(model string, texts []string) (string, []byte, error) {
	var (
		endpoint string
		payload  interface{}
	)
	switch c.kind {
	case KindOpenAI:
		endpoint = c.baseURL + "/v1/embeddings"
		payload = openAIEmbedRequest{Model: model, Input: texts}
	case KindOllama:
		endpoint = c.baseURL + "/api/embed"
		payload = ollamaEmbedRequest{Model: model, Input: texts}
	default:
		return "", nil, fmt.Errorf("%w: unsupported embedding backend %q", domain.ErrInvalidConfig, c.kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return endpoint, body, nil
}

// decodeResponse parses the body for the configured wire format
func (c *Client) decodeResponse(body []byte, want int) ([][]float32, error) {
	switch c.kind {
	case KindOpenAI:
		var resp openAIEmbedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrMalformedEmbedding, err)
		}
		return mapOpenAIResponse(&resp, want)
	default:
		var resp ollamaEmbedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrMalformedEmbedding, err)
		}
		return mapOllamaResponse(&resp, want)
	}
}

// doRequest executes an HTTP POST with proper headers and returns status and body
func (c *Client) doRequest(ctx context.Context, reqURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LostFound/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.do(req)
}

// doGet executes an HTTP GET and returns status and body
func (c *Client) doGet(ctx context.Context, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "LostFound/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// sleep waits out the backoff for attempt unless it was the last one.
// Returns false if ctx ended first.
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= maxAttempts {
		return true
	}
	timer := time.NewTimer(exponentialBackoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retryableStatus reports whether a non-200 status is worth retrying
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
