package embedding

import (
	"encoding/json"
	"fmt"

	"github.com/lostfound/backend/internal/domain"
)

// openAIEmbedRequest is the body for POST /v1/embeddings
type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// openAIEmbedResponse is the response from POST /v1/embeddings
type openAIEmbedResponse struct {
	Data []openAIEmbedding `json:"data"`
}

type openAIEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// ollamaEmbedRequest is the body for POST /api/embed
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from POST /api/embed
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaTagsResponse is the response from GET /api/tags
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// mapOpenAIResponse places each embedding at its reported index and checks
// that exactly want non-empty vectors came back.
func mapOpenAIResponse(resp *openAIEmbedResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("%w: got %d embeddings, want %d", domain.ErrMalformedEmbedding, len(resp.Data), want)
	}

	vectors := make([][]float32, want)
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= want {
			return nil, fmt.Errorf("%w: index %d out of range", domain.ErrMalformedEmbedding, item.Index)
		}
		if vectors[item.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", domain.ErrMalformedEmbedding, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	if err := checkVectors(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// mapOllamaResponse checks that exactly want non-empty vectors came back
func mapOllamaResponse(resp *ollamaEmbedResponse, want int) ([][]float32, error) {
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("%w: got %d embeddings, want %d", domain.ErrMalformedEmbedding, len(resp.Embeddings), want)
	}
	if err := checkVectors(resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func checkVectors(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding at index %d", domain.ErrMalformedEmbedding, i)
		}
	}
	return nil
}

// ollamaHasModel reports whether the tags listing contains model,
// accepting the implicit ":latest" tag.
func ollamaHasModel(body []byte, model string) bool {
	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == model || m.Name == model+":latest" {
			return true
		}
	}
	return false
}
