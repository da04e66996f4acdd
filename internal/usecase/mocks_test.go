package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lostfound/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string]interface{}
	getError error
	setError error
	gets     int
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheRepository) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

var errProviderDown = errors.New("provider down")

// MockEmbeddingProvider returns fixed vectors per text. Texts it does not
// know fail the whole call, which the engine treats as a provider failure.
type MockEmbeddingProvider struct {
	mu sync.Mutex

	vectors      map[string][]float32
	modelVectors map[string]map[string][]float32 // overrides vectors for a model
	failModels   map[string]bool
	err          error         // every call fails with err
	block        bool          // wait for the context to end
	gate         chan struct{} // wait for gate to close before answering
	delay        time.Duration // sleep before answering
	result       [][]float32   // returned verbatim when set

	calls  int
	models []string
	texts  []string
}

func NewMockEmbeddingProvider(vectors map[string][]float32) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{vectors: vectors}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.models = append(m.models, model)
	m.texts = append(m.texts, texts...)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.failModels[model] {
		return nil, fmt.Errorf("model %q: %w", model, errProviderDown)
	}
	if m.result != nil {
		return m.result, nil
	}

	table := m.vectors
	if mv, ok := m.modelVectors[model]; ok {
		table = mv
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := table[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockEmbeddingProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbeddingProvider) sawText(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.texts {
		if t == text {
			return true
		}
	}
	return false
}

// newItem builds a report without a description
func newItem(id, category, name, location, date string) domain.Item {
	return domain.Item{
		ID:       id,
		Category: category,
		ItemName: name,
		Location: location,
		Date:     date,
	}
}

// withDescription returns a copy of item carrying description
func withDescription(item domain.Item, description string) domain.Item {
	item.Description = domain.StringPtr(description)
	return item
}
