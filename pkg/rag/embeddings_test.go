package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamrag/pkg/config"
	"hamrag/pkg/monitoring"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]float32{}}
}

func (m *memoryCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[model+"/"+text]
	return v, ok
}

func (m *memoryCache) Set(ctx context.Context, text, model string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[model+"/"+text] = vector
}

func newEmbeddingServerForTest(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		*calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
}

func embeddingConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.EmbeddingURL = url
	cfg.EmbeddingModel = "nomic-embed-text"
	return cfg
}

func TestEmbedReturnsVector(t *testing.T) {
	var calls int
	srv := newEmbeddingServerForTest(t, &calls)
	defer srv.Close()

	es := NewEmbeddingService(embeddingConfig(srv.URL), nil, monitoring.NewTestMetrics())
	vector, err := es.Embed(context.Background(), "antenna theory")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, 1, calls)
}

func TestEmbedUsesCache(t *testing.T) {
	var calls int
	srv := newEmbeddingServerForTest(t, &calls)
	defer srv.Close()

	es := NewEmbeddingService(embeddingConfig(srv.URL), newMemoryCache(), monitoring.NewTestMetrics())

	_, err := es.Embed(context.Background(), "antenna theory")
	require.NoError(t, err)
	_, err = es.Embed(context.Background(), "antenna theory")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second lookup must come from the cache")

	_, err = es.Embed(context.Background(), "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestEmbedServerErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	es := NewEmbeddingService(embeddingConfig(srv.URL), nil, monitoring.NewTestMetrics())
	_, err := es.Embed(context.Background(), "q")
	require.Error(t, err)
}

func TestEmbedCircuitOpensAfterRepeatedFailures(t *testing.T) {
	es := NewEmbeddingService(embeddingConfig("http://127.0.0.1:1"), nil, monitoring.NewTestMetrics())

	for i := 0; i < 5; i++ {
		_, err := es.Embed(context.Background(), "q")
		require.Error(t, err)
	}
	// By now the breaker rejects without dialing.
	_, err := es.Embed(context.Background(), "q")
	require.Error(t, err)
}

func TestEmbedEmptyDataIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer srv.Close()

	es := NewEmbeddingService(embeddingConfig(srv.URL), nil, monitoring.NewTestMetrics())
	_, err := es.Embed(context.Background(), "q")
	require.Error(t, err)
}
