package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/monitoring"
)

// Embedder turns text into a vector. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	IsHealthy(ctx context.Context) bool
}

// EmbeddingCache stores vectors keyed by text and model. Lookups are best
// effort: a cache failure degrades to a recompute, never to a request error.
type EmbeddingCache interface {
	Get(ctx context.Context, text, model string) ([]float32, bool)
	Set(ctx context.Context, text, model string, vector []float32)
}

// EmbeddingService computes embeddings over an OpenAI-compatible HTTP
// endpoint (Ollama serves the same contract). Calls run through a circuit
// breaker so a dead embedding server fails fast instead of holding every
// ingestion worker on a timeout.
type EmbeddingService struct {
	endpoint string
	model    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	cache    EmbeddingCache
	metrics  *monitoring.Metrics
	logger   *slog.Logger
}

// NewEmbeddingService builds the service. cache may be nil.
func NewEmbeddingService(cfg *config.Config, cache EmbeddingCache, metrics *monitoring.Metrics) *EmbeddingService {
	timeout := cfg.EmbeddingTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := slog.Default().With("component", "embeddings")
	settings := gobreaker.Settings{
		Name:        "embedding-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &EmbeddingService{
		endpoint: strings.TrimRight(cfg.EmbeddingURL, "/"),
		model:    cfg.EmbeddingModel,
		client:   &http.Client{Timeout: timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Embed returns the vector for one text, consulting the cache first.
func (es *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if es.cache != nil {
		if vector, ok := es.cache.Get(ctx, text, es.model); ok {
			es.countCache("hit")
			return vector, nil
		}
		es.countCache("miss")
	}

	result, err := es.breaker.Execute(func() (interface{}, error) {
		return es.callAPI(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, hrerrors.NewIndexUnavailableError("embed", "embedding service circuit open", err)
		}
		return nil, err
	}

	vector := result.([]float32)
	if es.cache != nil {
		es.cache.Set(ctx, text, es.model, vector)
	}
	return vector, nil
}

func (es *EmbeddingService) callAPI(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]interface{}{
		"model": es.model,
		"input": text,
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, es.endpoint+"/v1/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := es.client.Do(req)
	if err != nil {
		return nil, hrerrors.NewIndexUnavailableError("embed", "embedding request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, hrerrors.NewIndexUnavailableError("embed", "failed to read embedding response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, hrerrors.NewIndexUnavailableError("embed",
			fmt.Sprintf("embedding API returned status %d", resp.StatusCode), nil)
	}

	var apiResponse struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, hrerrors.NewIndexUnavailableError("embed", "failed to decode embedding response", err)
	}
	if len(apiResponse.Data) == 0 || len(apiResponse.Data[0].Embedding) == 0 {
		return nil, hrerrors.NewIndexUnavailableError("embed", "no embedding in response", nil)
	}
	return apiResponse.Data[0].Embedding, nil
}

// IsHealthy embeds a short probe string outside the circuit breaker so the
// probe itself reflects the server, not the breaker state.
func (es *EmbeddingService) IsHealthy(ctx context.Context) bool {
	_, err := es.callAPI(ctx, "ping")
	return err == nil
}

func (es *EmbeddingService) countCache(outcome string) {
	if es.metrics != nil {
		es.metrics.EmbeddingCacheHits.WithLabelValues(outcome).Inc()
	}
}
