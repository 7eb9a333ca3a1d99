package llm

import (
	"context"
	"net/http"
	"strings"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

// LocalAIBackend talks to a LocalAI server through its OpenAI-compatible
// chat completions endpoint. No API key is required.
type LocalAIBackend struct {
	endpoint string
	model    string
	temp     float64
	maxTok   int
	client   *http.Client
}

func NewLocalAIBackend(cfg config.BackendConfig) *LocalAIBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}
	return &LocalAIBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    cfg.Model,
		temp:     cfg.Temperature,
		maxTok:   cfg.MaxTokens,
		client:   newHTTPClient(cfg.Timeout),
	}
}

func (b *LocalAIBackend) Name() string { return string(config.ProviderLocalAI) }

func (b *LocalAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": b.temp,
		"max_tokens":  b.maxTok,
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, b.client, b.Name(), b.endpoint+"/v1/chat/completions", nil, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", hrerrors.NewBackendMalformedError(b.Name(), "no choices in response", nil)
	}
	return out.Choices[0].Message.Content, nil
}

// IsHealthy checks the model listing endpoint.
func (b *LocalAIBackend) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
