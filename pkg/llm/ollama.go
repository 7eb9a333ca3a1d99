package llm

import (
	"context"
	"net/http"
	"strings"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

// OllamaBackend talks to a local Ollama server over its native API.
type OllamaBackend struct {
	endpoint string
	model    string
	temp     float64
	maxTok   int
	client   *http.Client
}

// NewOllamaBackend builds the backend. The endpoint defaults to the local
// server when empty, so an out-of-the-box Ollama install works unconfigured.
func NewOllamaBackend(cfg config.BackendConfig) *OllamaBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    cfg.Model,
		temp:     cfg.Temperature,
		maxTok:   cfg.MaxTokens,
		client:   newHTTPClient(cfg.Timeout),
	}
}

func (b *OllamaBackend) Name() string { return string(config.ProviderOllama) }

func (b *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":  b.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": b.temp,
			"num_predict": b.maxTok,
		},
	}

	var out struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := postJSON(ctx, b.client, b.Name(), b.endpoint+"/api/generate", nil, payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", hrerrors.NewBackendMalformedError(b.Name(), "empty response field", nil)
	}
	return out.Response, nil
}

// IsHealthy checks the model list endpoint, which answers without loading
// any model into memory.
func (b *OllamaBackend) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/api/tags", nil)
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
