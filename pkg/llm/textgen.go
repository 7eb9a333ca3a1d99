package llm

import (
	"context"
	"net/http"
	"strings"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

// TextGenBackend talks to a text-generation-webui server over its legacy
// generate API.
type TextGenBackend struct {
	endpoint string
	temp     float64
	maxTok   int
	client   *http.Client
}

func NewTextGenBackend(cfg config.BackendConfig) *TextGenBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:5000"
	}
	return &TextGenBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		temp:     cfg.Temperature,
		maxTok:   cfg.MaxTokens,
		client:   newHTTPClient(cfg.Timeout),
	}
}

func (b *TextGenBackend) Name() string { return string(config.ProviderTextGen) }

func (b *TextGenBackend) Generate(ctx context.Context, prompt string) (string, error) {
	// Sampling parameters follow the webui defaults for factual synthesis.
	payload := map[string]interface{}{
		"prompt":             prompt,
		"max_new_tokens":     b.maxTok,
		"temperature":        b.temp,
		"top_p":              0.9,
		"top_k":              20,
		"repetition_penalty": 1.1,
	}

	var out struct {
		Results []struct {
			Text string `json:"text"`
		} `json:"results"`
	}
	if err := postJSON(ctx, b.client, b.Name(), b.endpoint+"/api/v1/generate", nil, payload, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", hrerrors.NewBackendMalformedError(b.Name(), "no results in response", nil)
	}
	return out.Results[0].Text, nil
}

func (b *TextGenBackend) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/api/v1/model", nil)
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
