package llm

import (
	"context"
	"net/http"
	"strings"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

const anthropicVersion = "2023-06-01"

// AnthropicBackend talks to the Anthropic messages API.
type AnthropicBackend struct {
	endpoint string
	apiKey   string
	model    string
	temp     float64
	maxTok   int
	client   *http.Client
}

func NewAnthropicBackend(cfg config.BackendConfig) *AnthropicBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	return &AnthropicBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		temp:     cfg.Temperature,
		maxTok:   cfg.MaxTokens,
		client:   newHTTPClient(cfg.Timeout),
	}
}

func (b *AnthropicBackend) Name() string { return string(config.ProviderAnthropic) }

func (b *AnthropicBackend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": b.temp,
		"max_tokens":  b.maxTok,
	}
	headers := map[string]string{
		"x-api-key":         b.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := postJSON(ctx, b.client, b.Name(), b.endpoint+"/v1/messages", headers, payload, &out); err != nil {
		return "", err
	}
	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", hrerrors.NewBackendMalformedError(b.Name(), "no text content in response", nil)
}

func (b *AnthropicBackend) IsHealthy(ctx context.Context) bool {
	probe := *b
	probe.maxTok = 1
	_, err := probe.Generate(ctx, "ping")
	return err == nil
}
