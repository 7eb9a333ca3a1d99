package llm

import (
	"context"
	"net/http"
	"strings"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

// OpenAIBackend talks to the OpenAI chat completions API, or any server
// exposing the same contract.
type OpenAIBackend struct {
	endpoint string
	apiKey   string
	model    string
	temp     float64
	maxTok   int
	client   *http.Client
	name     string
}

// NewOpenAIBackend builds the backend. The API key is required; the factory
// rejects a missing key before this constructor runs.
func NewOpenAIBackend(cfg config.BackendConfig) *OpenAIBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	return &OpenAIBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		temp:     cfg.Temperature,
		maxTok:   cfg.MaxTokens,
		client:   newHTTPClient(cfg.Timeout),
		name:     string(config.ProviderOpenAI),
	}
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": b.temp,
		"max_tokens":  b.maxTok,
	}
	headers := map[string]string{}
	if b.apiKey != "" {
		headers["Authorization"] = "Bearer " + b.apiKey
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, b.client, b.name, b.endpoint+"/v1/chat/completions", headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", hrerrors.NewBackendMalformedError(b.name, "no choices in response", nil)
	}
	return out.Choices[0].Message.Content, nil
}

// IsHealthy issues a minimal one-token completion. Chat-completion servers
// have no universal cheap probe, so a tiny generation is the check.
func (b *OpenAIBackend) IsHealthy(ctx context.Context) bool {
	probe := *b
	probe.maxTok = 1
	_, err := probe.Generate(ctx, "ping")
	return err == nil
}
