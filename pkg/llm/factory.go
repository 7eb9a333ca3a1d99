package llm

import (
	"fmt"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/monitoring"
)

// New builds one backend from its configuration. Unknown providers and
// missing credentials fail here, at construction, never at query time.
func New(cfg config.BackendConfig) (Backend, error) {
	// text-generation-webui answers with whatever model it has loaded, so
	// a model name is optional there. Every other provider selects the
	// model per request and needs one up front.
	if cfg.Model == "" && cfg.Provider != config.ProviderTextGen {
		return nil, hrerrors.NewConfigurationError("model",
			fmt.Sprintf("provider %q requires a model name", cfg.Provider))
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaBackend(cfg), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, hrerrors.NewConfigurationError("api_key", "openai backend requires an API key")
		}
		return NewOpenAIBackend(cfg), nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, hrerrors.NewConfigurationError("api_key", "anthropic backend requires an API key")
		}
		return NewAnthropicBackend(cfg), nil
	case config.ProviderTextGen:
		return NewTextGenBackend(cfg), nil
	case config.ProviderLocalAI:
		return NewLocalAIBackend(cfg), nil
	default:
		return nil, hrerrors.NewConfigurationError("provider",
			fmt.Sprintf("unknown provider %q, supported: %v", cfg.Provider, config.SupportedProviders))
	}
}

// NewRouterFromConfig builds the failover router for the service: the
// configured primary, plus a local Ollama fallback when the primary is a
// remote provider and fallback is enabled. An Ollama primary gets no
// fallback; there is nothing more local to fall back to.
func NewRouterFromConfig(cfg *config.Config, metrics *monitoring.Metrics) (*FailoverRouter, error) {
	primary, err := New(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var fallback Backend
	if cfg.EnableFallback && cfg.Backend.Provider != config.ProviderOllama {
		fbCfg := config.BackendConfig{
			Provider:    config.ProviderOllama,
			Model:       cfg.FallbackModel,
			Endpoint:    cfg.FallbackBaseURL,
			Temperature: cfg.Backend.Temperature,
			MaxTokens:   cfg.Backend.MaxTokens,
			Timeout:     cfg.Backend.Timeout,
		}
		fallback, err = New(fbCfg)
		if err != nil {
			return nil, err
		}
	}

	return NewFailoverRouter(primary, fallback, metrics), nil
}
