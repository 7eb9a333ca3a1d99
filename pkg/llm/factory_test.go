package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/monitoring"
)

func TestFactoryBuildsEveryProvider(t *testing.T) {
	for _, provider := range config.SupportedProviders {
		b, err := New(backendConfig(provider, "http://localhost:9999"))
		require.NoError(t, err, "provider %s", provider)
		assert.Equal(t, string(provider), b.Name())
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := New(backendConfig("llamacpp", ""))
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))
}

func TestFactoryRejectsMissingModel(t *testing.T) {
	cfg := backendConfig(config.ProviderOllama, "")
	cfg.Model = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))
}

func TestFactoryAllowsTextGenWithoutModel(t *testing.T) {
	// The webui generates with whatever model it has loaded, so textgen is
	// usable with only LLM_BACKEND=textgen set.
	cfg := backendConfig(config.ProviderTextGen, "http://127.0.0.1:1")
	cfg.Model = ""
	b, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(config.ProviderTextGen), b.Name())
}

func TestFactoryRejectsMissingCredentials(t *testing.T) {
	for _, provider := range []config.Provider{config.ProviderOpenAI, config.ProviderAnthropic} {
		cfg := backendConfig(provider, "")
		cfg.APIKey = ""
		_, err := New(cfg)
		require.Error(t, err, "provider %s", provider)
		assert.True(t, hrerrors.IsConfiguration(err))
	}
}

func TestRouterFromConfigAddsOllamaFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = backendConfig(config.ProviderOpenAI, "http://127.0.0.1:1")
	cfg.EnableFallback = true
	cfg.FallbackModel = "mistral:7b"
	cfg.FallbackBaseURL = "http://127.0.0.1:1"

	r, err := NewRouterFromConfig(cfg, monitoring.NewTestMetrics())
	require.NoError(t, err)

	statuses := r.HealthCheck(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, string(config.ProviderOpenAI), statuses[0].Name)
	assert.Equal(t, string(config.ProviderOllama), statuses[1].Name)
}

func TestRouterFromConfigOllamaPrimaryGetsNoFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = backendConfig(config.ProviderOllama, "http://127.0.0.1:1")
	cfg.EnableFallback = true
	cfg.FallbackModel = "mistral:7b"

	r, err := NewRouterFromConfig(cfg, monitoring.NewTestMetrics())
	require.NoError(t, err)
	assert.Len(t, r.HealthCheck(context.Background()), 1)
}
