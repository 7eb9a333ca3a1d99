package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
)

func backendConfig(provider config.Provider, endpoint string) config.BackendConfig {
	return config.BackendConfig{
		Provider:    provider,
		Model:       "test-model",
		Endpoint:    endpoint,
		APIKey:      "sk-test",
		Temperature: 0.3,
		MaxTokens:   512,
		Timeout:     5 * time.Second,
	}
}

func TestOllamaGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "A dipole is resonant at its cut length.", "done": true})
	}))
	defer srv.Close()

	b := NewOllamaBackend(backendConfig(config.ProviderOllama, srv.URL))
	answer, err := b.Generate(context.Background(), "what is a dipole")
	require.NoError(t, err)
	assert.Contains(t, answer, "dipole")

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, false, got["stream"])
	opts, ok := got["options"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.3, opts["temperature"], 1e-9)
	assert.InDelta(t, 512, opts["num_predict"], 1e-9)
}

func TestOllamaEmptyResponseIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "", "done": true})
	}))
	defer srv.Close()

	b := NewOllamaBackend(backendConfig(config.ProviderOllama, srv.URL))
	_, err := b.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, hrerrors.IsBackendUnavailable(err))
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "answer"}},
			},
		})
	}))
	defer srv.Close()

	b := NewOpenAIBackend(backendConfig(config.ProviderOpenAI, srv.URL))
	answer, err := b.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestOpenAIEmptyChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	b := NewOpenAIBackend(backendConfig(config.ProviderOpenAI, srv.URL))
	_, err := b.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, hrerrors.IsBackendUnavailable(err))
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "answer"},
			},
		})
	}))
	defer srv.Close()

	b := NewAnthropicBackend(backendConfig(config.ProviderAnthropic, srv.URL))
	answer, err := b.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestTextGenGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"text": "answer"}},
		})
	}))
	defer srv.Close()

	b := NewTextGenBackend(backendConfig(config.ProviderTextGen, srv.URL))
	answer, err := b.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.InDelta(t, 0.9, got["top_p"], 1e-9)
	assert.InDelta(t, 20, got["top_k"], 1e-9)
	assert.InDelta(t, 1.1, got["repetition_penalty"], 1e-9)
}

func TestLocalAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "answer"}},
			},
		})
	}))
	defer srv.Close()

	b := NewLocalAIBackend(backendConfig(config.ProviderLocalAI, srv.URL))
	answer, err := b.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewOllamaBackend(backendConfig(config.ProviderOllama, srv.URL))
	_, err := b.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, hrerrors.IsBackendUnavailable(err))
}

func TestUndecodableBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(backendConfig(config.ProviderOpenAI, srv.URL))
	_, err := b.Generate(context.Background(), "q")
	require.Error(t, err)

	var pe *hrerrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, hrerrors.ErrorTypeBackendMalformed, pe.Type)
}

func TestConnectionRefusedIsUnavailable(t *testing.T) {
	// Reserved port with nothing listening.
	b := NewOllamaBackend(backendConfig(config.ProviderOllama, "http://127.0.0.1:1"))
	_, err := b.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, hrerrors.IsBackendUnavailable(err))
}

func TestOllamaHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"models": []interface{}{}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(backendConfig(config.ProviderOllama, srv.URL))
	assert.True(t, b.IsHealthy(context.Background()))

	down := NewOllamaBackend(backendConfig(config.ProviderOllama, "http://127.0.0.1:1"))
	assert.False(t, down.IsHealthy(context.Background()))
}
