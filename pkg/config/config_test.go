package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hrerrors "hamrag/pkg/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 300, cfg.RenderDPI)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 10, cfg.FetchK)
	assert.Equal(t, ProviderOllama, cfg.Backend.Provider)
}

func TestValidateRejectsBadChunking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))

	cfg = DefaultConfig()
	cfg.ChunkOverlap = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.Provider = Provider("gpt5-turbo-max")
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "LLM_BACKEND")
}

func TestValidateRejectsTemperatureOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.Temperature = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsFetchKSmallerThanK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 8
	cfg.FetchK = 3
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("LLM_BACKEND", "localai")
	t.Setenv("LOCALAI_BASE_URL", "http://llm.lan:9090")
	t.Setenv("RETRIEVAL_K", "3")
	t.Setenv("RETRIEVAL_FETCH_K", "7")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, ProviderLocalAI, cfg.Backend.Provider)
	assert.Equal(t, "http://llm.lan:9090", cfg.Backend.Endpoint)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 7, cfg.FetchK)
	assert.Equal(t, "5s", cfg.RequestTimeout.String())
}

func TestLoadFromEnvUnknownProviderFailsFast(t *testing.T) {
	t.Setenv("LLM_BACKEND", "skynet")
	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))
}

func TestVocabularyFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	body := "topics:\n  - Yagi Antennas\n  - waveguides\nkeywords:\n  - FT8\n  - WSPR\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("VOCABULARY_FILE", path)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"yagi antennas", "waveguides"}, cfg.DomainTopics)
	assert.Equal(t, []string{"ft8", "wspr"}, cfg.DomainKeywords)
}

func TestVocabularyFileMissing(t *testing.T) {
	t.Setenv("VOCABULARY_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.True(t, hrerrors.IsConfiguration(err))
}
