// Package config holds all configuration consumed by the ingestion and
// query pipelines: chunking and OCR parameters, the domain vocabulary,
// embedding and vector index settings, and per-provider backend settings.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	hrerrors "hamrag/pkg/errors"
)

// Provider identifies a language-model backend implementation.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderTextGen   Provider = "textgen"
	ProviderLocalAI   Provider = "localai"
)

// SupportedProviders lists every provider the backend factory can build.
var SupportedProviders = []Provider{
	ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderTextGen, ProviderLocalAI,
}

// BackendConfig holds connection parameters for one language-model backend.
// Loaded once per process lifetime and immutable for the life of a backend.
type BackendConfig struct {
	Provider    Provider      `json:"provider"`
	Model       string        `json:"model"`
	Endpoint    string        `json:"endpoint"`
	APIKey      string        `json:"-"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// Config holds all configuration for the service
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// PDF / OCR processing
	MinPageText   int    // below this many chars a PDF page is treated as image-only
	RenderDPI     int    // rasterization resolution for the OCR path
	TesseractPath string // resolved OCR binary
	MaxFileSize   int64

	// Web fetching
	RequestTimeout  time.Duration
	MaxRetries      int
	FetchesPerSecond float64

	// Ingestion
	IngestConcurrency int

	// Domain vocabulary
	DomainTopics   []string
	DomainKeywords []string
	VocabularyFile string // optional YAML override

	// Embeddings
	EmbeddingURL     string
	EmbeddingModel   string
	EmbeddingTimeout time.Duration

	// Embedding cache (disabled when RedisAddr is empty)
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	EmbeddingCacheTTL time.Duration

	// Vector index
	WeaviateScheme string
	WeaviateHost   string
	WeaviateAPIKey string
	WeaviateClass  string

	// Retrieval
	TopK             int
	FetchK           int
	SourcePreviewLen int

	// Language-model backends
	Backend         BackendConfig
	EnableFallback  bool // build an ollama fallback when primary is not ollama
	FallbackModel   string
	FallbackBaseURL string

	// HTTP front end
	APIHost string
	APIPort int
}

// defaultDomainTopics is the built-in topical vocabulary for amateur-radio
// and RF engineering documentation.
var defaultDomainTopics = []string{
	"antenna design", "rf circuits", "amplifiers", "oscillators",
	"filters", "transmission lines", "impedance matching",
	"smith charts", "propagation", "modulation", "demodulation",
	"mixers", "transceivers", "repeaters", "microwave",
	"vhf", "uhf", "hf", "baluns", "transformers",
}

// defaultDomainKeywords is the built-in keyword vocabulary.
var defaultDomainKeywords = []string{
	"ham radio", "amateur radio", "rf", "radio frequency",
	"vswr", "swr", "qrp", "qro", "dx", "contest",
	"callsign", "cw", "ssb", "fm", "am", "psk31",
	"arrl", "icom", "yaesu", "kenwood",
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",

		ChunkSize:    1000,
		ChunkOverlap: 200,

		MinPageText:   100,
		RenderDPI:     300,
		TesseractPath: findTesseract(),
		MaxFileSize:   100 * 1024 * 1024,

		RequestTimeout:   30 * time.Second,
		MaxRetries:       3,
		FetchesPerSecond: 2,

		IngestConcurrency: 4,

		DomainTopics:   append([]string(nil), defaultDomainTopics...),
		DomainKeywords: append([]string(nil), defaultDomainKeywords...),

		EmbeddingURL:     "http://localhost:11434",
		EmbeddingModel:   "nomic-embed-text",
		EmbeddingTimeout: 30 * time.Second,

		RedisDB:           0,
		EmbeddingCacheTTL: 24 * time.Hour,

		WeaviateScheme: "http",
		WeaviateHost:   "localhost:8080",
		WeaviateClass:  "RadioDocument",

		TopK:             5,
		FetchK:           10,
		SourcePreviewLen: 200,

		Backend: BackendConfig{
			Provider:    ProviderOllama,
			Model:       "mistral:7b",
			Endpoint:    "http://localhost:11434",
			Temperature: 0.1,
			MaxTokens:   2000,
			Timeout:     60 * time.Second,
		},
		EnableFallback:  true,
		FallbackModel:   "mistral:7b",
		FallbackBaseURL: "http://localhost:11434",

		APIHost: "127.0.0.1",
		APIPort: 8000,
	}
}

// LoadFromEnv builds the configuration from defaults, a .env file when
// present, environment variables, and the optional vocabulary file, then
// validates the result.
func LoadFromEnv() (*Config, error) {
	// A missing .env is fine; explicit environment always wins because
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	setInt(&cfg.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&cfg.MinPageText, "MIN_PAGE_TEXT")
	setInt(&cfg.RenderDPI, "RENDER_DPI")
	setString(&cfg.TesseractPath, "TESSERACT_PATH")
	setInt64(&cfg.MaxFileSize, "MAX_FILE_SIZE")

	setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setInt(&cfg.MaxRetries, "MAX_RETRIES")
	setFloat(&cfg.FetchesPerSecond, "FETCHES_PER_SECOND")
	setInt(&cfg.IngestConcurrency, "INGEST_CONCURRENCY")

	setString(&cfg.VocabularyFile, "VOCABULARY_FILE")

	setString(&cfg.EmbeddingURL, "EMBEDDING_URL")
	setString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setDuration(&cfg.EmbeddingTimeout, "EMBEDDING_TIMEOUT")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")
	setDuration(&cfg.EmbeddingCacheTTL, "EMBEDDING_CACHE_TTL")

	setString(&cfg.WeaviateScheme, "WEAVIATE_SCHEME")
	setString(&cfg.WeaviateHost, "WEAVIATE_HOST")
	setString(&cfg.WeaviateAPIKey, "WEAVIATE_API_KEY")
	setString(&cfg.WeaviateClass, "WEAVIATE_CLASS")

	setInt(&cfg.TopK, "RETRIEVAL_K")
	setInt(&cfg.FetchK, "RETRIEVAL_FETCH_K")
	setInt(&cfg.SourcePreviewLen, "SOURCE_PREVIEW_LEN")

	loadBackendFromEnv(cfg)

	setBool(&cfg.EnableFallback, "ENABLE_FALLBACK")
	setString(&cfg.FallbackModel, "FALLBACK_MODEL")
	setString(&cfg.FallbackBaseURL, "FALLBACK_BASE_URL")

	setString(&cfg.APIHost, "API_HOST")
	setInt(&cfg.APIPort, "API_PORT")

	if cfg.VocabularyFile != "" {
		if err := cfg.loadVocabularyFile(cfg.VocabularyFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadBackendFromEnv resolves the selected provider and its connection
// parameters. Each provider keeps its own endpoint/model/key variables so a
// fallback switch does not clobber the primary's settings.
func loadBackendFromEnv(cfg *Config) {
	if val := os.Getenv("LLM_BACKEND"); val != "" {
		cfg.Backend.Provider = Provider(strings.ToLower(val))
	}

	switch cfg.Backend.Provider {
	case ProviderOllama:
		cfg.Backend.Endpoint = envOr("OLLAMA_BASE_URL", "http://localhost:11434")
		cfg.Backend.Model = envOr("OLLAMA_MODEL", "mistral:7b")
	case ProviderOpenAI:
		cfg.Backend.Endpoint = envOr("OPENAI_BASE_URL", "https://api.openai.com")
		cfg.Backend.Model = envOr("OPENAI_MODEL", "gpt-4o-mini")
		cfg.Backend.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		cfg.Backend.Endpoint = envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com")
		cfg.Backend.Model = envOr("ANTHROPIC_MODEL", "claude-3-haiku-20240307")
		cfg.Backend.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case ProviderTextGen:
		cfg.Backend.Endpoint = envOr("TEXTGEN_BASE_URL", "http://localhost:5000")
		cfg.Backend.Model = os.Getenv("TEXTGEN_MODEL")
	case ProviderLocalAI:
		cfg.Backend.Endpoint = envOr("LOCALAI_BASE_URL", "http://localhost:8080")
		cfg.Backend.Model = envOr("LOCALAI_MODEL", "gpt-3.5-turbo")
	}

	setFloat(&cfg.Backend.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.Backend.MaxTokens, "LLM_MAX_TOKENS")
	setDuration(&cfg.Backend.Timeout, "LLM_TIMEOUT")
}

// vocabularyFile is the on-disk YAML shape for vocabulary overrides.
type vocabularyFile struct {
	Topics   []string `yaml:"topics"`
	Keywords []string `yaml:"keywords"`
}

func (c *Config) loadVocabularyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return hrerrors.NewConfigurationError("VOCABULARY_FILE",
			fmt.Sprintf("cannot read %s: %v", path, err))
	}
	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return hrerrors.NewConfigurationError("VOCABULARY_FILE",
			fmt.Sprintf("invalid YAML in %s: %v", path, err))
	}
	if len(vf.Topics) > 0 {
		c.DomainTopics = normalizeVocabulary(vf.Topics)
	}
	if len(vf.Keywords) > 0 {
		c.DomainKeywords = normalizeVocabulary(vf.Keywords)
	}
	return nil
}

func normalizeVocabulary(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate fails fast on parameter combinations the pipelines cannot run
// with. All violations are ConfigurationErrors.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return hrerrors.NewConfigurationError("CHUNK_SIZE", "must be positive")
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		return hrerrors.NewConfigurationError("CHUNK_OVERLAP",
			fmt.Sprintf("must satisfy 0 < overlap < chunk size (%d)", c.ChunkSize))
	}
	if c.RenderDPI <= 0 {
		return hrerrors.NewConfigurationError("RENDER_DPI", "must be positive")
	}
	if c.MinPageText < 0 {
		return hrerrors.NewConfigurationError("MIN_PAGE_TEXT", "must not be negative")
	}
	if c.MaxRetries < 0 {
		return hrerrors.NewConfigurationError("MAX_RETRIES", "must not be negative")
	}
	if c.TopK <= 0 || c.FetchK < c.TopK {
		return hrerrors.NewConfigurationError("RETRIEVAL_K",
			fmt.Sprintf("need 0 < k (%d) <= fetch_k (%d)", c.TopK, c.FetchK))
	}
	if c.SourcePreviewLen <= 0 {
		return hrerrors.NewConfigurationError("SOURCE_PREVIEW_LEN", "must be positive")
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 1 {
		return hrerrors.NewConfigurationError("LLM_TEMPERATURE", "must be within [0,1]")
	}
	if c.Backend.MaxTokens <= 0 {
		return hrerrors.NewConfigurationError("LLM_MAX_TOKENS", "must be positive")
	}
	if !isSupportedProvider(c.Backend.Provider) {
		return hrerrors.NewConfigurationError("LLM_BACKEND",
			fmt.Sprintf("unknown provider %q, available: %v", c.Backend.Provider, SupportedProviders))
	}
	return nil
}

func isSupportedProvider(p Provider) bool {
	for _, sp := range SupportedProviders {
		if p == sp {
			return true
		}
	}
	return false
}

// findTesseract locates the OCR binary on PATH with platform-specific
// fallbacks, mirroring where package managers install it.
func findTesseract() string {
	if path, err := exec.LookPath("tesseract"); err == nil {
		return path
	}
	switch runtime.GOOS {
	case "windows":
		return `C:\Program Files\Tesseract-OCR\tesseract.exe`
	case "darwin":
		for _, path := range []string{"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"} {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		return "/usr/local/bin/tesseract"
	default:
		return "/usr/bin/tesseract"
	}
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
