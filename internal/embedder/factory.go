package embedder

import (
	"fmt"
	"net/http"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string // Optional endpoint override
	CacheSize  int    // 0 disables caching
	HTTPClient *http.Client
	Retry      RetryConfig // Zero value uses DefaultRetryConfig
}

// New creates the embedder for cfg.Provider. The provider set mirrors the
// LLM providers so one configured identity covers both.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini:
		return NewGeminiProvider(cfg, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
