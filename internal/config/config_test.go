package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		path := writeConfig(t, `{
			"llm_provider": "Gemini",
			"api_key": "k",
			"model_name": "gemini-1.5-flash",
			"embedding_model_name": "text-embedding-004"
		}`)

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, ProviderGemini, cfg.LLMProvider)
		assert.Equal(t, DefaultMaxTokenLimit, cfg.MaxTokenLimit)
		assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
		assert.Equal(t, DefaultTopK, cfg.TopK)
		assert.Equal(t, DefaultRetryBaseInterval, cfg.RetryBaseInterval)
		assert.Equal(t, DefaultSafetyThreshold, cfg.SafetyThreshold)
		assert.Equal(t, DefaultTokenEncoding, cfg.TokenEncoding)
		assert.Empty(t, cfg.IgnorePatterns)
		assert.True(t, cfg.FileExtensions[".py"])
		assert.True(t, filepath.IsAbs(cfg.CodebasePath))
		assert.True(t, filepath.IsAbs(cfg.IndexPath))
	})

	t.Run("reads overrides", func(t *testing.T) {
		path := writeConfig(t, `{
			"llm_provider": "ollama",
			"model_name": "llama3",
			"embedding_model_name": "nomic-embed-text",
			"codebase_path": "/tmp/project",
			"file_extensions": {".py": true, "rb": true, ".js": false},
			"max_token_limit": 500,
			"ignore_patterns": ["node_modules/", "*.log"],
			"index_path": "/tmp/codetalk-index",
			"retry_base_interval": "250ms"
		}`)

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, "/tmp/project", cfg.CodebasePath)
		assert.Equal(t, "/tmp/codetalk-index", cfg.IndexPath)
		assert.Equal(t, 500, cfg.MaxTokenLimit)
		assert.Equal(t, []string{"node_modules/", "*.log"}, cfg.IgnorePatterns)
		assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseInterval)

		exts := cfg.EnabledExtensions()
		assert.True(t, exts[".py"])
		assert.True(t, exts[".rb"])
		assert.False(t, exts[".js"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LLMProvider:        "openai",
			APIKey:             "k",
			ModelName:          "gpt-4o-mini",
			EmbeddingModelName: "text-embedding-3-small",
			MaxTokenLimit:      10,
			HistorySize:        20,
			TopK:               5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing provider", func(c *Config) { c.LLMProvider = "" }, true},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, true},
		{"cloud without key", func(c *Config) { c.APIKey = "" }, true},
		{"ollama without key", func(c *Config) { c.LLMProvider = "ollama"; c.APIKey = "" }, false},
		{"missing model", func(c *Config) { c.ModelName = "" }, true},
		{"missing embedding model", func(c *Config) { c.EmbeddingModelName = "" }, true},
		{"zero budget", func(c *Config) { c.MaxTokenLimit = 0 }, true},
		{"zero history", func(c *Config) { c.HistorySize = 0 }, true},
		{"zero top k", func(c *Config) { c.TopK = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsSupportedProvider(t *testing.T) {
	for _, p := range SupportedProviders() {
		assert.True(t, IsSupportedProvider(p), p)
	}
	assert.True(t, IsSupportedProvider("OpenAI"))
	assert.False(t, IsSupportedProvider("anthropic"))
}
