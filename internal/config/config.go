// Package config loads and validates codetalk settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfig is returned for missing or invalid configuration
var ErrConfig = errors.New("configuration error")

// Provider identifiers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	// FileName is the config file looked up in the search paths
	FileName = "codetalk.json"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "CODETALK"

	DefaultMaxTokenLimit     = 100000
	DefaultHistorySize       = 20
	DefaultTopK              = 5
	DefaultSafetyThreshold   = "BLOCK_ONLY_HIGH"
	DefaultRetryBaseInterval = time.Second
	DefaultLogLevel          = "warn"
	DefaultTokenEncoding     = "cl100k_base"
)

// DefaultFileExtensions is the allow-list used when none is configured
var DefaultFileExtensions = map[string]bool{
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".php":  true,
	".py":   true,
	".html": true,
	".css":  true,
	".go":   true,
}

// Config holds all settings for a codetalk run
type Config struct {
	LLMProvider        string          `mapstructure:"llm_provider"`
	APIKey             string          `mapstructure:"api_key"`
	ModelName          string          `mapstructure:"model_name"`
	EmbeddingModelName string          `mapstructure:"embedding_model_name"`
	BaseURL            string          `mapstructure:"base_url"`
	CodebasePath       string          `mapstructure:"codebase_path"`
	FileExtensions     map[string]bool `mapstructure:"file_extensions"`
	MaxTokenLimit      int             `mapstructure:"max_token_limit"`
	IgnorePatterns     []string        `mapstructure:"ignore_patterns"`
	IndexPath          string          `mapstructure:"index_path"`
	HistorySize        int             `mapstructure:"history_size"`
	TopK               int             `mapstructure:"top_k"`
	SafetyThreshold    string          `mapstructure:"safety_threshold"`
	RetryBaseInterval  time.Duration   `mapstructure:"retry_base_interval"`
	LogLevel           string          `mapstructure:"log_level"`
	TokenEncoding      string          `mapstructure:"token_encoding"` // BPE vocabulary, or "estimate"
}

// Load reads codetalk.json from $CODETALK_CONFIG, the working directory or
// ~/.codetalk, applies defaults and environment overrides, and validates.
func Load() (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if explicit := os.Getenv(EnvPrefix + "_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".codetalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, FileName, err)
		}
		// Environment variables alone may still satisfy validation
	}

	return fromViper(v)
}

// LoadFile reads one config file without search paths or environment overrides
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newViper uses a non-dot key delimiter so extension keys like ".py" survive
func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm_provider", "")
	v.SetDefault("api_key", "")
	v.SetDefault("model_name", "")
	v.SetDefault("embedding_model_name", "")
	v.SetDefault("base_url", "")
	v.SetDefault("codebase_path", "")
	v.SetDefault("max_token_limit", DefaultMaxTokenLimit)
	v.SetDefault("ignore_patterns", []string{})
	v.SetDefault("index_path", "")
	v.SetDefault("history_size", DefaultHistorySize)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("safety_threshold", DefaultSafetyThreshold)
	v.SetDefault("retry_base_interval", DefaultRetryBaseInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("token_encoding", DefaultTokenEncoding)
}

// resolvePaths makes codebase_path absolute against the working directory and
// fills in the default index location.
func (c *Config) resolvePaths() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("%w: working directory: %v", ErrConfig, err)
	}

	if c.CodebasePath == "" {
		c.CodebasePath = cwd
	} else if !filepath.IsAbs(c.CodebasePath) {
		c.CodebasePath = filepath.Join(cwd, c.CodebasePath)
	}
	c.CodebasePath = filepath.Clean(c.CodebasePath)

	if c.IndexPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("%w: home directory: %v", ErrConfig, err)
		}
		c.IndexPath = filepath.Join(home, ".codetalk", "index")
	} else if !filepath.IsAbs(c.IndexPath) {
		c.IndexPath = filepath.Join(cwd, c.IndexPath)
	}

	c.FileExtensions = normalizeExtensions(c.FileExtensions)
	return nil
}

// normalizeExtensions lowercases keys and ensures a leading dot; viper
// lowercases map keys already but hand-built configs may not.
func normalizeExtensions(exts map[string]bool) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultFileExtensions
	}
	out := make(map[string]bool, len(exts))
	for ext, enabled := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = enabled
	}
	return out
}

// Validate checks required keys and limits
func (c *Config) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if provider == "" {
		return fmt.Errorf("%w: llm_provider is required", ErrConfig)
	}
	if !IsSupportedProvider(provider) {
		return fmt.Errorf("%w: llm_provider %q is not one of %s", ErrConfig,
			c.LLMProvider, strings.Join(SupportedProviders(), ", "))
	}
	c.LLMProvider = provider

	if provider != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("%w: api_key is required for %s", ErrConfig, provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name is required", ErrConfig)
	}
	if c.EmbeddingModelName == "" {
		return fmt.Errorf("%w: embedding_model_name is required", ErrConfig)
	}
	if c.MaxTokenLimit <= 0 {
		return fmt.Errorf("%w: max_token_limit must be positive", ErrConfig)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history_size must be positive", ErrConfig)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrConfig)
	}
	if c.RetryBaseInterval < 0 {
		return fmt.Errorf("%w: retry_base_interval cannot be negative", ErrConfig)
	}
	return nil
}

// SupportedProviders lists the accepted llm_provider values
func SupportedProviders() []string {
	return []string{ProviderGemini, ProviderOpenAI, ProviderOllama}
}

// IsSupportedProvider reports whether name is an accepted llm_provider
func IsSupportedProvider(name string) bool {
	switch strings.ToLower(name) {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
		return true
	}
	return false
}

// EnabledExtensions returns the extensions switched on in the allow-map
func (c *Config) EnabledExtensions() map[string]bool {
	out := make(map[string]bool, len(c.FileExtensions))
	for ext, on := range c.FileExtensions {
		if on {
			out[ext] = true
		}
	}
	return out
}
