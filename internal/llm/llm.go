package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/codetalk/internal/logging"
)

// Provider identifiers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultSafetyThreshold blocks only high-probability harmful content
	DefaultSafetyThreshold = "BLOCK_ONLY_HIGH"

	defaultTimeout = 5 * time.Minute
)

var (
	// ErrUnsupportedProvider is returned by New for an unknown provider name
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	// ErrMissingAPIKey is returned by New when a cloud provider has no key
	ErrMissingAPIKey = errors.New("api key required")
	// ErrTransientStream matches every *TransientStreamError via errors.Is
	ErrTransientStream = errors.New("transient stream failure")
	// ErrEmptyResponse is returned when a provider answers with no text
	ErrEmptyResponse = errors.New("empty response from model")
)

// Sink receives generated text in order. A non-nil error stops generation.
type Sink func(chunk string) error

// Backend is one chat model behind a provider API
type Backend interface {
	// Rewrite asks the model for a standalone version of question given the
	// formatted conversation history. The raw model output is returned;
	// callers decide between it and the original via EffectiveQuestion.
	Rewrite(ctx context.Context, question, history string) (string, error)

	// Generate answers prompt, passing text to sink as it arrives, and
	// returns the full response.
	Generate(ctx context.Context, prompt string, sink Sink) (string, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string
}

// Config selects and configures a Backend
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string // Optional endpoint override
	SafetyThreshold string // Gemini only
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// New returns the Backend for cfg.Provider. It performs no network I/O.
func New(cfg Config) (Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderGemini:
		return NewGemini(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// TransientStreamError reports a stream that broke off or could not be
// framed. Retrying the same request usually succeeds.
type TransientStreamError struct {
	Provider string
	Err      error
}

func (e *TransientStreamError) Error() string {
	return fmt.Sprintf("%s: failed to parse stream: %v", e.Provider, e.Err)
}

func (e *TransientStreamError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransientStream) match any TransientStreamError
func (e *TransientStreamError) Is(target error) bool {
	return target == ErrTransientStream
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStream)
}

// APIError is a non-2xx response from a provider
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// client carries what every backend shares
type client struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func newClient(name string, cfg Config, defaultBaseURL string) *client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logging.OrDiscard(cfg.Logger),
	}
}

func (c *client) Provider() string {
	return c.name
}

func (c *client) Model() string {
	return c.model
}
