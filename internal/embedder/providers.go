package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Provider configuration
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	// Default models
	DefaultGeminiModel = "text-embedding-004"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"

	// Default endpoints
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOllamaBaseURL = "http://localhost:11434"

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	defaultTimeout = 60 * time.Second
)

// knownDimensions lets Dimension answer before the first request
var knownDimensions = map[string]int{
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// callFunc performs one batch request and returns one vector per text
type callFunc func(ctx context.Context, texts []string, model string) ([][]float32, error)

// httpProvider carries what every remote provider shares: request plumbing,
// caching of individual texts and retry.
type httpProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
	dimension  atomic.Int64
	call       callFunc
}

func newHTTPProvider(name string, cfg Config, defaultModel, defaultBaseURL string, cache *Cache) *httpProvider {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	retry := cfg.Retry
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryConfig()
	}
	return &httpProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		cache:      cache,
		retry:      retry,
	}
}

func (p *httpProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *httpProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	missing := make([]int, 0, len(req.Texts))
	for i, text := range req.Texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(CacheKey(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.call(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.name, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
				ErrProviderFailed, p.name, len(vectors), len(texts))
		}

		for j, i := range missing {
			emb := &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  p.name,
				Model:     model,
				Hash:      CacheKey(model, texts[j]),
			}
			p.dimension.Store(int64(emb.Dimension))
			if p.cache != nil {
				p.cache.Set(emb.Hash, emb)
			}
			embeddings[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

// postJSON sends body as JSON and decodes a 200 response into out
func (p *httpProvider) postJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p *httpProvider) Dimension() int {
	if d := p.dimension.Load(); d > 0 {
		return int(d)
	}
	return knownDimensions[p.model]
}

func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Model() string {
	return p.model
}

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// GeminiProvider implements Embedder using the Generative Language API
type GeminiProvider struct {
	*httpProvider
}

// NewGeminiProvider creates a Gemini embedder
func NewGeminiProvider(cfg Config, cache *Cache) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not set", ErrNoProviderEnabled)
	}
	g := &GeminiProvider{newHTTPProvider(ProviderGemini, cfg, DefaultGeminiModel, DefaultGeminiBaseURL, cache)}
	g.call = g.callAPI
	return g, nil
}

func (g *GeminiProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	name := model
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	type embedRequest struct {
		Model   string  `json:"model"`
		Content content `json:"content"`
	}

	requests := make([]embedRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedRequest{Model: name, Content: content{Parts: []part{{Text: text}}}}
	}

	var apiResp struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}

	url := fmt.Sprintf("%s/v1beta/%s:batchEmbedContents", g.baseURL, name)
	headers := map[string]string{"x-goog-api-key": g.apiKey}
	if err := g.postJSON(ctx, url, headers, map[string]interface{}{"requests": requests}, &apiResp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(apiResp.Embeddings))
	for i, e := range apiResp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	*httpProvider
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg Config, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	o := &OpenAIProvider{newHTTPProvider(ProviderOpenAI, cfg, DefaultOpenAIModel, DefaultOpenAIBaseURL, cache)}
	o.call = o.callAPI
	return o, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := o.postJSON(ctx, o.baseURL+"/v1/embeddings", headers, reqBody, &apiResp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = data.Embedding
	}
	return vectors, nil
}

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	*httpProvider
}

// NewOllamaProvider creates an Ollama embedder; no API key is needed
func NewOllamaProvider(cfg Config, cache *Cache) (*OllamaProvider, error) {
	o := &OllamaProvider{newHTTPProvider(ProviderOllama, cfg, DefaultOllamaModel, DefaultOllamaBaseURL, cache)}
	o.call = o.callAPI
	return o, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}

	if err := o.postJSON(ctx, o.baseURL+"/api/embed", nil, reqBody, &apiResp); err != nil {
		return nil, err
	}
	return apiResp.Embeddings, nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
