package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBlocked is returned when Gemini refuses a prompt on safety grounds
var ErrBlocked = errors.New("prompt blocked by safety filter")

// safetyCategories are the harm categories configured on every request
var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents       []geminiContent       `json:"contents"`
	SafetySettings []geminiSafetySetting `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// text concatenates the parts of the first candidate
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (r *geminiResponse) finished() bool {
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason != ""
}

func (r *geminiResponse) blockReason() string {
	if r.PromptFeedback == nil {
		return ""
	}
	return r.PromptFeedback.BlockReason
}

// Gemini talks to the Generative Language API. Generate streams over SSE
// and reports framing problems as *TransientStreamError.
type Gemini struct {
	*client
	threshold string
}

// NewGemini creates a Gemini backend
func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, ProviderGemini)
	}
	threshold := cfg.SafetyThreshold
	if threshold == "" {
		threshold = DefaultSafetyThreshold
	}
	return &Gemini{
		client:    newClient(ProviderGemini, cfg, DefaultGeminiBaseURL),
		threshold: threshold,
	}, nil
}

// SafetyThreshold returns the threshold applied to every harm category
func (g *Gemini) SafetyThreshold() string {
	return g.threshold
}

func (g *Gemini) request(prompt string) geminiRequest {
	settings := make([]geminiSafetySetting, len(safetyCategories))
	for i, c := range safetyCategories {
		settings[i] = geminiSafetySetting{Category: c, Threshold: g.threshold}
	}
	return geminiRequest{
		Contents:       []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		SafetySettings: settings,
	}
}

func (g *Gemini) endpoint(method string) string {
	model := strings.TrimPrefix(g.model, "models/")
	return fmt.Sprintf("%s/v1beta/models/%s:%s", g.baseURL, model, method)
}

func (g *Gemini) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.apiKey}
}

// Rewrite uses a single generateContent call
func (g *Gemini) Rewrite(ctx context.Context, question, history string) (string, error) {
	var resp geminiResponse
	if err := g.postJSON(ctx, g.endpoint("generateContent"), g.headers(), g.request(RewritePrompt(question, history)), &resp); err != nil {
		return "", err
	}
	if reason := resp.blockReason(); reason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, reason)
	}
	return resp.text(), nil
}

// Generate streams streamGenerateContent and forwards each chunk to sink
func (g *Gemini) Generate(ctx context.Context, prompt string, sink Sink) (string, error) {
	resp, err := g.post(ctx, g.endpoint("streamGenerateContent")+"?alt=sse", g.headers(), g.request(prompt))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var full strings.Builder
	finished := false
	err = readSSE(resp.Body, func(data string) error {
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return &TransientStreamError{Provider: g.name, Err: err}
		}
		if reason := chunk.blockReason(); reason != "" {
			return fmt.Errorf("%w: %s", ErrBlocked, reason)
		}
		if chunk.finished() {
			finished = true
		}
		text := chunk.text()
		if text == "" {
			return nil
		}
		full.WriteString(text)
		if sink != nil {
			return sink(text)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var transient *TransientStreamError
		if errors.As(err, &transient) || errors.Is(err, ErrBlocked) {
			return "", err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return "", &TransientStreamError{Provider: g.name, Err: err}
		}
		return "", err
	}
	if !finished {
		return "", &TransientStreamError{Provider: g.name, Err: io.ErrUnexpectedEOF}
	}

	g.logger.Debug("gemini stream complete", "chars", full.Len())
	return full.String(), nil
}
