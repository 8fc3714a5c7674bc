package llm

import (
	"context"
	"fmt"
)

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Ollama talks to a local Ollama server. Both calls are single-shot; the
// whole answer reaches the sink in one piece.
type Ollama struct {
	*client
}

// NewOllama creates an Ollama backend; no API key is needed
func NewOllama(cfg Config) (*Ollama, error) {
	return &Ollama{client: newClient(ProviderOllama, cfg, DefaultOllamaBaseURL)}, nil
}

func (o *Ollama) invoke(ctx context.Context, prompt string) (string, error) {
	var resp ollamaResponse
	req := ollamaRequest{Model: o.model, Prompt: prompt, Stream: false}
	if err := o.postJSON(ctx, o.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	if !resp.Done && resp.Response == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyResponse, o.name)
	}
	return resp.Response, nil
}

// Rewrite asks the local model for a standalone question
func (o *Ollama) Rewrite(ctx context.Context, question, history string) (string, error) {
	return o.invoke(ctx, RewritePrompt(question, history))
}

// Generate returns the full answer after a single call
func (o *Ollama) Generate(ctx context.Context, prompt string, sink Sink) (string, error) {
	text, err := o.invoke(ctx, prompt)
	if err != nil {
		return "", err
	}
	if sink != nil && text != "" {
		if err := sink(text); err != nil {
			return "", err
		}
	}
	return text, nil
}
