package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// doneMarker ends an OpenAI stream
const doneMarker = "[DONE]"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// OpenAI talks to the chat completions API. Generate delivers tokens through
// a TokenBuffer so the sink receives batched text.
type OpenAI struct {
	*client
	flushThreshold int
}

// NewOpenAI creates an OpenAI backend
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, ProviderOpenAI)
	}
	return &OpenAI{
		client:         newClient(ProviderOpenAI, cfg, DefaultOpenAIBaseURL),
		flushThreshold: DefaultFlushThreshold,
	}, nil
}

func (o *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + o.apiKey}
}

func (o *OpenAI) request(prompt string, stream bool) openAIRequest {
	return openAIRequest{
		Model:    o.model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
	}
}

// Rewrite uses a non-streaming completion
func (o *OpenAI) Rewrite(ctx context.Context, question, history string) (string, error) {
	var resp struct {
		Choices []struct {
			Message openAIMessage `json:"message"`
		} `json:"choices"`
	}
	if err := o.postJSON(ctx, o.baseURL+"/v1/chat/completions", o.headers(), o.request(RewritePrompt(question, history), false), &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyResponse, o.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate streams the completion token by token
func (o *OpenAI) Generate(ctx context.Context, prompt string, sink Sink) (string, error) {
	resp, err := o.post(ctx, o.baseURL+"/v1/chat/completions", o.headers(), o.request(prompt, true))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	buf := NewTokenBuffer(sink, o.flushThreshold)
	done := false
	err = readSSE(resp.Body, func(data string) error {
		if done {
			return nil
		}
		if data == doneMarker {
			done = true
			return nil
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("%s: decode stream chunk: %w", o.name, err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := buf.Write(choice.Delta.Content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := buf.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
