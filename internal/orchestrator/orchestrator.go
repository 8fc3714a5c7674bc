package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/codetalk/internal/history"
	"github.com/dshills/codetalk/internal/llm"
	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/pkg/types"
)

const (
	DefaultTopK              = 5
	DefaultMaxAttempts       = 3
	DefaultRetryBaseInterval = time.Second
)

var (
	// ErrEmptyQuestion is returned for a blank question
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrExhaustedRetries wraps the last transient failure once every attempt failed
	ErrExhaustedRetries = errors.New("max retries reached")
)

// Retriever returns the k documents most relevant to text
type Retriever interface {
	Query(ctx context.Context, text string, k int) (*types.RetrievalResult, error)
}

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config tunes an Orchestrator; zero values use the defaults
type Config struct {
	TopK              int
	MaxAttempts       int
	RetryBaseInterval time.Duration
	Sleep             SleepFunc
	Logger            *slog.Logger
}

// Result describes one answered question
type Result struct {
	Question          string
	EffectiveQuestion string
	Retrieval         *types.RetrievalResult
	Prompt            string
	Answer            string
	Attempts          int
}

// Orchestrator answers questions about an indexed codebase: it rewrites
// follow-ups into standalone questions, retrieves context and streams the
// model's answer.
type Orchestrator struct {
	backend     llm.Backend
	retriever   Retriever
	topK        int
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// New creates an Orchestrator
func New(backend llm.Backend, retriever Retriever, cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}
	o := &Orchestrator{
		backend:     backend,
		retriever:   retriever,
		topK:        cfg.TopK,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseInterval,
		sleep:       cfg.Sleep,
		logger:      logging.OrDiscard(cfg.Logger),
	}
	if o.topK <= 0 {
		o.topK = DefaultTopK
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.baseDelay <= 0 {
		o.baseDelay = DefaultRetryBaseInterval
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// Answer answers question in the context of hist, writing the answer to out
// as it streams. On success the question and answer are appended to hist.
// A nil hist is treated as an empty conversation and nothing is recorded.
func (o *Orchestrator) Answer(ctx context.Context, question string, hist *history.History, out io.Writer) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if out == nil {
		out = io.Discard
	}

	var formatted string
	if hist != nil {
		formatted = hist.Format()
	}

	rewritten, err := o.backend.Rewrite(ctx, question, formatted)
	if err != nil {
		return nil, fmt.Errorf("rewrite question: %w", err)
	}
	effective := llm.EffectiveQuestion(question, rewritten)
	o.logger.Info("effective question", "question", question, "effective", effective)

	retrieval, err := o.retriever.Query(ctx, effective, o.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := BuildPrompt(BuildContext(retrieval.Documents()), formatted, effective)
	o.logger.Debug("assembled prompt", "documents", len(retrieval.Results), "prompt", prompt)

	answer, attempts, err := o.generate(ctx, prompt, out)
	if err != nil {
		return nil, err
	}

	if hist != nil {
		hist.Append(history.RoleHuman, question)
		hist.Append(history.RoleAI, answer)
	}

	return &Result{
		Question:          question,
		EffectiveQuestion: effective,
		Retrieval:         retrieval,
		Prompt:            prompt,
		Answer:            answer,
		Attempts:          attempts,
	}, nil
}

// generate calls the backend, retrying transient stream failures with a
// linear backoff of attempt × base interval
func (o *Orchestrator) generate(ctx context.Context, prompt string, out io.Writer) (string, int, error) {
	sink := func(chunk string) error {
		_, err := io.WriteString(out, chunk)
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		answer, err := o.backend.Generate(ctx, prompt, sink)
		if err == nil {
			return answer, attempt, nil
		}
		if !llm.IsTransient(err) {
			return "", attempt, fmt.Errorf("generate answer: %w", err)
		}
		lastErr = err

		if attempt == o.maxAttempts {
			break
		}
		delay := time.Duration(attempt) * o.baseDelay
		o.logger.Info("stream failed, retrying",
			"attempt", attempt,
			"max_attempts", o.maxAttempts,
			"delay", delay,
			"error", err)
		if err := o.sleep(ctx, delay); err != nil {
			return "", attempt, err
		}
	}

	return "", o.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, o.maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
