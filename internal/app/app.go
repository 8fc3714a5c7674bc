// Package app wires configuration into the scanner, vector store, embedder
// and chat backend shared by the CLI commands and the MCP server.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dshills/codetalk/internal/config"
	"github.com/dshills/codetalk/internal/embedder"
	"github.com/dshills/codetalk/internal/history"
	"github.com/dshills/codetalk/internal/indexer"
	"github.com/dshills/codetalk/internal/llm"
	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/internal/orchestrator"
	"github.com/dshills/codetalk/internal/scanner"
	"github.com/dshills/codetalk/internal/storage"
	"github.com/dshills/codetalk/internal/vectorstore"
	"github.com/dshills/codetalk/pkg/types"
)

// embeddingCacheSize bounds the per-process embedding cache
const embeddingCacheSize = 1000

// BuildReport describes one rebuild
type BuildReport struct {
	Scan  *scanner.Result
	Stats *indexer.Statistics
}

// App owns the index for one codebase. Rebuilds take the write lock and
// queries the read lock, so a build never overlaps a query.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	embedder embedder.Embedder
	backend  llm.Backend
	store    *vectorstore.Store
	sleep    orchestrator.SleepFunc

	mu    sync.RWMutex
	index *vectorstore.Index
}

// Option configures an App
type Option func(*App)

// WithEmbedder replaces the configured embedding provider
func WithEmbedder(e embedder.Embedder) Option {
	return func(a *App) { a.embedder = e }
}

// WithBackend replaces the configured chat backend
func WithBackend(b llm.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithSleep replaces the retry sleep, mainly for tests
func WithSleep(fn orchestrator.SleepFunc) Option {
	return func(a *App) { a.sleep = fn }
}

// New builds every component from cfg. Provider errors surface here,
// before any network call.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: logging.OrDiscard(logger)}
	for _, opt := range opts {
		opt(a)
	}

	if a.backend == nil {
		backend, err := llm.New(llm.Config{
			Provider:        cfg.LLMProvider,
			APIKey:          cfg.APIKey,
			Model:           cfg.ModelName,
			BaseURL:         cfg.BaseURL,
			SafetyThreshold: cfg.SafetyThreshold,
			Logger:          a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.backend = backend
	}

	if a.embedder == nil {
		emb, err := embedder.New(embedder.Config{
			Provider:  cfg.LLMProvider,
			APIKey:    cfg.APIKey,
			Model:     cfg.EmbeddingModelName,
			BaseURL:   cfg.BaseURL,
			CacheSize: embeddingCacheSize,
		})
		if err != nil {
			return nil, err
		}
		a.embedder = emb
	}

	a.store = vectorstore.New(cfg.IndexPath, a.embedder, vectorstore.WithLogger(a.logger))
	return a, nil
}

// Config returns the configuration the App was built from
func (a *App) Config() *config.Config {
	return a.cfg
}

// Store returns the vector store
func (a *App) Store() *vectorstore.Store {
	return a.store
}

// NewHistory returns an empty conversation sized from configuration
func (a *App) NewHistory() *history.History {
	return history.New(a.cfg.HistorySize)
}

// Scan walks the configured codebase
func (a *App) Scan(ctx context.Context) (*scanner.Result, error) {
	tok, err := scanner.NewTokenizer(a.cfg.TokenEncoding)
	if err != nil {
		return nil, err
	}
	s, err := scanner.New(scanner.Config{
		Root:           a.cfg.CodebasePath,
		Extensions:     a.cfg.EnabledExtensions(),
		IgnorePatterns: a.cfg.IgnorePatterns,
		MaxTokens:      a.cfg.MaxTokenLimit,
		Tokenizer:      tok,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx)
}

// Rebuild clears the index, scans the codebase and builds a fresh index
func (a *App) Rebuild(ctx context.Context) (*BuildReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rebuildLocked(ctx)
}

func (a *App) rebuildLocked(ctx context.Context) (*BuildReport, error) {
	a.closeIndexLocked()
	if err := a.store.Clear(); err != nil {
		return nil, err
	}

	res, err := a.Scan(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := a.store.Build(ctx, res.Documents, indexer.Metadata{
		RootPath:      a.cfg.CodebasePath,
		TotalTokens:   res.TotalTokens,
		BudgetReached: res.BudgetReached,
	})
	if err != nil {
		return nil, err
	}
	return &BuildReport{Scan: res, Stats: stats}, nil
}

// EnsureIndex loads the index, building it first when none exists. The
// report is nil when an existing index was loaded.
func (a *App) EnsureIndex(ctx context.Context) (*BuildReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index != nil {
		return nil, nil
	}

	idx, err := a.store.Load(ctx)
	if err == nil {
		a.index = idx
		return nil, nil
	}
	if !errors.Is(err, vectorstore.ErrStoreNotFound) {
		return nil, err
	}

	a.logger.Info("no index found, building", "path", a.store.Path())
	report, err := a.rebuildLocked(ctx)
	if err != nil {
		return nil, err
	}
	idx, err = a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.index = idx
	return report, nil
}

// Clear closes and deletes the persisted index
func (a *App) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeIndexLocked()
	return a.store.Clear()
}

// Query retrieves the k documents most relevant to text
func (a *App) Query(ctx context.Context, text string, k int) (*types.RetrievalResult, error) {
	var res *types.RetrievalResult
	err := a.withIndex(ctx, func(idx *vectorstore.Index) error {
		var err error
		res, err = idx.Query(ctx, text, k)
		return err
	})
	return res, err
}

// Search retrieves up to k documents matching f, ranked by similarity to text
func (a *App) Search(ctx context.Context, text string, k int, f vectorstore.Filters) (*types.RetrievalResult, error) {
	var res *types.RetrievalResult
	err := a.withIndex(ctx, func(idx *vectorstore.Index) error {
		var err error
		res, err = idx.Search(ctx, text, k, f)
		return err
	})
	return res, err
}

// Answer runs one question through the orchestrator
func (a *App) Answer(ctx context.Context, question string, hist *history.History, out io.Writer) (*orchestrator.Result, error) {
	var res *orchestrator.Result
	err := a.withIndex(ctx, func(idx *vectorstore.Index) error {
		o := orchestrator.New(a.backend, idx, &orchestrator.Config{
			TopK:              a.cfg.TopK,
			RetryBaseInterval: a.cfg.RetryBaseInterval,
			Sleep:             a.sleep,
			Logger:            a.logger,
		})
		var err error
		res, err = o.Answer(ctx, question, hist, out)
		return err
	})
	return res, err
}

// Status reports on the persisted index
func (a *App) Status(ctx context.Context) (*storage.Status, error) {
	var status *storage.Status
	err := a.withIndex(ctx, func(idx *vectorstore.Index) error {
		var err error
		status, err = idx.Status(ctx)
		return err
	})
	return status, err
}

// Close releases the index, the embedder and idle connections
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeIndexLocked()
	return a.embedder.Close()
}

// withIndex runs fn under the read lock with the open index, loading it
// on first use
func (a *App) withIndex(ctx context.Context, fn func(idx *vectorstore.Index) error) error {
	for {
		a.mu.RLock()
		if a.index != nil {
			defer a.mu.RUnlock()
			return fn(a.index)
		}
		a.mu.RUnlock()

		if err := a.loadIndex(ctx); err != nil {
			return err
		}
	}
}

// loadIndex opens the persisted index unless another caller already has
func (a *App) loadIndex(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index != nil {
		return nil
	}
	idx, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	a.index = idx
	return nil
}

func (a *App) closeIndexLocked() {
	if a.index == nil {
		return
	}
	if err := a.index.Close(); err != nil {
		a.logger.Warn("closing index", "error", err)
	}
	a.index = nil
}
