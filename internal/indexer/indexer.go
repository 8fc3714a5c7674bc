package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codetalk/internal/embedder"
	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/internal/storage"
	"github.com/dshills/codetalk/pkg/types"
)

// DefaultBatchSize is the number of documents embedded per provider request
const DefaultBatchSize = 32

var (
	// ErrBuildInProgress is returned when Build is called while another build runs
	ErrBuildInProgress = errors.New("index build already in progress")
	// ErrEmbedding wraps provider failures during a build
	ErrEmbedding = errors.New("embedding documents failed")
)

// Indexer coordinates the build pipeline: validate -> embed -> store
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
	building sync.Mutex // held for the duration of Build

	// Worker pool configuration
	workers   int
	batchSize int
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int // Concurrent embedding requests (default: runtime.NumCPU())
	BatchSize int // Documents per embedding request (default: DefaultBatchSize)
	Logger    *slog.Logger
}

// Metadata describes the scan a build was produced from
type Metadata struct {
	RootPath      string
	TotalTokens   int
	BudgetReached bool
}

// Statistics contains statistics about the build operation
type Statistics struct {
	SnapshotID        string
	DocumentsIndexed  int
	DocumentsSkipped  int
	EmbeddingsCreated int
	Batches           int
	Dimension         int
	Duration          time.Duration
}

// New creates a new Indexer writing to store with vectors from emb
func New(store storage.Storage, emb embedder.Embedder, cfg *Config) *Indexer {
	if cfg == nil {
		cfg = &Config{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Indexer{
		storage:   store,
		embedder:  emb,
		logger:    logging.OrDiscard(cfg.Logger),
		workers:   workers,
		batchSize: batchSize,
	}
}

// Build embeds every non-blank document and writes them with a fresh
// snapshot in one transaction. A failed build writes nothing.
func (idx *Indexer) Build(ctx context.Context, docs []types.Document, meta Metadata) (*Statistics, error) {
	if !idx.building.TryLock() {
		return nil, ErrBuildInProgress
	}
	defer idx.building.Unlock()

	startTime := time.Now()
	stats := &Statistics{}

	accepted := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			idx.logger.Info("skipping document", "path", doc.SourcePath, "reason", err)
			stats.DocumentsSkipped++
			continue
		}
		accepted = append(accepted, doc)
	}

	vectors, batches, err := idx.embedDocuments(ctx, accepted)
	if err != nil {
		return nil, err
	}
	stats.Batches = batches

	dimension := 0
	for i, v := range vectors {
		if dimension == 0 {
			dimension = len(v)
		}
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: %s has %d, expected %d",
				embedder.ErrDimensionMismatch, accepted[i].SourcePath, len(v), dimension)
		}
	}

	snapshot := &storage.Snapshot{
		ID:            uuid.NewString(),
		RootPath:      meta.RootPath,
		DocumentCount: len(accepted),
		TotalTokens:   meta.TotalTokens,
		BudgetReached: meta.BudgetReached,
		Provider:      idx.embedder.Provider(),
		Model:         idx.embedder.Model(),
		Dimension:     dimension,
	}
	if err := idx.writeSnapshot(ctx, snapshot, accepted, vectors); err != nil {
		return nil, err
	}

	stats.SnapshotID = snapshot.ID
	stats.DocumentsIndexed = len(accepted)
	stats.EmbeddingsCreated = len(vectors)
	stats.Dimension = dimension
	stats.Duration = time.Since(startTime)

	idx.logger.Info("index built",
		"snapshot", snapshot.ID,
		"documents", stats.DocumentsIndexed,
		"skipped", stats.DocumentsSkipped,
		"batches", stats.Batches,
		"duration", stats.Duration)
	return stats, nil
}

// embedDocuments requests embeddings in batches, at most idx.workers in flight.
// The returned slice is index-aligned with docs.
func (idx *Indexer) embedDocuments(ctx context.Context, docs []types.Document) ([][]float32, int, error) {
	vectors := make([][]float32, len(docs))
	if len(docs) == 0 {
		return vectors, 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	var batches int32
	for start := 0; start < len(docs); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(docs) {
			end = len(docs)
		}

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = docs[i].Content
			}

			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("%w: batch %d-%d: %w", ErrEmbedding, start, end, err)
			}
			if len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("%w: got %d embeddings for %d documents",
					ErrEmbedding, len(resp.Embeddings), len(texts))
			}

			// Each goroutine owns a disjoint range of vectors
			for i, emb := range resp.Embeddings {
				vectors[start+i] = emb.Vector
			}
			atomic.AddInt32(&batches, 1)
			idx.logger.Debug("embedded batch", "from", start, "to", end)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return vectors, int(batches), nil
}

// writeSnapshot stores documents, vectors and the snapshot row atomically
func (idx *Indexer) writeSnapshot(ctx context.Context, snapshot *storage.Snapshot, docs []types.Document, vectors [][]float32) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		row := &storage.Document{
			SourcePath: doc.SourcePath,
			Chunk:      doc.Chunk,
			FileType:   doc.FileType,
			Content:    doc.Content,
			TokenCount: doc.TokenCount,
		}
		if err := tx.InsertDocument(ctx, row); err != nil {
			return fmt.Errorf("failed to store %s: %w", doc.SourcePath, err)
		}

		emb := &storage.Embedding{
			DocumentID: row.ID,
			Vector:     storage.SerializeVector(vectors[i]),
			Dimension:  len(vectors[i]),
		}
		if err := tx.InsertEmbedding(ctx, emb); err != nil {
			return fmt.Errorf("failed to store embedding for %s: %w", doc.SourcePath, err)
		}
	}

	if err := tx.CreateSnapshot(ctx, snapshot); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
