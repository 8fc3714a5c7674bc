// Package vectorstore is the durable nearest-neighbor index over embedded
// documents. One store lives in a fixed directory and holds exactly one
// snapshot; building replaces it wholesale.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/codetalk/internal/embedder"
	"github.com/dshills/codetalk/internal/indexer"
	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/internal/searcher"
	"github.com/dshills/codetalk/internal/storage"
	"github.com/dshills/codetalk/pkg/types"
)

// IndexFileName is the database file inside the store directory
const IndexFileName = "index.db"

var (
	// ErrStoreNotFound is returned when nothing is persisted at the store location
	ErrStoreNotFound = errors.New("vector store not found")
	// ErrIndexBuild wraps storage or embedding failures during Build
	ErrIndexBuild = errors.New("index build failed")
	// ErrIndexClear wraps filesystem failures during Clear
	ErrIndexClear = errors.New("index clear failed")
	// ErrEmptyQuery is returned by Query for blank text
	ErrEmptyQuery = searcher.ErrEmptyQuery
	// ErrBuildInProgress is returned by Build while another build of the same store runs
	ErrBuildInProgress = indexer.ErrBuildInProgress
)

// Store manages the persisted index in one directory
type Store struct {
	dir      string
	embedder embedder.Embedder
	logger   *slog.Logger
	building sync.Mutex // held for the duration of Build
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used by builds
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store rooted at dir. Nothing touches disk until Build.
func New(dir string, emb embedder.Embedder, opts ...Option) *Store {
	s := &Store{dir: dir, embedder: emb}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the index file location
func (s *Store) Path() string {
	return filepath.Join(s.dir, IndexFileName)
}

// Exists reports whether a persisted index is present
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && info.Mode().IsRegular()
}

// Build embeds docs and persists a fresh index, replacing any prior one.
// The new index is written beside the old one and renamed into place, so a
// failed build leaves the previous index intact. A second Build while one is
// running fails with ErrBuildInProgress.
func (s *Store) Build(ctx context.Context, docs []types.Document, meta indexer.Metadata) (*indexer.Statistics, error) {
	if !s.building.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBuildInProgress, s.dir)
	}
	defer s.building.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIndexBuild, s.dir, err)
	}

	tmpPath := s.Path() + ".building"
	removeDBFiles(tmpPath)

	db, err := storage.NewSQLiteStorage(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}

	stats, err := indexer.New(db, s.embedder, &indexer.Config{Logger: s.logger}).Build(ctx, docs, meta)
	closeErr := db.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		removeDBFiles(tmpPath)
		return nil, fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}

	removeDBFiles(s.Path())
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		removeDBFiles(tmpPath)
		return nil, fmt.Errorf("%w: install index: %w", ErrIndexBuild, err)
	}

	s.logger.Info("vector store written", "path", s.Path(), "documents", stats.DocumentsIndexed)
	return stats, nil
}

// Load opens the persisted index for querying
func (s *Store) Load(ctx context.Context) (*Index, error) {
	if !s.Exists() {
		return nil, fmt.Errorf("%w at %s", ErrStoreNotFound, s.dir)
	}

	db, err := storage.NewSQLiteStorage(s.Path())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	snap, err := db.GetSnapshot(ctx)
	if err != nil {
		_ = db.Close()
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s holds no snapshot", ErrStoreNotFound, s.Path())
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if s.embedder.Provider() != snap.Provider || s.embedder.Model() != snap.Model {
		s.logger.Warn("index was built with a different embedding model",
			"index_provider", snap.Provider, "index_model", snap.Model,
			"provider", s.embedder.Provider(), "model", s.embedder.Model())
	}

	return &Index{
		db:       db,
		searcher: searcher.NewSearcher(db, s.embedder),
		snapshot: snap,
	}, nil
}

// Clear deletes the persisted index. Clearing a missing index succeeds.
func (s *Store) Clear() error {
	for _, p := range dbFiles(s.Path()) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrIndexClear, err)
		}
	}
	// Leave non-empty directories alone; they may be shared
	if err := os.Remove(s.dir); err != nil && !errors.Is(err, os.ErrNotExist) && !isDirNotEmpty(s.dir) {
		return fmt.Errorf("%w: %w", ErrIndexClear, err)
	}
	return nil
}

// Index is a loaded, queryable store
type Index struct {
	db       *storage.SQLiteStorage
	searcher *searcher.Searcher
	snapshot *storage.Snapshot
}

// Filters narrows a Search. The zero value matches every document.
type Filters struct {
	FileTypes    []string // Extensions without the dot, e.g. "go"
	PathPattern  string   // Glob over the source path, e.g. "internal/*"
	MinRelevance float64  // Minimum cosine similarity
}

func (f Filters) empty() bool {
	return len(f.FileTypes) == 0 && f.PathPattern == "" && f.MinRelevance <= 0
}

// Query returns up to k documents ranked by similarity to text
func (ix *Index) Query(ctx context.Context, text string, k int) (*types.RetrievalResult, error) {
	return ix.Search(ctx, text, k, Filters{})
}

// Search is Query restricted to documents matching f
func (ix *Index) Search(ctx context.Context, text string, k int, f Filters) (*types.RetrievalResult, error) {
	req := searcher.SearchRequest{
		Query:    text,
		Limit:    k,
		UseCache: true,
	}
	if !f.empty() {
		req.Filters = &storage.SearchFilters{
			FileTypes:    f.FileTypes,
			PathPattern:  f.PathPattern,
			MinRelevance: f.MinRelevance,
		}
	}

	resp, err := ix.searcher.Search(ctx, req)
	if errors.Is(err, searcher.ErrNotIndexed) {
		return nil, fmt.Errorf("%w: %v", ErrStoreNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &types.RetrievalResult{Query: text, Results: resp.Results}, nil
}

// Snapshot describes the build this index came from
func (ix *Index) Snapshot() storage.Snapshot {
	return *ix.snapshot
}

// Status reports counts and health of the loaded index
func (ix *Index) Status(ctx context.Context) (*storage.Status, error) {
	return ix.db.GetStatus(ctx)
}

// Close releases the database handle
func (ix *Index) Close() error {
	return ix.db.Close()
}

// dbFiles lists the database file and its SQLite sidecars
func dbFiles(path string) []string {
	return []string{path, path + "-wal", path + "-shm", path + "-journal"}
}

func removeDBFiles(path string) {
	for _, p := range dbFiles(path) {
		_ = os.Remove(p)
	}
}

func isDirNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
