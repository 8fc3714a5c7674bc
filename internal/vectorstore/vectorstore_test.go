package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codetalk/internal/embedder"
	"github.com/dshills/codetalk/internal/embedder/embeddertest"
	"github.com/dshills/codetalk/internal/indexer"
	"github.com/dshills/codetalk/pkg/types"
)

func fooBarDocuments() []types.Document {
	return []types.Document{
		types.NewDocument("a.py", "def foo(): pass", 4),
		types.NewDocument("b.py", "def bar(): pass", 4),
	}
}

// gatedEmbedder blocks every batch until release is closed
type gatedEmbedder struct {
	*embeddertest.Embedder
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Embedder.GenerateBatch(ctx, req)
}

func TestStore_BuildLoadQuery(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "index"), embeddertest.New())
	assert.False(t, store.Exists())

	stats, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{RootPath: "/code", TotalTokens: 8})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentsIndexed)
	assert.True(t, store.Exists())
	assert.NoFileExists(t, store.Path()+".building")

	idx, err := store.Load(ctx)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, stats.SnapshotID, idx.Snapshot().ID)
	assert.Equal(t, "/code", idx.Snapshot().RootPath)

	res, err := idx.Query(ctx, "what does foo do?", 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "what does foo do?", res.Query)
	assert.Equal(t, "a.py", res.Results[0].Document.SourcePath)
	assert.Equal(t, "def foo(): pass", res.Results[0].Document.Content)

	res, err = idx.Query(ctx, "what does foo do?", 1)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	status, err := idx.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.DocumentsCount)
	assert.Equal(t, 2, status.EmbeddingsCount)
}

func TestStore_QueryDeterministic(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), embeddertest.New())
	_, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)

	idx, err := store.Load(ctx)
	require.NoError(t, err)
	first, err := idx.Query(ctx, "pass", 2)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Reload and query again; identical inputs give identical order
	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	defer reloaded.Close()

	second, err := reloaded.Query(ctx, "pass", 2)
	require.NoError(t, err)
	assert.Equal(t, first.Documents(), second.Documents())
	assert.Equal(t, "a.py", second.Results[0].Document.SourcePath)
}

func TestStore_QueryEmpty(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), embeddertest.New())
	_, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)

	idx, err := store.Load(ctx)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Query(ctx, "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestStore_LoadMissing(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nothing"), embeddertest.New())

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStore_LoadWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, embeddertest.New())

	// A file at the index path that was never finished by a build
	db, err := os.Create(store.Path())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStore_RebuildReplaces(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), embeddertest.New())

	first, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)

	second, err := store.Build(ctx, []types.Document{types.NewDocument("c.go", "package c", 2)}, indexer.Metadata{})
	require.NoError(t, err)
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)

	idx, err := store.Load(ctx)
	require.NoError(t, err)
	defer idx.Close()

	res, err := idx.Query(ctx, "foo", 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "c.go", res.Results[0].Document.SourcePath)
}

func TestStore_FailedBuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	emb := embeddertest.New()
	store := New(t.TempDir(), emb)

	_, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)

	emb.FailWith(errors.New("provider down"))
	_, err = store.Build(ctx, []types.Document{types.NewDocument("c.go", "package c", 2)}, indexer.Metadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexBuild)
	assert.NoFileExists(t, store.Path()+".building")

	emb.FailWith(nil)
	idx, err := store.Load(ctx)
	require.NoError(t, err)
	defer idx.Close()

	status, err := idx.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.DocumentsCount)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	store := New(dir, embeddertest.New())

	// Clearing a store that never existed succeeds
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, err := store.Build(ctx, fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)
	require.True(t, store.Exists())

	require.NoError(t, store.Clear())
	assert.False(t, store.Exists())
	assert.NoDirExists(t, dir)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrStoreNotFound)

	// Idempotent after a real clear too
	assert.NoError(t, store.Clear())
}

func TestStore_ClearKeepsSharedDirectory(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep me"), 0o644))

	store := New(dir, embeddertest.New())
	_, err := store.Build(context.Background(), fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)

	require.NoError(t, store.Clear())
	assert.False(t, store.Exists())
	assert.FileExists(t, keep)
}

func TestStore_ConcurrentBuild(t *testing.T) {
	emb := &gatedEmbedder{
		Embedder: embeddertest.New(),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	store := New(t.TempDir(), emb)

	done := make(chan error, 1)
	go func() {
		_, err := store.Build(context.Background(), fooBarDocuments(), indexer.Metadata{})
		done <- err
	}()

	select {
	case <-emb.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first build never reached the embedder")
	}

	_, err := store.Build(context.Background(), fooBarDocuments(), indexer.Metadata{})
	assert.ErrorIs(t, err, ErrBuildInProgress)
	assert.ErrorIs(t, err, indexer.ErrBuildInProgress)

	close(emb.release)
	require.NoError(t, <-done)

	// The guard is released once the first build finishes
	_, err = store.Build(context.Background(), fooBarDocuments(), indexer.Metadata{})
	require.NoError(t, err)
	assert.True(t, store.Exists())
}

func TestIndex_SearchFilters(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), embeddertest.New())
	docs := append(fooBarDocuments(), types.NewDocument("web/foo.js", "function foo() {}", 4))
	_, err := store.Build(ctx, docs, indexer.Metadata{})
	require.NoError(t, err)

	idx, err := store.Load(ctx)
	require.NoError(t, err)
	defer idx.Close()

	res, err := idx.Search(ctx, "foo", 10, Filters{FileTypes: []string{"js"}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "web/foo.js", res.Results[0].Document.SourcePath)

	res, err = idx.Search(ctx, "foo", 10, Filters{PathPattern: "*.py"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)

	// The zero value behaves like Query
	all, err := idx.Search(ctx, "foo", 10, Filters{})
	require.NoError(t, err)
	plain, err := idx.Query(ctx, "foo", 10)
	require.NoError(t, err)
	assert.Equal(t, len(plain.Results), len(all.Results))
	assert.Len(t, all.Results, 3)
}
