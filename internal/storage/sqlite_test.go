package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func insertTestDocument(t *testing.T, s Storage, path, content string) *Document {
	t.Helper()
	doc := &Document{
		SourcePath: path,
		FileType:   strings.TrimPrefix(filepath.Ext(path), "."),
		Content:    content,
		TokenCount: len(content) / 4,
	}
	require.NoError(t, s.InsertDocument(context.Background(), doc))
	return doc
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
	assert.Equal(t, ":memory:", storage.Path())
}

func TestNewSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	doc := insertTestDocument(t, storage, "main.go", "package main")
	require.NoError(t, storage.Close())

	// Reopening keeps the data
	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "package main", got.Content)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	_, err := storage.GetSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	snap := &Snapshot{
		ID:            "3f1c2b7e-0000-4000-8000-000000000001",
		RootPath:      "/src/app",
		DocumentCount: 2,
		TotalTokens:   120,
		BudgetReached: true,
		Provider:      "openai",
		Model:         "text-embedding-3-small",
		Dimension:     1536,
	}
	require.NoError(t, storage.CreateSnapshot(ctx, snap))
	assert.Equal(t, CurrentSchemaVersion, snap.SchemaVersion)
	assert.False(t, snap.CreatedAt.IsZero())

	got, err := storage.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "/src/app", got.RootPath)
	assert.Equal(t, 2, got.DocumentCount)
	assert.Equal(t, 120, got.TotalTokens)
	assert.True(t, got.BudgetReached)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, 1536, got.Dimension)

	// A second snapshot replaces the first
	next := &Snapshot{ID: "3f1c2b7e-0000-4000-8000-000000000002", RootPath: "/src/app", Provider: "ollama", Model: "nomic-embed-text"}
	require.NoError(t, storage.CreateSnapshot(ctx, next))

	got, err = storage.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, got.ID)
}

func TestSnapshot_MissingID(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	err := storage.CreateSnapshot(context.Background(), &Snapshot{RootPath: "/x"})
	assert.Error(t, err)
}

func TestInsertDocument(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	content := strings.Repeat("def handler(event):\n    return event\n", 50)
	doc := insertTestDocument(t, storage, "app/handler.py", content)
	assert.Greater(t, doc.ID, int64(0))
	assert.Equal(t, sha256.Sum256([]byte(content)), doc.ContentHash)

	got, err := storage.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "app/handler.py", got.SourcePath)
	assert.Equal(t, "py", got.FileType)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.TokenCount, got.TokenCount)

	// Duplicate path
	err = storage.InsertDocument(ctx, &Document{SourcePath: "app/handler.py", Content: "x"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Missing path
	err = storage.InsertDocument(ctx, &Document{Content: "x"})
	assert.Error(t, err)
}

func TestInsertDocument_Chunks(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	first := &Document{SourcePath: "lib/big.py", FileType: "py", Content: "def a(): pass"}
	second := &Document{SourcePath: "lib/big.py", Chunk: 1, FileType: "py", Content: "def b(): pass"}
	require.NoError(t, storage.InsertDocument(ctx, first))
	require.NoError(t, storage.InsertDocument(ctx, second))

	got, err := storage.GetDocument(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "lib/big.py", got.SourcePath)
	assert.Equal(t, 1, got.Chunk)
	assert.Equal(t, "def b(): pass", got.Content)

	err = storage.InsertDocument(ctx, &Document{SourcePath: "lib/big.py", Chunk: 1, Content: "x"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestInsertDocument_CompressesContent(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	content := strings.Repeat("a", 10000)
	doc := insertTestDocument(t, storage, "a.txt", content)

	var stored []byte
	err := storage.db.QueryRow("SELECT content FROM documents WHERE id = ?", doc.ID).Scan(&stored)
	require.NoError(t, err)
	assert.Less(t, len(stored), len(content))
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetDocument(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDocuments_PreservesOrder(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	a := insertTestDocument(t, storage, "a.py", "alpha")
	b := insertTestDocument(t, storage, "b.py", "beta")
	c := insertTestDocument(t, storage, "c.py", "gamma")

	docs, err := storage.GetDocuments(ctx, []int64{c.ID, a.ID, 999, b.ID})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c.py", docs[0].SourcePath)
	assert.Equal(t, "a.py", docs[1].SourcePath)
	assert.Equal(t, "b.py", docs[2].SourcePath)

	docs, err = storage.GetDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListDocuments(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	docs, err := storage.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	insertTestDocument(t, storage, "z.go", "package z")
	insertTestDocument(t, storage, "a.go", "package a")

	docs, err = storage.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "z.go", docs[0].SourcePath)
	assert.Equal(t, "a.go", docs[1].SourcePath)
}

func TestInsertEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	doc := insertTestDocument(t, storage, "main.go", "package main")

	vector := []float32{0.1, 0.2, 0.3}
	emb := &Embedding{DocumentID: doc.ID, Vector: SerializeVector(vector)}
	require.NoError(t, storage.InsertEmbedding(ctx, emb))
	assert.Equal(t, 3, emb.Dimension)

	got, err := storage.GetEmbedding(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, vector, DeserializeVector(got.Vector))

	// Replacing keeps one row per document
	require.NoError(t, storage.InsertEmbedding(ctx, &Embedding{DocumentID: doc.ID, Vector: SerializeVector([]float32{1, 0})}))
	got, err = storage.GetEmbedding(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dimension)

	_, err = storage.GetEmbedding(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	err = storage.InsertEmbedding(ctx, &Embedding{DocumentID: doc.ID})
	assert.Error(t, err)
}

func TestInsertEmbedding_UnknownDocument(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	err := storage.InsertEmbedding(context.Background(), &Embedding{DocumentID: 77, Vector: SerializeVector([]float32{1})})
	assert.Error(t, err) // Foreign key violation
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.Snapshot)
	assert.Equal(t, 0, status.DocumentsCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.EmbeddingsAvailable)

	doc := insertTestDocument(t, storage, "main.go", "package main")
	require.NoError(t, storage.InsertEmbedding(ctx, &Embedding{DocumentID: doc.ID, Vector: SerializeVector([]float32{1, 0})}))
	require.NoError(t, storage.CreateSnapshot(ctx, &Snapshot{ID: "s1", RootPath: "/r", Provider: "test", Model: "m"}))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.Snapshot)
	assert.Equal(t, "s1", status.Snapshot.ID)
	assert.Equal(t, 1, status.DocumentsCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.True(t, status.Health.EmbeddingsAvailable)
	assert.Greater(t, status.IndexSizeMB, 0.0)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	// Test commit
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	doc := &Document{SourcePath: "kept.go", FileType: "go", Content: "package kept"}
	require.NoError(t, tx.InsertDocument(ctx, doc))
	require.NoError(t, tx.InsertEmbedding(ctx, &Embedding{DocumentID: doc.ID, Vector: SerializeVector([]float32{1, 1})}))

	// Reads inside the transaction see its writes
	inTx, err := tx.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "package kept", inTx.Content)

	require.NoError(t, tx.Commit())

	retrieved, err := storage.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)

	// Test rollback
	tx2, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	doc2 := &Document{SourcePath: "dropped.go", FileType: "go", Content: "package dropped"}
	require.NoError(t, tx2.InsertDocument(ctx, doc2))
	require.NoError(t, tx2.Rollback())

	_, err = storage.GetDocument(ctx, doc2.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Nested transactions are rejected
	tx3, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx3.Rollback() }()
	_, err = tx3.BeginTx(ctx)
	assert.Error(t, err)
}
