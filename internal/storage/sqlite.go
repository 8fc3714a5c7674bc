package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Path returns the database file the storage was opened on
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Snapshot operations

// createSnapshotWithQuerier replaces any existing snapshot row; a store holds one
func createSnapshotWithQuerier(ctx context.Context, q querier, snapshot *Snapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("failed to create snapshot: missing id")
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}

	if snapshot.SchemaVersion == "" {
		snapshot.SchemaVersion = CurrentSchemaVersion
	}
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO snapshots (id, root_path, document_count, total_tokens, budget_reached,
		                       provider, model, dimension, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID, snapshot.RootPath, snapshot.DocumentCount, snapshot.TotalTokens,
		snapshot.BudgetReached, snapshot.Provider, snapshot.Model, snapshot.Dimension,
		snapshot.SchemaVersion, now)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	snapshot.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return createSnapshotWithQuerier(ctx, s.querier(), snapshot)
}

func getSnapshotWithQuerier(ctx context.Context, q querier) (*Snapshot, error) {
	var snap Snapshot
	err := q.QueryRowContext(ctx, `
		SELECT id, root_path, document_count, total_tokens, budget_reached,
		       provider, model, dimension, schema_version, created_at
		FROM snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(
		&snap.ID, &snap.RootPath, &snap.DocumentCount, &snap.TotalTokens, &snap.BudgetReached,
		&snap.Provider, &snap.Model, &snap.Dimension, &snap.SchemaVersion, &snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStorage) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	return getSnapshotWithQuerier(ctx, s.querier())
}

// Document operations

func insertDocumentWithQuerier(ctx context.Context, q querier, doc *Document) error {
	if doc.SourcePath == "" {
		return fmt.Errorf("failed to insert document: missing source path")
	}
	if doc.ContentHash == ([32]byte{}) {
		doc.ContentHash = sha256.Sum256([]byte(doc.Content))
	}

	now := time.Now()
	result, err := q.ExecContext(ctx, `
		INSERT INTO documents (source_path, chunk, file_type, content, content_hash, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.SourcePath, doc.Chunk, doc.FileType, compressContent(doc.Content), doc.ContentHash[:], doc.TokenCount, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %s chunk %d: %w", doc.SourcePath, doc.Chunk, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	doc.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertDocument(ctx context.Context, doc *Document) error {
	return insertDocumentWithQuerier(ctx, s.querier(), doc)
}

const documentColumns = `id, source_path, chunk, file_type, content, content_hash, token_count, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var blob, hash []byte
	if err := row.Scan(&doc.ID, &doc.SourcePath, &doc.Chunk, &doc.FileType, &blob, &hash, &doc.TokenCount, &doc.CreatedAt); err != nil {
		return nil, err
	}
	content, err := decompressContent(blob)
	if err != nil {
		return nil, fmt.Errorf("document %d: %w", doc.ID, err)
	}
	doc.Content = content
	copy(doc.ContentHash[:], hash)
	return &doc, nil
}

func getDocumentWithQuerier(ctx context.Context, q querier, documentID int64) (*Document, error) {
	row := q.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", documentID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	return getDocumentWithQuerier(ctx, s.querier(), documentID)
}

// getDocumentsWithQuerier returns documents in the order of documentIDs; unknown IDs are skipped
func getDocumentsWithQuerier(ctx context.Context, q querier, documentIDs []int64) ([]*Document, error) {
	if len(documentIDs) == 0 {
		return []*Document{}, nil
	}

	placeholders := make([]string, len(documentIDs))
	args := make([]interface{}, len(documentIDs))
	for i, id := range documentIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + documentColumns + " FROM documents WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*Document, len(documentIDs))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *SQLiteStorage) GetDocuments(ctx context.Context, documentIDs []int64) ([]*Document, error) {
	return getDocumentsWithQuerier(ctx, s.querier(), documentIDs)
}

// listDocumentsWithQuerier returns all documents in insertion order
func listDocumentsWithQuerier(ctx context.Context, q querier) ([]*Document, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	return listDocumentsWithQuerier(ctx, s.querier())
}

// Embedding operations

func insertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("failed to insert embedding: empty vector")
	}
	if embedding.Dimension == 0 {
		embedding.Dimension = len(embedding.Vector) / 4
	}

	now := time.Now()
	result, err := q.ExecContext(ctx, `
		INSERT INTO embeddings (document_id, vector, dimension, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			created_at = excluded.created_at
	`, embedding.DocumentID, embedding.Vector, embedding.Dimension, now)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	embedding.ID = id
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return insertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func getEmbeddingWithQuerier(ctx context.Context, q querier, documentID int64) (*Embedding, error) {
	var emb Embedding
	err := q.QueryRowContext(ctx, `
		SELECT id, document_id, vector, dimension, created_at
		FROM embeddings
		WHERE document_id = ?
	`, documentID).Scan(&emb.ID, &emb.DocumentID, &emb.Vector, &emb.Dimension, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error) {
	return getEmbeddingWithQuerier(ctx, s.querier(), documentID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), vector, limit, filters)
}

// Status operations

func getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	snap, err := getSnapshotWithQuerier(ctx, q)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	status.Snapshot = snap

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&status.DocumentsCount); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return getStatusWithQuerier(ctx, s.querier())
}

// isUniqueViolation matches the constraint error text of both SQLite drivers
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Transaction implementations delegate to the shared querier functions

func (t *sqliteTx) CreateSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return createSnapshotWithQuerier(ctx, t.querier(), snapshot)
}

func (t *sqliteTx) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	return getSnapshotWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) InsertDocument(ctx context.Context, doc *Document) error {
	return insertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	return getDocumentWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) GetDocuments(ctx context.Context, documentIDs []int64) ([]*Document, error) {
	return getDocumentsWithQuerier(ctx, t.querier(), documentIDs)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*Document, error) {
	return listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return insertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error) {
	return getEmbeddingWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
