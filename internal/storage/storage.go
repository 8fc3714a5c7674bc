package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting and querying one index snapshot
type Storage interface {
	// Snapshot operations
	CreateSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context) (*Snapshot, error)

	// Document operations
	InsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, documentID int64) (*Document, error)
	GetDocuments(ctx context.Context, documentIDs []int64) ([]*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)

	// Embedding operations
	InsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Snapshot describes the single ingestion run an index was built from
type Snapshot struct {
	ID            string // UUID
	RootPath      string
	DocumentCount int
	TotalTokens   int
	BudgetReached bool
	Provider      string
	Model         string
	Dimension     int
	SchemaVersion string
	CreatedAt     time.Time
}

// Document is an indexed source file
type Document struct {
	ID          int64
	SourcePath  string // Relative to codebase root
	Chunk       int    // Unique together with SourcePath
	FileType    string
	Content     string // Stored zstd-compressed
	ContentHash [32]byte
	TokenCount  int
	CreatedAt   time.Time
}

// Embedding represents a vector embedding for a document
type Embedding struct {
	ID         int64
	DocumentID int64
	Vector     []byte // Serialized float32 array
	Dimension  int
	CreatedAt  time.Time
}

// SearchFilters narrows vector search candidates
type SearchFilters struct {
	FileTypes    []string // Extensions without dot
	PathPattern  string   // SQLite GLOB over source_path
	MinRelevance float64  // Minimum cosine similarity
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	DocumentID      int64
	SimilarityScore float64
}

// Status contains statistics about the stored index
type Status struct {
	Snapshot        *Snapshot
	DocumentsCount  int
	EmbeddingsCount int
	IndexSizeMB     float64
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
}
