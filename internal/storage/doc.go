// Package storage provides SQLite-based persistence for a vector index.
//
// One database file holds one snapshot: the documents produced by a single
// codebase scan, one embedding per document, and a snapshot row describing
// how the index was built (embedding provider, model and dimension).
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - snapshots: one row describing the ingestion run
//   - documents: source path, file type, zstd-compressed content, SHA-256 hash
//   - embeddings: little-endian float32 vectors keyed by document
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(dir, "index.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	results, err := db.SearchVector(ctx, queryVector, 5, nil)
//	docs, err := db.GetDocuments(ctx, ids)
//
// # Transactions
//
// Builds write every row in one transaction so a failed build leaves no
// partial index behind:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	_ = tx.InsertDocument(ctx, doc)
//	_ = tx.InsertEmbedding(ctx, &storage.Embedding{DocumentID: doc.ID, Vector: storage.SerializeVector(v)})
//	_ = tx.CreateSnapshot(ctx, snap)
//
//	return tx.Commit()
//
// # Vector Search
//
// Search is exhaustive: every stored vector is scored by cosine similarity
// and results are ordered by score, highest first, with equal scores
// ordered by document ID. Vectors whose dimension differs from the query
// are skipped.
//
// # Build Modes
//
// The default build uses the pure-Go modernc.org/sqlite driver. Building
// with -tags cgo_sqlite switches to github.com/mattn/go-sqlite3.
package storage
