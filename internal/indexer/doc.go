// Package indexer turns scanned documents into a persisted vector index.
//
// A build validates documents, embeds them in batches and writes documents,
// vectors and a snapshot row in a single storage transaction:
//
//	idx := indexer.New(store, emb, &indexer.Config{Logger: logger})
//	stats, err := idx.Build(ctx, result.Documents, indexer.Metadata{
//	    RootPath:      root,
//	    TotalTokens:   result.TotalTokens,
//	    BudgetReached: result.BudgetReached,
//	})
//
// # Concurrency
//
// Embedding requests run on an errgroup limited to Config.Workers
// goroutines; each request carries up to Config.BatchSize documents. The
// first failing request cancels the rest and the build returns without
// touching storage.
//
// Only one build may run per Indexer. A second concurrent call fails fast
// with ErrBuildInProgress instead of queueing.
//
// # Blank Documents
//
// Documents whose content is empty or whitespace are skipped and counted in
// Statistics.DocumentsSkipped; embedding providers reject empty input.
package indexer
