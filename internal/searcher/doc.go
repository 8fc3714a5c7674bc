// Package searcher ranks indexed documents by semantic similarity to a query.
//
// A query is embedded with the same provider the index was built with,
// every stored vector is scored by cosine similarity, and the top documents
// are returned in rank order with their full content:
//
//	s := searcher.NewSearcher(store, emb)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "where are sessions validated",
//	    Limit: 5,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n", r.Rank, r.Document.SourcePath, r.Score)
//	}
//
// # Determinism
//
// For a fixed snapshot and query text the ranking is stable: equal scores
// are ordered by document insertion order.
//
// # Empty Queries
//
// Blank query text is rejected with ErrEmptyQuery. There is no "return
// everything" mode.
//
// # Caching
//
// With UseCache set, responses are kept in an LRU cache
// (hashicorp/golang-lru) keyed by snapshot ID, query text, limit and
// filters. Rebuilding the index produces a new snapshot ID, so cached
// entries from an old index are never served.
package searcher
