package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codetalk/internal/embedder"
	"github.com/dshills/codetalk/internal/storage"
	"github.com/dshills/codetalk/pkg/types"
)

const (
	// DefaultLimit is the number of documents returned when a request sets none
	DefaultLimit = 5
	// MaxLimit caps a single request
	MaxLimit = 100
	// DefaultCacheSize is the number of responses kept in the LRU cache
	DefaultCacheSize = 256
	// DefaultCacheTTL bounds how long a cached response is served
	DefaultCacheTTL = time.Hour
)

var (
	// ErrEmptyQuery is returned for blank query text
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrNotIndexed is returned when storage holds no snapshot
	ErrNotIndexed = errors.New("no index snapshot")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	Filters  *storage.SearchFilters
	UseCache bool // Whether to use query cache
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	SnapshotID   string
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher embeds query text and ranks stored documents against it
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(storage storage.Storage, embedder embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		// Only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage:  storage,
		embedder: embedder,
		cache:    cache,
	}
}

// Search returns up to req.Limit documents ranked by similarity to req.Query
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	snapshot, err := s.storage.GetSnapshot(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotIndexed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	// Keys include the snapshot so a rebuild never serves stale results
	hash := computeQueryHash(snapshot.ID, req)
	if req.UseCache {
		if cached := s.checkCache(hash); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	response, err := s.vectorSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	response.SnapshotID = snapshot.ID
	response.Duration = time.Since(startTime)

	if req.UseCache {
		s.storeInCache(hash, req.CacheTTL, response)
	}

	return response, nil
}

// vectorSearch embeds the query and hydrates the ranked documents
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	vectorResults, err := s.storage.SearchVector(ctx, embedding.Vector, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	results, err := s.fetchResults(ctx, vectorResults)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
	}, nil
}

// fetchResults loads documents for ranked hits, preserving rank order
func (s *Searcher) fetchResults(ctx context.Context, ranked []storage.VectorResult) ([]types.SearchResult, error) {
	ids := make([]int64, len(ranked))
	for i, vr := range ranked {
		ids[i] = vr.DocumentID
	}

	docs, err := s.storage.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	byID := make(map[int64]*storage.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]types.SearchResult, 0, len(ranked))
	for _, vr := range ranked {
		doc, ok := byID[vr.DocumentID]
		if !ok {
			continue // Skip documents that can't be loaded
		}
		results = append(results, types.SearchResult{
			DocumentID: vr.DocumentID,
			Rank:       len(results) + 1,
			Score:      vr.SimilarityScore,
			Document: types.Document{
				Content:    doc.Content,
				SourcePath: doc.SourcePath,
				FileType:   doc.FileType,
				TokenCount: doc.TokenCount,
				Chunk:      doc.Chunk,
			},
		})
	}

	return results, nil
}

// validateRequest rejects blank queries and applies limit defaults
func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(hash [32]byte) *SearchResponse {
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		// Remove expired entry - need write lock
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response under hash
func (s *Searcher) storeInCache(hash [32]byte, ttl time.Duration, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(ttl),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a copy of a SearchResponse; documents hold only values
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeQueryHash computes a unique hash for a search request against a snapshot
func computeQueryHash(snapshotID string, req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(snapshotID)
	data.WriteString("|")
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(strings.Join(req.Filters.FileTypes, ","))
		data.WriteString("|")
		data.WriteString(req.Filters.PathPattern)
		data.WriteString("|")
		data.WriteString(fmt.Sprintf("%.2f", req.Filters.MinRelevance))
	}

	return sha256.Sum256([]byte(data.String()))
}
