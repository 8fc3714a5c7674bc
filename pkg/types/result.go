package types

// SearchResult is one ranked hit returned by a vector query
type SearchResult struct {
	DocumentID int64
	Rank       int     // Position in result set (1-based)
	Score      float64 // Cosine similarity in [-1, 1]
	Document   Document
}

// RetrievalResult is the ranked top-k list for one query.
// Order is significant and must be preserved through context assembly.
type RetrievalResult struct {
	Query   string
	Results []SearchResult
}

// Documents returns the ranked documents
func (r *RetrievalResult) Documents() []Document {
	docs := make([]Document, len(r.Results))
	for i, res := range r.Results {
		docs[i] = res.Document
	}
	return docs
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.DocumentID == 0 {
		return ErrInvalidDocumentID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < -1 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	return sr.Document.Validate()
}
