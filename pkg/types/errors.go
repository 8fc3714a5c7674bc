package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDocumentID     = errors.New("invalid document ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between -1 and 1")
	ErrMissingSourcePath     = errors.New("source path is required")
	ErrEmptyContent          = errors.New("content cannot be empty")
)
