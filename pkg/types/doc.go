// Package types provides shared type definitions for codetalk.
//
// Document is the unit of ingestion: one whole source file with its path
// relative to the codebase root and its extension:
//
//	doc := types.NewDocument("internal/app/main.py", content, tokens)
//	// doc.SourcePath == "internal/app/main.py", doc.FileType == "py"
//
// SearchResult and RetrievalResult carry ranked query hits. Ranking order is
// significant: callers assemble prompt context in exactly that order.
package types
