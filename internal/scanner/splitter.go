package scanner

import "github.com/dshills/codetalk/pkg/types"

// Splitter turns one accepted file into the documents that get indexed.
// The token budget is charged per file before splitting. The scanner
// numbers the pieces of each file in order, so a file may yield any number
// of documents sharing its source path.
type Splitter interface {
	Split(doc types.Document) []types.Document
}

// WholeFile indexes each file as a single document
type WholeFile struct{}

// Split implements Splitter
func (WholeFile) Split(doc types.Document) []types.Document {
	return []types.Document{doc}
}
