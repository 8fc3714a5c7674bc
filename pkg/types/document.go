package types

import (
	"path/filepath"
	"strings"
)

// Document is one ingested source file, or one piece of it.
// It is immutable once produced by the scanner.
type Document struct {
	Content    string
	SourcePath string // Relative to the codebase root, forward slashes
	FileType   string // Extension without the leading dot
	TokenCount int
	Chunk      int // Position within the source file; 0 for whole files
}

// NewDocument builds a Document for a file at relPath.
func NewDocument(relPath, content string, tokens int) Document {
	return Document{
		Content:    content,
		SourcePath: filepath.ToSlash(relPath),
		FileType:   FileTypeOf(relPath),
		TokenCount: tokens,
	}
}

// FileTypeOf returns the extension of path without the leading dot.
func FileTypeOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// Validate checks if the document can be indexed
func (d *Document) Validate() error {
	if d.SourcePath == "" {
		return ErrMissingSourcePath
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}
