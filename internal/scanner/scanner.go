// Package scanner walks a codebase and selects the files to index under a
// token budget.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/pkg/types"
)

var (
	// ErrFileRead marks a file that could not be read; it is skipped
	ErrFileRead = errors.New("file read failed")
	// ErrDirRead marks a directory that could not be listed; the scan aborts
	ErrDirRead = errors.New("directory read failed")
	// ErrInvalidConfig is returned by New for unusable settings
	ErrInvalidConfig = errors.New("invalid scanner config")
)

// Config controls a scan
type Config struct {
	Root           string
	Extensions     map[string]bool // Allow-list, keys include the leading dot
	IgnorePatterns []string
	MaxTokens      int
	Tokenizer      Tokenizer // Default: BPETokenizer for DefaultEncoding
	Splitter       Splitter  // Default: WholeFile
	Logger         *slog.Logger
}

// Result is the outcome of one scan
type Result struct {
	Documents     []types.Document
	Tree          string
	BudgetReached bool
	TotalTokens   int
	FilesAccepted int
	FilesSkipped  int // Unreadable files
}

// Scanner performs depth-first traversal with ignore filtering
type Scanner struct {
	root       string
	extensions map[string]bool
	ignore     *IgnoreMatcher
	maxTokens  int
	tokenizer  Tokenizer
	splitter   Splitter
	logger     *slog.Logger
}

// New validates cfg and returns a Scanner
func New(cfg Config) (*Scanner, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("%w: root is required", ErrInvalidConfig)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: token budget must be positive", ErrInvalidConfig)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for ext, on := range cfg.Extensions {
		if on {
			exts[strings.ToLower(ext)] = true
		}
	}

	s := &Scanner{
		root:       root,
		extensions: exts,
		ignore:     NewIgnoreMatcher(cfg.IgnorePatterns),
		maxTokens:  cfg.MaxTokens,
		tokenizer:  cfg.Tokenizer,
		splitter:   cfg.Splitter,
		logger:     logging.OrDiscard(cfg.Logger),
	}
	if s.tokenizer == nil {
		bpe, err := NewBPETokenizer(DefaultEncoding)
		if err != nil {
			s.logger.Warn("BPE tokenizer unavailable, estimating tokens from length", "error", err)
			s.tokenizer = CharEstimator{}
		} else {
			s.tokenizer = bpe
		}
	}
	if s.splitter == nil {
		s.splitter = WholeFile{}
	}
	return s, nil
}

// node is a pending entry on the traversal stack
type node struct {
	absPath string
	relPath string // Slash-separated, relative to root
	name    string
	isDir   bool
	regular bool
	prefix  string // Tree prefix for this entry's own line
	last    bool   // Last visible sibling
}

// Scan walks the tree in directory-entry order. It stops the whole traversal
// as soon as a file would push the running token total past the budget.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	result := &Result{Documents: make([]types.Document, 0)}
	tree := &treeWriter{}
	tree.root(filepath.Base(s.root))

	children, err := s.children(s.root, "", "")
	if err != nil {
		return nil, err
	}
	stack := pushReversed(nil, children)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tree.entry(n.prefix, n.name, n.last, n.isDir)

		if n.isDir {
			kids, err := s.children(n.absPath, n.relPath, childPrefix(n.prefix, n.last))
			if err != nil {
				return nil, err
			}
			stack = pushReversed(stack, kids)
			continue
		}

		if !n.regular || !s.extensions[strings.ToLower(filepath.Ext(n.name))] {
			continue
		}

		content, err := os.ReadFile(n.absPath)
		if err != nil {
			result.FilesSkipped++
			s.logger.Warn("skipping unreadable file",
				"path", n.relPath, "error", fmt.Errorf("%w: %v", ErrFileRead, err))
			continue
		}

		text := string(content)
		tokens := s.tokenizer.Count(text)
		if result.TotalTokens+tokens > s.maxTokens {
			result.BudgetReached = true
			s.logger.Info("token budget reached",
				"path", n.relPath,
				"file_tokens", tokens,
				"total_tokens", result.TotalTokens,
				"max_tokens", s.maxTokens)
			break
		}

		result.TotalTokens += tokens
		result.FilesAccepted++
		doc := types.NewDocument(n.relPath, text, tokens)
		for i, piece := range s.splitter.Split(doc) {
			piece.Chunk = i
			result.Documents = append(result.Documents, piece)
		}
	}

	result.Tree = tree.String()
	if result.BudgetReached {
		s.logger.Info("processed documents before reaching token limit",
			"documents", len(result.Documents))
	} else {
		s.logger.Info("scan complete",
			"documents", len(result.Documents),
			"total_tokens", result.TotalTokens)
	}
	return result, nil
}

// children lists the visible entries of dir in directory-entry order
func (s *Scanner) children(dir, rel, prefix string) ([]node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			rel = "."
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDirRead, rel, err)
	}

	nodes := make([]node, 0, len(entries))
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		isDir := e.IsDir()
		if s.ignore.Ignored(childRel, isDir) {
			continue
		}
		nodes = append(nodes, node{
			absPath: filepath.Join(dir, e.Name()),
			relPath: childRel,
			name:    e.Name(),
			isDir:   isDir,
			regular: e.Type().IsRegular(),
			prefix:  prefix,
		})
	}
	if len(nodes) > 0 {
		nodes[len(nodes)-1].last = true
	}
	return nodes, nil
}

// pushReversed pushes nodes so the first one is popped first
func pushReversed(stack, nodes []node) []node {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	return stack
}
