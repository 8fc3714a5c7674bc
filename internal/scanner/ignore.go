package scanner

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreMatcher applies gitignore-style rules to paths relative to the root
type IgnoreMatcher struct {
	matcher gitignore.Matcher
	empty   bool
}

// NewIgnoreMatcher compiles patterns in gitignore syntax. Blank lines and
// comments are skipped; later patterns override earlier ones, so "!keep.log"
// after "*.log" re-includes keep.log.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimRight(p, " \r")
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return &IgnoreMatcher{
		matcher: gitignore.NewMatcher(ps),
		empty:   len(ps) == 0,
	}
}

// Ignored reports whether the slash-separated relative path is excluded
func (m *IgnoreMatcher) Ignored(relPath string, isDir bool) bool {
	if m == nil || m.empty || relPath == "" || relPath == "." {
		return false
	}
	return m.matcher.Match(strings.Split(relPath, "/"), isDir)
}
