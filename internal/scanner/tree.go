package scanner

import "strings"

const (
	branchMid  = "├── "
	branchLast = "└── "
	indentMid  = "│   "
	indentLast = "    "
)

// treeWriter renders the indentation-based listing built during traversal
type treeWriter struct {
	b strings.Builder
}

func (t *treeWriter) root(name string) {
	t.b.WriteString(name)
	t.b.WriteString("/\n")
}

func (t *treeWriter) entry(prefix, name string, last, isDir bool) {
	t.b.WriteString(prefix)
	if last {
		t.b.WriteString(branchLast)
	} else {
		t.b.WriteString(branchMid)
	}
	t.b.WriteString(name)
	if isDir {
		t.b.WriteString("/")
	}
	t.b.WriteString("\n")
}

func (t *treeWriter) String() string {
	return t.b.String()
}

// childPrefix is the prefix used for the children of an entry
func childPrefix(prefix string, last bool) string {
	if last {
		return prefix + indentLast
	}
	return prefix + indentMid
}
