package orchestrator

import (
	"strings"

	"github.com/dshills/codetalk/pkg/types"
)

const promptHeader = "Use the following context and optionally conversation history if it is not empty to " +
	"answer the question in detail and easy to understand language. Format your response for " +
	"command-line display: use plain text only, avoid special formatting like markdown or HTML, " +
	"and structure information with simple indentation or line breaks if needed."

// BuildContext renders ranked documents as "File: <path>" blocks followed by
// their content, in rank order, each block ending with a blank line
func BuildContext(docs []types.Document) string {
	var b strings.Builder
	for _, doc := range docs {
		b.WriteString("File: ")
		b.WriteString(doc.SourcePath)
		b.WriteString("\n")
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// BuildPrompt assembles the generation prompt: instructions, context,
// formatted history and the question, in that order
func BuildPrompt(context, history, question string) string {
	var b strings.Builder
	b.Grow(len(promptHeader) + len(context) + len(history) + len(question) + 64)
	b.WriteString(promptHeader)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nConversation history:\n")
	b.WriteString(history)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
