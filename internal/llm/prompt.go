package llm

import (
	"strings"
)

// NoRewriteSentinel is what the model answers when the question already
// stands on its own
const NoRewriteSentinel = "NO_REWRITE_NEEDED"

// rewriteLabels are prefixes models tend to echo back from the template
var rewriteLabels = []string{
	"standalone question:",
	"rewritten question:",
	"follow-up question:",
	"question:",
}

// RewritePrompt fills the rewrite template for question and history
func RewritePrompt(question, history string) string {
	var b strings.Builder
	b.WriteString("Given the following conversation history and a follow-up question, ")
	b.WriteString("rephrase the follow-up question to be a standalone question that can be understood ")
	b.WriteString("without the conversation history. Keep file names, identifiers and technical terms exactly as written. ")
	b.WriteString("If the follow-up question is already standalone, or the conversation history is empty, reply with exactly ")
	b.WriteString(NoRewriteSentinel)
	b.WriteString(" and nothing else. Reply with the question only, no explanation.\n\n")
	b.WriteString("Conversation history:\n")
	b.WriteString(history)
	b.WriteString("\n\nFollow-up question: ")
	b.WriteString(question)
	b.WriteString("\nStandalone question:")
	return b.String()
}

// IsNoRewrite reports whether a rewrite response contains the sentinel,
// ignoring case
func IsNoRewrite(response string) bool {
	return strings.Contains(strings.ToUpper(response), NoRewriteSentinel)
}

// EffectiveQuestion picks the question to retrieve and answer with. The
// original is kept when the model returned the sentinel or nothing usable;
// otherwise echoed template labels and surrounding quotes are stripped.
func EffectiveQuestion(original, rewritten string) string {
	if IsNoRewrite(rewritten) {
		return original
	}

	q := strings.TrimSpace(rewritten)
	for stripped := true; stripped; {
		stripped = false
		lower := strings.ToLower(q)
		for _, label := range rewriteLabels {
			if strings.HasPrefix(lower, label) {
				q = strings.TrimSpace(q[len(label):])
				stripped = true
				break
			}
		}
	}
	q = strings.TrimSpace(strings.Trim(q, "\"'`"))

	if q == "" {
		return original
	}
	return q
}
