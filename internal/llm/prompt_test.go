package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewritePrompt(t *testing.T) {
	prompt := RewritePrompt("what does it return?", "Human: what is foo?\nAI: a function")

	assert.Contains(t, prompt, NoRewriteSentinel)
	assert.Contains(t, prompt, "Conversation history:\nHuman: what is foo?\nAI: a function")
	assert.Contains(t, prompt, "Follow-up question: what does it return?")
	assert.True(t, len(prompt) > 0 && prompt[len(prompt)-1] == ':')
}

func TestIsNoRewrite(t *testing.T) {
	assert.True(t, IsNoRewrite("NO_REWRITE_NEEDED"))
	assert.True(t, IsNoRewrite("  no_rewrite_needed\n"))
	assert.True(t, IsNoRewrite("The answer is: No_Rewrite_Needed."))
	assert.False(t, IsNoRewrite("What does foo return?"))
	assert.False(t, IsNoRewrite(""))
}

func TestEffectiveQuestion(t *testing.T) {
	const original = "what does it return?"

	testCases := []struct {
		name      string
		rewritten string
		want      string
	}{
		{name: "sentinel", rewritten: "NO_REWRITE_NEEDED", want: original},
		{name: "sentinel lower case", rewritten: "no_rewrite_needed", want: original},
		{name: "plain rewrite", rewritten: "  What does foo in a.py return?\n", want: "What does foo in a.py return?"},
		{name: "echoed label", rewritten: "Standalone question: What does foo return?", want: "What does foo return?"},
		{name: "label any case", rewritten: "REWRITTEN QUESTION:   What does foo return?", want: "What does foo return?"},
		{name: "stacked labels", rewritten: "Standalone question: Question: What does foo return?", want: "What does foo return?"},
		{name: "quoted", rewritten: "\"What does foo return?\"", want: "What does foo return?"},
		{name: "empty", rewritten: "", want: original},
		{name: "label only", rewritten: "Standalone question:", want: original},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveQuestion(original, tc.rewritten))
		})
	}
}
