package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIDelta(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]string{"content": content}},
		},
	})
	return string(data)
}

func newOpenAIServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *OpenAI {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	o, err := NewOpenAI(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: server.URL + "/"})
	require.NoError(t, err)
	return o
}

func TestOpenAI_Generate(t *testing.T) {
	tokens := []string{"foo", " is", " a", " no-op", " function", ".\n", "It", " returns", " None"}

	o := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			fmt.Fprintf(w, "data: %s\n\n", openAIDelta(tok))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var chunks []string
	answer, err := o.Generate(context.Background(), "what is foo?", collect(&chunks))
	require.NoError(t, err)

	assert.Equal(t, strings.Join(tokens, ""), answer)
	assert.Equal(t, answer, strings.Join(chunks, ""))
	// Batched: fewer writes than tokens, newline closes a chunk, tail flushed
	assert.Less(t, len(chunks), len(tokens))
	assert.Equal(t, "foo is a no-op function", chunks[0])
	assert.Equal(t, ".\n", chunks[1])
	assert.Equal(t, "It returns None", chunks[len(chunks)-1])
}

func TestOpenAI_GenerateIgnoresDataAfterDone(t *testing.T) {
	o := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", openAIDelta("ok"))
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprintf(w, "data: %s\n\n", openAIDelta("late"))
	})

	answer, err := o.Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestOpenAI_GenerateMalformedChunk(t *testing.T) {
	o := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
	})

	_, err := o.Generate(context.Background(), "q", nil)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestOpenAI_Rewrite(t *testing.T) {
	o := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Contains(t, req.Messages[0].Content, NoRewriteSentinel)

		writeJSON(t, w, map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{"message": map[string]string{"role": "assistant", "content": "NO_REWRITE_NEEDED"}},
			},
		})
	})

	got, err := o.Rewrite(context.Background(), "what does foo do?", "")
	require.NoError(t, err)
	assert.True(t, IsNoRewrite(got))
}

func TestOpenAI_RewriteNoChoices(t *testing.T) {
	o := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := o.Rewrite(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
