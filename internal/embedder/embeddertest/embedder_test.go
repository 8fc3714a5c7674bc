package embeddertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codetalk/internal/embedder"
)

var _ embedder.Embedder = (*Embedder)(nil)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestSharedWordsScoreHigher(t *testing.T) {
	e := New()
	q := e.Vector("what does foo do?")
	foo := e.Vector("def foo(): pass")
	bar := e.Vector("def bar(): pass")

	assert.Greater(t, dot(q, foo), dot(q, bar))
}

func TestDeterministic(t *testing.T) {
	e := New()
	assert.Equal(t, e.Vector("same text"), e.Vector("same text"))
}

func TestCountsAndFailure(t *testing.T) {
	e := New()
	ctx := context.Background()

	_, err := e.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Calls())
	assert.Equal(t, 2, e.Texts())

	boom := errors.New("boom")
	e.FailWith(boom)
	_, err = e.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "a"})
	assert.ErrorIs(t, err, boom)
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"def", "foo", "pass"}, Words("def foo(): pass"))
}
