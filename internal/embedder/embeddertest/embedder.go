// Package embeddertest provides an offline Embedder for tests.
package embeddertest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/dshills/codetalk/internal/embedder"
)

// DefaultDimension is the vector size used by New
const DefaultDimension = 256

// Embedder hashes lowercase word tokens into a fixed number of buckets and
// L2-normalizes the counts. Texts sharing words score higher under cosine
// similarity, which is enough to make retrieval tests meaningful.
type Embedder struct {
	dimension int
	calls     atomic.Int32
	texts     atomic.Int32

	mu  sync.Mutex
	err error
}

// New creates an embedder with DefaultDimension buckets
func New() *Embedder {
	return NewWithDimension(DefaultDimension)
}

// NewWithDimension creates an embedder with the given bucket count
func NewWithDimension(dim int) *Embedder {
	return &Embedder{dimension: dim}
}

// FailWith makes every following call return err; nil restores success
func (e *Embedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls reports how many batch requests were served
func (e *Embedder) Calls() int {
	return int(e.calls.Load())
}

// Texts reports how many texts were embedded in total
func (e *Embedder) Texts() int {
	return int(e.texts.Load())
}

// Vector returns the embedding of text without counting a call
func (e *Embedder) Vector(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, word := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32()%uint32(e.dimension))]++
	}
	return embedder.NormalizeVector(vec)
}

// Words splits text into lowercase alphanumeric tokens
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func (e *Embedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if err := embedder.ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := e.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (e *Embedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	failure := e.err
	e.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	e.calls.Add(1)
	e.texts.Add(int32(len(req.Texts)))

	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &embedder.Embedding{
			Vector:    e.Vector(text),
			Dimension: e.dimension,
			Provider:  e.Provider(),
			Model:     e.Model(),
			Hash:      embedder.ComputeHash(text),
		}
	}
	return &embedder.BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   e.Provider(),
		Model:      e.Model(),
	}, nil
}

func (e *Embedder) Dimension() int   { return e.dimension }
func (e *Embedder) Provider() string { return "test" }
func (e *Embedder) Model() string    { return "bag-of-words" }
func (e *Embedder) Close() error     { return nil }
