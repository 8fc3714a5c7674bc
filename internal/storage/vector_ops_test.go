package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupVectorTestData stores one document per vector, in order, and returns their IDs
func setupVectorTestData(t *testing.T, s Storage, paths []string, vectors [][]float32) []int64 {
	t.Helper()
	ids := make([]int64, len(paths))
	for i, p := range paths {
		doc := insertTestDocument(t, s, p, "content of "+p)
		require.NoError(t, s.InsertEmbedding(context.Background(), &Embedding{
			DocumentID: doc.ID,
			Vector:     SerializeVector(vectors[i]),
		}))
		ids[i] = doc.ID
	}
	return ids
}

func TestSearchVector_Ranking(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ids := setupVectorTestData(t, storage,
		[]string{"far.go", "near.py", "mid.js"},
		[][]float32{{0, 1, 0}, {1, 0.1, 0}, {1, 1, 0}},
	)

	results, err := storage.SearchVector(context.Background(), []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ids[1], results[0].DocumentID)
	assert.Equal(t, ids[2], results[1].DocumentID)
	assert.Equal(t, ids[0], results[2].DocumentID)
	assert.InDelta(t, 0.0, results[2].SimilarityScore, 1e-6)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].SimilarityScore, results[i].SimilarityScore)
	}
}

func TestSearchVector_Limit(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	setupVectorTestData(t, storage,
		[]string{"a.go", "b.go", "c.go"},
		[][]float32{{1, 0}, {0.9, 0.1}, {0.5, 0.5}},
	)

	results, err := storage.SearchVector(context.Background(), []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchVector_TiesOrderedByDocumentID(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ids := setupVectorTestData(t, storage,
		[]string{"first.go", "second.go", "third.go"},
		[][]float32{{2, 0}, {1, 0}, {3, 0}},
	)

	results, err := storage.SearchVector(context.Background(), []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, ids[i], r.DocumentID)
	}
}

func TestSearchVector_Filters(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ids := setupVectorTestData(t, storage,
		[]string{"api/server.go", "web/app.js", "api/client.py"},
		[][]float32{{1, 0}, {1, 0.2}, {0, 1}},
	)
	ctx := context.Background()

	results, err := storage.SearchVector(ctx, []float32{1, 0}, 10, &SearchFilters{FileTypes: []string{"go", "py"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ids[0], results[0].DocumentID)
	assert.Equal(t, ids[2], results[1].DocumentID)

	results, err = storage.SearchVector(ctx, []float32{1, 0}, 10, &SearchFilters{PathPattern: "api/*"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = storage.SearchVector(ctx, []float32{1, 0}, 10, &SearchFilters{MinRelevance: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ids[0], results[0].DocumentID)
	assert.Equal(t, ids[1], results[1].DocumentID)
}

func TestSearchVector_EdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	setupVectorTestData(t, storage,
		[]string{"zero.go", "short.go", "ok.go"},
		[][]float32{{0, 0, 0}, {1, 0}, {1, 1, 1}},
	)
	ctx := context.Background()

	testCases := []struct {
		name        string
		queryVector []float32
		limit       int
		wantLen     int
	}{
		{name: "empty query vector", queryVector: []float32{}, limit: 10, wantLen: 0},
		{name: "zero query vector", queryVector: []float32{0, 0, 0}, limit: 10, wantLen: 0},
		{name: "zero limit returns all", queryVector: []float32{1, 0, 0}, limit: 0, wantLen: 1},
		{name: "negative limit returns all", queryVector: []float32{1, 0, 0}, limit: -1, wantLen: 1},
		{name: "dimension mismatch skipped", queryVector: []float32{1, 0, 0, 0}, limit: 10, wantLen: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := storage.SearchVector(ctx, tc.queryVector, tc.limit, nil)
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Len(t, results, tc.wantLen)
		})
	}
}

func TestSerializeVector(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := SerializeVector(vector)
	assert.Len(t, blob, 16)
	assert.Equal(t, vector, DeserializeVector(blob))
	assert.Empty(t, DeserializeVector(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.InDelta(t, 0.96, CosineSimilarity([]float32{3, 4}, []float32{4, 3}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
