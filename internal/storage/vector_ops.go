package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"
)

// searchVector ranks every stored embedding against queryVector by cosine similarity
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if search.Float32s(queryVector).Magnitude() == 0 {
		return []VectorResult{}, nil
	}

	query := `
		SELECT
			d.id as document_id,
			e.vector
		FROM documents d
		INNER JOIN embeddings e ON d.id = e.document_id
		WHERE 1 = 1
	`
	var args []interface{}
	query, args = applyVectorFilters(query, args, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, filters)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	return buildVectorResults(candidates, limit), nil
}

// applyVectorFilters adds WHERE clause filters for vector search
func applyVectorFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if len(filters.FileTypes) > 0 {
		query += " AND d.file_type IN ("
		for i, ft := range filters.FileTypes {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, ft)
		}
		query += ")"
	}

	if filters.PathPattern != "" {
		query += " AND d.source_path GLOB ?"
		args = append(args, filters.PathPattern)
	}

	return query, args
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, filters *SearchFilters) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var documentID int64
		var vectorBlob []byte
		if err := rows.Scan(&documentID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		if search.Float32s(vector).Magnitude() == 0 {
			continue
		}

		similarity := cosineSimilarity(queryVector, vector)

		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}

		candidates = append(candidates, candidate{documentID: documentID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			DocumentID:      candidates[i].documentID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if search.Float32s(a).Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b))
}

// candidate represents a document with its similarity score
type candidate struct {
	documentID int64
	score      float64
}

// sortCandidates orders by score descending, ties broken by insertion order of the document
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].documentID < candidates[j].documentID
	})
}

// SerializeVector encodes a vector for the embeddings table
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a vector read from the embeddings table
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
