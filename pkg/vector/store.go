// Package vector provides the campaign-summary vector index used for
// semantic candidate retrieval.
package vector

import (
	"context"
)

// Hit is one ranked result from a similarity query. Distance is the raw
// store metric; Similarity is the store-independent [0,1] normalization.
type Hit struct {
	ID         string
	Text       string
	Metadata   map[string]any
	Distance   float64
	Similarity float64
}

// Store is the vector database collaborator contract. The pipeline only
// needs upsert, ranked query, and point lookup.
type Store interface {
	Upsert(ctx context.Context, id string, embedding []float32, text string, metadata map[string]any) error
	Query(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	Get(ctx context.Context, id string) (text string, metadata map[string]any, err error)
}
