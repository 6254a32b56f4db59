// Package retrieval defines the port for the external knowledge
// retrieval collaborator.
package retrieval

import "context"

// Passage is one ranked retrieval hit.
type Passage struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Retriever queries the external knowledge store. Implementations must
// honor ctx cancellation; callers treat any error as a degradation
// signal, never a hard failure.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filters map[string]string) ([]Passage, error)
}
