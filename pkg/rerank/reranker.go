package rerank

import "context"

// Result pairs a document index from the input slice with its
// relevance score. Scores are raw model logits and are not bounded
// to any fixed range; negative values are valid.
type Result struct {
	Index int
	Score float64
}

// Reranker scores candidate documents against a query and returns
// the top n results ordered by descending score.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
}
