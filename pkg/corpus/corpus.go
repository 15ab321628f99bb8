package corpus

import "context"

// Metadata describes where a chunk of text came from.
type Metadata struct {
	FileName   string `json:"file_name"`
	PageLabel  string `json:"page_label,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// Chunk is a unit of indexed text with its embedding.
type Chunk struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata Metadata
}

// ScoredChunk is a retrieval candidate with its blended relevance score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Index abstracts the knowledge base backend. HybridSearch blends
// semantic similarity with lexical relevance using alpha in [0, 1]:
// alpha=1 is pure vector search, alpha=0 is pure lexical.
type Index interface {
	HybridSearch(ctx context.Context, query string, vector []float32, topK int, alpha float64) ([]ScoredChunk, error)
	Insert(ctx context.Context, chunks []Chunk) error
	ListFiles(ctx context.Context) ([]string, error)
}
