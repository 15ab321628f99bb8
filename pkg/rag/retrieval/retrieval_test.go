package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"rag-assistant-be/pkg/corpus"
	"rag-assistant-be/pkg/embedding"
	"rag-assistant-be/pkg/rerank"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Generate(text, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}},
	}, nil
}

type fakeIndex struct {
	chunks []corpus.ScoredChunk
	err    error
}

func (f *fakeIndex) HybridSearch(ctx context.Context, query string, vector []float32, topK int, alpha float64) ([]corpus.ScoredChunk, error) {
	return f.chunks, f.err
}

func (f *fakeIndex) Insert(ctx context.Context, chunks []corpus.Chunk) error { return nil }

func (f *fakeIndex) ListFiles(ctx context.Context) ([]string, error) { return nil, nil }

type fakeReranker struct {
	results []rerank.Result
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]rerank.Result, error) {
	return f.results, f.err
}

func threeChunks() []corpus.ScoredChunk {
	return []corpus.ScoredChunk{
		{Chunk: corpus.Chunk{Content: "leave policy text", Metadata: corpus.Metadata{FileName: "/docs/hr/leave_policy.pdf", PageLabel: "12"}}},
		{Chunk: corpus.Chunk{Content: "expense rules text", Metadata: corpus.Metadata{FileName: "expenses.pdf"}}},
		{Chunk: corpus.Chunk{Content: "travel guide text", Metadata: corpus.Metadata{FileName: "travel.pdf", PageLabel: "3"}}},
	}
}

func TestRetrieveThresholdFiltering(t *testing.T) {
	// Scores 1.2, -0.3 and 0.1 against a 0.0 threshold keep
	// exactly two passages, ordered by descending score.
	tool := NewTool(
		&fakeEmbedder{},
		&fakeIndex{chunks: threeChunks()},
		&fakeReranker{results: []rerank.Result{
			{Index: 0, Score: 1.2},
			{Index: 1, Score: -0.3},
			{Index: 2, Score: 0.1},
		}},
		0.5, 0.0, nopLogger{},
	)

	out := tool.Retrieve(context.Background(), "leave days?")

	var payload Payload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(payload.Sources) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(payload.Sources))
	}
	if payload.Sources[0].Score != "1.20" || payload.Sources[1].Score != "0.10" {
		t.Errorf("wrong score order or format: %+v", payload.Sources)
	}
	if payload.Sources[0].File != "leave_policy.pdf" {
		t.Errorf("expected basename, got %q", payload.Sources[0].File)
	}
	if payload.Sources[0].Page != "12" {
		t.Errorf("expected page 12, got %q", payload.Sources[0].Page)
	}
	if payload.Sources[1].Page != "-" {
		t.Errorf("expected dash for missing page, got %q", payload.Sources[1].Page)
	}
	if payload.Content != "leave policy text\n\ntravel guide text" {
		t.Errorf("context block wrong: %q", payload.Content)
	}
}

func TestRetrieveZeroScoreExcluded(t *testing.T) {
	tool := NewTool(
		&fakeEmbedder{},
		&fakeIndex{chunks: threeChunks()},
		&fakeReranker{results: []rerank.Result{{Index: 0, Score: 0.0}}},
		0.5, 0.0, nopLogger{},
	)

	out := tool.Retrieve(context.Background(), "q")
	if out != NotFoundMessage {
		t.Errorf("score equal to threshold must not pass, got %q", out)
	}
}

func TestRetrieveNoCandidates(t *testing.T) {
	tool := NewTool(&fakeEmbedder{}, &fakeIndex{}, &fakeReranker{}, 0.5, 0.0, nopLogger{})

	out := tool.Retrieve(context.Background(), "q")
	if out != NotFoundMessage {
		t.Errorf("expected not-found message, got %q", out)
	}
}

func TestRetrieveComponentFailures(t *testing.T) {
	tests := []struct {
		name string
		tool *Tool
	}{
		{"embedder down", NewTool(&fakeEmbedder{err: errors.New("timeout")}, &fakeIndex{chunks: threeChunks()}, &fakeReranker{}, 0.5, 0.0, nopLogger{})},
		{"index down", NewTool(&fakeEmbedder{}, &fakeIndex{err: errors.New("conn refused")}, &fakeReranker{}, 0.5, 0.0, nopLogger{})},
		{"reranker down", NewTool(&fakeEmbedder{}, &fakeIndex{chunks: threeChunks()}, &fakeReranker{err: errors.New("429")}, 0.5, 0.0, nopLogger{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.tool.Retrieve(context.Background(), "q")
			if out != FailureMessage {
				t.Errorf("expected failure message, got %q", out)
			}
			if strings.Contains(out, "timeout") || strings.Contains(out, "refused") {
				t.Error("internal error detail leaked into tool output")
			}
		})
	}
}
