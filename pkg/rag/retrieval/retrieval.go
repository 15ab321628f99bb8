package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/corpus"
	"rag-assistant-be/pkg/embedding"
	"rag-assistant-be/pkg/rerank"
)

const (
	// ToolName is the function name exposed to the model.
	ToolName = "lookup_policy_doc"

	// NotFoundMessage is returned when nothing relevant survives
	// filtering. The model sees it as the tool result and tells
	// the user the answer is not in the knowledge base.
	NotFoundMessage = "No relevant information was found in the knowledge base for this question."

	// FailureMessage is returned in place of an error so a broken
	// backend degrades into an honest answer instead of a crash.
	FailureMessage = "The document search is temporarily unavailable, so this question cannot be answered from the knowledge base right now."

	defaultTopK       = 10
	defaultRerankTopN = 3
)

// Citation points at the source of a retrieved passage. Score is the
// reranker output formatted with two decimals.
type Citation struct {
	File  string `json:"file"`
	Page  string `json:"page"`
	Score string `json:"score"`
}

// Payload is the structured tool output: the context block handed to
// the model plus the citations the streaming layer lifts out.
type Payload struct {
	Content string     `json:"content"`
	Sources []Citation `json:"sources"`
}

// Tool performs hybrid search over the knowledge base, reranks the
// candidates and keeps only those above the confidence threshold.
type Tool struct {
	embedder  embedding.EmbeddingProvider
	index     corpus.Index
	reranker  rerank.Reranker
	alpha     float64
	threshold float64
	log       logger.ILogger
}

func NewTool(embedder embedding.EmbeddingProvider, index corpus.Index, reranker rerank.Reranker, alpha, threshold float64, log logger.ILogger) *Tool {
	return &Tool{
		embedder:  embedder,
		index:     index,
		reranker:  reranker,
		alpha:     alpha,
		threshold: threshold,
		log:       log,
	}
}

// Retrieve returns the tool output as a string. Component failures
// are logged and mapped to FailureMessage; the error channel is never
// used to surface them to the model.
func (t *Tool) Retrieve(ctx context.Context, query string) string {
	emb, err := t.embedder.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		t.log.Error("retrieval", "query embedding failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}

	candidates, err := t.index.HybridSearch(ctx, query, emb.Embedding.Values, defaultTopK, t.alpha)
	if err != nil {
		t.log.Error("retrieval", "hybrid search failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}
	if len(candidates) == 0 {
		return NotFoundMessage
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Chunk.Content
	}

	ranked, err := t.reranker.Rerank(ctx, query, documents, defaultRerankTopN)
	if err != nil {
		t.log.Error("retrieval", "rerank failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}

	// Strictly above the threshold. Reranker scores are unbounded
	// logits, so zero is a meaningful cutoff, not a floor.
	kept := make([]rerank.Result, 0, len(ranked))
	for _, r := range ranked {
		if r.Score > t.threshold {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return NotFoundMessage
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].Score > kept[b].Score
	})

	passages := make([]string, 0, len(kept))
	sources := make([]Citation, 0, len(kept))
	for _, r := range kept {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		chunk := candidates[r.Index].Chunk
		passages = append(passages, chunk.Content)
		sources = append(sources, Citation{
			File:  fileLabel(chunk.Metadata),
			Page:  pageLabel(chunk.Metadata),
			Score: fmt.Sprintf("%.2f", r.Score),
		})
	}

	payload := Payload{
		Content: strings.Join(passages, "\n\n"),
		Sources: sources,
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.log.Error("retrieval", "payload encoding failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}
	return string(out)
}

func fileLabel(m corpus.Metadata) string {
	if m.FileName != "" {
		return filepath.Base(m.FileName)
	}
	if m.SourceURL != "" {
		return m.SourceURL
	}
	return "-"
}

func pageLabel(m corpus.Metadata) string {
	if m.PageLabel == "" {
		return "-"
	}
	return m.PageLabel
}
