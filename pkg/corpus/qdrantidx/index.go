package qdrantidx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"rag-assistant-be/pkg/corpus"
)

type Index struct {
	client     *qdrant.Client
	collection string
}

func New(host string, port int, collection string) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return &Index{client: client, collection: collection}, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (i *Index) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	existing, err := i.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range existing {
		if name == i.collection {
			return nil
		}
	}
	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", i.collection, err)
	}
	return nil
}

// HybridSearch runs a dense query and re-scores the candidates with a
// lexical token-overlap component. An oversampled candidate set keeps
// lexically strong chunks from being cut before blending.
func (i *Index) HybridSearch(ctx context.Context, query string, vector []float32, topK int, alpha float64) ([]corpus.ScoredChunk, error) {
	if topK <= 0 {
		topK = 10
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	limit := uint64(topK * 3)
	hits, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	queryTokens := tokenize(query)

	scored := make([]corpus.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		if payload == nil {
			continue
		}
		content := extractStringValue(payload["content"])
		blended := alpha*float64(hit.GetScore()) + (1-alpha)*lexicalOverlap(queryTokens, content)
		scored = append(scored, corpus.ScoredChunk{
			Chunk: corpus.Chunk{
				ID:      pointIDString(hit.GetId()),
				Content: content,
				Metadata: corpus.Metadata{
					FileName:   extractStringValue(payload["file_name"]),
					PageLabel:  extractStringValue(payload["page_label"]),
					SourceURL:  extractStringValue(payload["source_url"]),
					SourceType: extractStringValue(payload["source_type"]),
				},
			},
			Score: blended,
		})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (i *Index) Insert(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for idx, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		points[idx] = &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"content":     c.Content,
				"file_name":   c.Metadata.FileName,
				"page_label":  c.Metadata.PageLabel,
				"source_url":  c.Metadata.SourceURL,
				"source_type": c.Metadata.SourceType,
			}),
		}
	}
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// scrollPage fetches one page of points starting at offset and returns
// the page plus the offset of the next one, nil when the collection is
// exhausted.
type scrollPage func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)

// ListFiles scrolls the whole collection and collects distinct file
// names from payloads. Fine for corpora in the thousands of chunks.
func (i *Index) ListFiles(ctx context.Context) ([]string, error) {
	limit := uint32(256)
	return collectFileNames(ctx, func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		// The points client keeps the response's next-page offset,
		// which the convenience wrapper discards.
		resp, err := i.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: i.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("file_name"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scroll collection: %w", err)
		}
		return resp.GetResult(), resp.GetNextPageOffset(), nil
	})
}

func collectFileNames(ctx context.Context, page scrollPage) ([]string, error) {
	seen := make(map[string]bool)
	var offset *qdrant.PointId

	for {
		points, next, err := page(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, point := range points {
			name := extractStringValue(point.GetPayload()["file_name"])
			if name != "" {
				seen[name] = true
			}
		}
		if next == nil {
			break
		}
		offset = next
	}

	files := make([]string, 0, len(seen))
	for name := range seen {
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) > 1 {
			tokens[tok] = true
		}
	}
	return tokens
}

// lexicalOverlap is the fraction of query tokens present in the document.
func lexicalOverlap(queryTokens map[string]bool, doc string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := tokenize(doc)
	matched := 0
	for tok := range queryTokens {
		if docTokens[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
