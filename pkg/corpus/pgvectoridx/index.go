package pgvectoridx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"rag-assistant-be/pkg/corpus"
)

// chunkRow is the persistence model for the knowledge_chunks table.
type chunkRow struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(1024)"`
	FileName   string          `gorm:"type:varchar(255);index"`
	PageLabel  string          `gorm:"type:varchar(64)"`
	SourceURL  string          `gorm:"type:text"`
	SourceType string          `gorm:"type:varchar(32)"`
}

func (chunkRow) TableName() string {
	return "knowledge_chunks"
}

type Index struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Index {
	return &Index{db: db}
}

// AutoMigrate creates the chunk table. The vector extension must
// already be installed on the target database.
func (i *Index) AutoMigrate() error {
	if err := i.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	return i.db.AutoMigrate(&chunkRow{})
}

// HybridSearch blends cosine similarity against the embedding column
// with Postgres full-text rank over the content column. Both parts are
// computed in a single query so ordering happens database-side.
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

	type result struct {
		chunkRow
		Score float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	// ts_rank is normalized (flag 32) so the lexical part stays in
	// [0, 1), comparable with cosine similarity.
	err := i.db.WithContext(ctx).
		Table("knowledge_chunks").
		Select(
			"knowledge_chunks.*, "+
				"(? * (1 - (embedding <=> ?)) + "+
				"(1 - ?) * ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', ?), 32)) as score",
			alpha, queryVector, alpha, query,
		).
		Order("score DESC").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	scored := make([]corpus.ScoredChunk, len(results))
	for idx, res := range results {
		scored[idx] = corpus.ScoredChunk{
			Chunk: corpus.Chunk{
				ID:      res.ID.String(),
				Content: res.Content,
				Metadata: corpus.Metadata{
					FileName:   res.FileName,
					PageLabel:  res.PageLabel,
					SourceURL:  res.SourceURL,
					SourceType: res.SourceType,
				},
			},
			Score: res.Score,
		}
	}
	return scored, nil
}

func (i *Index) Insert(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]*chunkRow, len(chunks))
	for idx, c := range chunks {
		id := uuid.New()
		if c.ID != "" {
			parsed, err := uuid.Parse(c.ID)
			if err == nil {
				id = parsed
			}
		}
		rows[idx] = &chunkRow{
			ID:         id,
			Content:    c.Content,
			Embedding:  pgvector.NewVector(c.Vector),
			FileName:   c.Metadata.FileName,
			PageLabel:  c.Metadata.PageLabel,
			SourceURL:  c.Metadata.SourceURL,
			SourceType: c.Metadata.SourceType,
		}
	}
	return i.db.WithContext(ctx).Create(rows).Error
}

func (i *Index) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := i.db.WithContext(ctx).
		Table("knowledge_chunks").
		Distinct("file_name").
		Order("file_name").
		Pluck("file_name", &files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
