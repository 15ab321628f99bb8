package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/corpus"
	"rag-assistant-be/pkg/embedding"
	"rag-assistant-be/pkg/events"
	"rag-assistant-be/pkg/nats"
	"rag-assistant-be/pkg/utils"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	index             corpus.Index
	embeddingProvider embedding.EmbeddingProvider
	redis             *redis.Client
	publisher         *nats.Publisher
	log               logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	index corpus.Index,
	embeddingProvider embedding.EmbeddingProvider,
	redisClient *redis.Client,
	publisher *nats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		index:             index,
		embeddingProvider: embeddingProvider,
		redis:             redisClient,
		publisher:         publisher,
		log:               log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("consumer", "failed to unmarshal ingest message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.log.Info("consumer", "ingesting document", map[string]interface{}{
		"task_id":   payload.TaskId,
		"file_name": payload.FileName,
	})
	cs.setTaskStatus(ctx, payload.TaskId, TaskStatusProcessing, "")

	if err := cs.ingest(ctx, &payload); err != nil {
		cs.log.Error("consumer", "document ingestion failed", map[string]interface{}{
			"task_id": payload.TaskId,
			"error":   err.Error(),
		})
		cs.setTaskStatus(ctx, payload.TaskId, TaskStatusFailed, err.Error())
		// Failure is recorded on the task; retrying the message
		// would duplicate already-inserted chunks.
		msg.Ack()
		return
	}

	cs.setTaskStatus(ctx, payload.TaskId, TaskStatusDone, "")
	msg.Ack()
}

func (cs *consumerService) ingest(ctx context.Context, payload *dto.PublishDocumentMessage) error {
	pieces := utils.SplitText(payload.Content, chunkSize, chunkOverlap)

	chunks := make([]corpus.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		emb, err := cs.embeddingProvider.Generate(piece, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, corpus.Chunk{
			Content: piece,
			Vector:  emb.Embedding.Values,
			Metadata: corpus.Metadata{
				FileName:   payload.FileName,
				PageLabel:  fmt.Sprintf("%d", i+1),
				SourceURL:  payload.SourceURL,
				SourceType: payload.SourceType,
			},
		})
	}

	if err := cs.index.Insert(ctx, chunks); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if cs.publisher != nil {
		if err := cs.publisher.Publish(ctx, events.NewDocumentIngestedEvent(payload.FileName, len(chunks))); err != nil {
			cs.log.Warn("consumer", "ingest event publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (cs *consumerService) setTaskStatus(ctx context.Context, taskID, status, detail string) {
	payload, err := json.Marshal(dto.TaskStatusResponse{TaskId: taskID, Status: status, Detail: detail})
	if err != nil {
		return
	}
	if err := cs.redis.Set(ctx, taskKeyPrefix+taskID, payload, taskTTL).Err(); err != nil {
		cs.log.Warn("consumer", "failed to record task status", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
}
