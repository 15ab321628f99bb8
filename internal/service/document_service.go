package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/corpus"
)

const (
	taskKeyPrefix = "task:"
	taskTTL       = 24 * time.Hour

	TaskStatusQueued     = "queued"
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
	TaskStatusFailed     = "failed"
)

type IDocumentService interface {
	// Upload queues a document for chunking and indexing and
	// returns the tracking task id.
	Upload(ctx context.Context, req *dto.UploadDocumentRequest) (string, error)
	TaskStatus(ctx context.Context, taskID string) (*dto.TaskStatusResponse, error)
	ListFiles(ctx context.Context) ([]string, error)
}

type documentService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	index     corpus.Index
	redis     *redis.Client
	log       logger.ILogger
}

func NewDocumentService(
	pubSub *gochannel.GoChannel,
	topicName string,
	index corpus.Index,
	redisClient *redis.Client,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		pubSub:    pubSub,
		topicName: topicName,
		index:     index,
		redis:     redisClient,
		log:       log,
	}
}

func (s *documentService) Upload(ctx context.Context, req *dto.UploadDocumentRequest) (string, error) {
	taskID := uuid.NewString()

	payload, err := json.Marshal(dto.PublishDocumentMessage{
		TaskId:     taskID,
		FileName:   req.FileName,
		Content:    req.Content,
		SourceURL:  req.SourceURL,
		SourceType: req.SourceType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ingest message: %w", err)
	}

	if err := s.setTaskStatus(ctx, taskID, TaskStatusQueued, ""); err != nil {
		return "", err
	}

	if err := s.pubSub.Publish(s.topicName, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return "", fmt.Errorf("failed to queue document: %w", err)
	}

	s.log.Info("document", "document queued for ingestion", map[string]interface{}{
		"task_id":   taskID,
		"file_name": req.FileName,
	})
	return taskID, nil
}

func (s *documentService) TaskStatus(ctx context.Context, taskID string) (*dto.TaskStatusResponse, error) {
	raw, err := s.redis.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var status dto.TaskStatusResponse
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("corrupt task record: %w", err)
	}
	return &status, nil
}

func (s *documentService) ListFiles(ctx context.Context) ([]string, error) {
	return s.index.ListFiles(ctx)
}

func (s *documentService) setTaskStatus(ctx context.Context, taskID, status, detail string) error {
	payload, err := json.Marshal(dto.TaskStatusResponse{TaskId: taskID, Status: status, Detail: detail})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, taskKeyPrefix+taskID, payload, taskTTL).Err()
}
