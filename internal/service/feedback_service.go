package service

import (
	"context"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/entity"
	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/internal/repository/contract"
)

type IFeedbackService interface {
	Create(ctx context.Context, req *dto.CreateFeedbackRequest) (*entity.Feedback, error)
}

type feedbackService struct {
	repo contract.FeedbackRepository
	log  logger.ILogger
}

func NewFeedbackService(repo contract.FeedbackRepository, log logger.ILogger) IFeedbackService {
	return &feedbackService{repo: repo, log: log}
}

func (s *feedbackService) Create(ctx context.Context, req *dto.CreateFeedbackRequest) (*entity.Feedback, error) {
	feedback := &entity.Feedback{
		SessionId: req.SessionId,
		Question:  req.Question,
		Answer:    req.Answer,
		Rating:    req.Rating,
		Tags:      req.Tags,
		Comment:   req.Comment,
	}

	if err := s.repo.Create(ctx, feedback); err != nil {
		s.log.Error("feedback", "failed to store feedback", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	s.log.Info("feedback", "feedback recorded", map[string]interface{}{
		"session_id": feedback.SessionId,
		"rating":     feedback.Rating,
	})
	return feedback, nil
}
