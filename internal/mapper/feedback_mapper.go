package mapper

import (
	"encoding/json"

	"rag-assistant-be/internal/entity"
	"rag-assistant-be/internal/model"

	"gorm.io/datatypes"
)

type FeedbackMapper struct{}

func NewFeedbackMapper() *FeedbackMapper {
	return &FeedbackMapper{}
}

func (m *FeedbackMapper) ToEntity(f *model.Feedback) *entity.Feedback {
	if f == nil {
		return nil
	}

	var tags []string
	if len(f.Tags) > 0 {
		// A corrupt tags column degrades to no tags.
		_ = json.Unmarshal(f.Tags, &tags)
	}

	return &entity.Feedback{
		Id:        f.Id,
		SessionId: f.SessionId,
		Question:  f.Question,
		Answer:    f.Answer,
		Rating:    f.Rating,
		Tags:      tags,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

func (m *FeedbackMapper) ToModel(f *entity.Feedback) *model.Feedback {
	if f == nil {
		return nil
	}

	var tags datatypes.JSON
	if len(f.Tags) > 0 {
		raw, err := json.Marshal(f.Tags)
		if err == nil {
			tags = raw
		}
	}

	return &model.Feedback{
		Id:        f.Id,
		SessionId: f.SessionId,
		Question:  f.Question,
		Answer:    f.Answer,
		Rating:    f.Rating,
		Tags:      tags,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

func (m *FeedbackMapper) ToEntities(feedbacks []*model.Feedback) []*entity.Feedback {
	entities := make([]*entity.Feedback, len(feedbacks))
	for i, f := range feedbacks {
		entities[i] = m.ToEntity(f)
	}
	return entities
}
