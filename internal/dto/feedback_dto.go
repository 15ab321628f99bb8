package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateFeedbackRequest struct {
	SessionId string   `json:"session_id" validate:"required"`
	Question  string   `json:"question" validate:"required"`
	Answer    string   `json:"answer"`
	Rating    int      `json:"rating" validate:"required,oneof=1 5"`
	Tags      []string `json:"tags,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

type CreateFeedbackResponse struct {
	Id        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
