package dto

type SendChatRequest struct {
	Message string `json:"message" validate:"required"`
}
