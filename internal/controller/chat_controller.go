package controller

import (
	"bufio"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/internal/pkg/serverutils"
	"rag-assistant-be/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Send(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	log         logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{chatService: chatService, log: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.Send)
}

// Send streams the answer as plain text fragments. The session id
// travels in the X-Session-ID header; a missing header starts a fresh
// session whose id is echoed back in the response headers.
func (c *chatController) Send(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	sessionID := ctx.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx.Set("Content-Type", "text/plain; charset=utf-8")
	ctx.Set("X-Session-ID", sessionID)
	ctx.Set("Cache-Control", "no-cache")

	// The request context dies with the handler, so the stream
	// writer carries its own.
	streamCtx := context.Background()
	message := req.Message

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		fragments := c.chatService.StreamAnswer(streamCtx, sessionID, message)
		for fragment := range fragments {
			if _, err := w.WriteString(fragment); err != nil {
				// Client went away. Draining keeps the turn
				// finishing so history still gets saved.
				for range fragments {
				}
				return
			}
			if err := w.Flush(); err != nil {
				for range fragments {
				}
				return
			}
		}
	}))

	return nil
}
