package controller

import (
	"github.com/gofiber/fiber/v2"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/pkg/serverutils"
	"rag-assistant-be/internal/service"
)

type IFeedbackController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
}

type feedbackController struct {
	feedbackService service.IFeedbackService
}

func NewFeedbackController(feedbackService service.IFeedbackService) IFeedbackController {
	return &feedbackController{feedbackService: feedbackService}
}

func (c *feedbackController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/feedback/v1")
	h.Post("", c.Create)
}

func (c *feedbackController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	feedback, err := c.feedbackService.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}

	res := dto.CreateFeedbackResponse{Id: feedback.Id, CreatedAt: feedback.CreatedAt}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Feedback recorded", res))
}
