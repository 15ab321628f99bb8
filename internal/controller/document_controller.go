package controller

import (
	"github.com/gofiber/fiber/v2"

	"rag-assistant-be/internal/dto"
	"rag-assistant-be/internal/pkg/serverutils"
	"rag-assistant-be/internal/service"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	TaskStatus(ctx *fiber.Ctx) error
	ListFiles(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{documentService: documentService}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("", c.Upload)
	h.Get("files", c.ListFiles)
	h.Get("task/:id", c.TaskStatus)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	var req dto.UploadDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	taskID, err := c.documentService.Upload(ctx.Context(), &req)
	if err != nil {
		return err
	}

	res := dto.UploadDocumentResponse{TaskId: taskID, Status: service.TaskStatusQueued}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", res))
}

func (c *documentController) TaskStatus(ctx *fiber.Ctx) error {
	taskID := ctx.Params("id")

	status, err := c.documentService.TaskStatus(ctx.Context(), taskID)
	if err != nil {
		return err
	}
	if status == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Task not found"))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", status))
}

func (c *documentController) ListFiles(ctx *fiber.Ctx) error {
	files, err := c.documentService.ListFiles(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", dto.ListFilesResponse{Files: files}))
}
