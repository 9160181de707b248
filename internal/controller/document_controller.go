package controller

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"coeus-ai-be/internal/pkg/serverutils"
	"coeus-ai-be/internal/service"
	"coeus-ai-be/pkg/chat/registry"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Remove(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{documentService: documentService}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1/sessions/:id/documents")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/", c.Upload)
	h.Get("/", c.List)
	h.Delete("/:documentId", c.Remove)
}

// Upload accepts a multipart PDF and registers it on the session. The
// response keeps the flat {success,name,base64} / {error} shape the web
// client consumes.
func (c *documentController) Upload(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No PDF file provided"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process PDF"})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process PDF"})
	}

	res, err := c.documentService.Upload(ctx.Context(), userId, sessionId, fileHeader.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnsupportedFormat):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "File must be a PDF"})
		case errors.Is(err, registry.ErrSizeLimitExceeded):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "PDF file is too large"})
		case errors.Is(err, registry.ErrCapacityExceeded):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Document limit reached for this session"})
		default:
			return err
		}
	}

	return ctx.JSON(res)
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.documentService.List(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get documents", res))
}

func (c *documentController) Remove(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	if err := c.documentService.Remove(ctx.Context(), userId, sessionId, ctx.Params("documentId")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success remove document", nil))
}
