package controller

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"coeus-ai-be/pkg/chat/prompt"
	"coeus-ai-be/pkg/genai"
)

// IGenerationController serves the stateless generation endpoint: one request
// in, one chunk-line stream out, no session involved.
type IGenerationController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Complete(ctx *fiber.Ctx) error
}

type generationController struct {
	invoker genai.Invoker
	logger  *log.Logger
}

func NewGenerationController(invoker genai.Invoker, logger *log.Logger) IGenerationController {
	return &generationController{invoker: invoker, logger: logger}
}

func (c *generationController) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", c.Generate)
	r.Post("/chat/complete", c.Complete)
}

// Generate streams chunk lines for a single request.
func (c *generationController) Generate(ctx *fiber.Ctx) error {
	req, instruction, err := c.parse(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	body, err := c.invoker.Invoke(ctx.Context(), instruction, req.PDFFiles)
	if err != nil {
		return c.backendError(ctx, err)
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer body.Close()

		// Re-encoding through the decoder normalizes whatever the backend
		// produced (streamed chunks or a single response object) into
		// well-formed chunk lines.
		enc := json.NewEncoder(w)
		decoder := genai.NewDecoder(body, c.logger)
		for decoder.Next() {
			fragment := decoder.Fragment()
			if err := enc.Encode(genai.ChunkLine{Chunk: &fragment}); err != nil {
				return
			}
			w.Flush()
		}
		if err := decoder.Err(); err != nil {
			enc.Encode(fiber.Map{"error": "Stream interrupted"})
			w.Flush()
		}
	}))
	return nil
}

// Complete drains the whole generation and answers with a single
// {"response": ...} object.
func (c *generationController) Complete(ctx *fiber.Ctx) error {
	req, instruction, err := c.parse(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	body, err := c.invoker.Invoke(ctx.Context(), instruction, req.PDFFiles)
	if err != nil {
		return c.backendError(ctx, err)
	}
	defer body.Close()

	var sb strings.Builder
	decoder := genai.NewDecoder(body, c.logger)
	for decoder.Next() {
		sb.WriteString(decoder.Fragment())
	}
	if err := decoder.Err(); err != nil {
		return c.backendError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"response": sb.String()})
}

func (c *generationController) parse(ctx *fiber.Ctx) (*genai.Request, string, error) {
	var req genai.Request
	if err := ctx.BodyParser(&req); err != nil {
		return nil, "", errors.New("invalid request body")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	names := make([]string, 0, len(req.PDFFiles))
	for _, doc := range req.PDFFiles {
		names = append(names, doc.Name)
	}

	instruction, err := prompt.Build(prompt.Request{
		UserText:      req.Message,
		Tool:          req.ToolType,
		DocumentNames: names,
	})
	if err != nil {
		return nil, "", err
	}
	return &req, instruction, nil
}

func (c *generationController) backendError(ctx *fiber.Ctx, err error) error {
	var rejected *genai.BackendRejectedError
	if errors.As(err, &rejected) {
		return ctx.Status(fiber.StatusBadGateway).
			JSON(fiber.Map{"error": "Error from generation backend", "details": rejected.Error()})
	}
	return ctx.Status(fiber.StatusBadGateway).
		JSON(fiber.Map{"error": "Generation backend unavailable", "details": err.Error()})
}
