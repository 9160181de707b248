package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"coeus-ai-be/internal/dto"
	"coeus-ai-be/pkg/chat/engine"
	"coeus-ai-be/pkg/chat/registry"
	"coeus-ai-be/pkg/genai"
)

// ErrorHandlerMiddleware maps domain errors onto stable HTTP envelopes so
// handlers can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		// Fiber's own errors (404 route, body too large, ...)
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(FailResponse[any](fiberErr.Message, nil))
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(FailResponse("Validation failed", validationErr.Fields))
		}

		var notFound *dto.SessionNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(FailResponse[any](notFound.Error(), nil))
		}

		var rejected *genai.BackendRejectedError
		if errors.As(err, &rejected) {
			return ctx.Status(fiber.StatusBadGateway).JSON(FailResponse[any]("Generation backend rejected the request", nil))
		}

		status := statusFor(err)
		return ctx.Status(status).JSON(FailResponse[any](err.Error(), nil))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrEmptyInput),
		errors.Is(err, engine.ErrUnknownTool),
		errors.Is(err, registry.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, registry.ErrSizeLimitExceeded):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, registry.ErrCapacityExceeded),
		errors.Is(err, engine.ErrTurnInProgress),
		errors.Is(err, engine.ErrSelectionRequired):
		return fiber.StatusConflict
	case errors.Is(err, engine.ErrMessageNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrMissingOriginatingRequest):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, genai.ErrBackendUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
