package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"coeus-ai-be/internal/dto"
	"coeus-ai-be/internal/pkg/serverutils"
	"coeus-ai-be/internal/service"
	"coeus-ai-be/internal/websocket"
	"coeus-ai-be/pkg/chat/engine"
	"coeus-ai-be/pkg/genai"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	InvokeTool(ctx *fiber.Ctx) error
	Regenerate(ctx *fiber.Ctx) error
	CopyMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService     service.IChatService
	documentService service.IDocumentService
	wsHub           *websocket.Hub
}

func NewChatController(chatService service.IChatService, documentService service.IDocumentService, wsHub *websocket.Hub) IChatController {
	return &chatController{
		chatService:     chatService,
		documentService: documentService,
		wsHub:           wsHub,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions/:id/messages", c.GetChatHistory)
	h.Delete("sessions/:id", c.DeleteSession)
	h.Post("sessions/:id/messages", c.Send)
	h.Post("sessions/:id/tools", c.InvokeTool)
	h.Post("sessions/:id/messages/:messageId/regenerate", c.Regenerate)
	h.Get("sessions/:id/messages/:messageId/content", c.CopyMessage)

	h.Use("sessions/:id/ws", func(ctx *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	h.Get("sessions/:id/ws", fiberws.New(c.handleWs))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)

	res, err := c.chatService.CreateSession(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.chatService.GetChatHistory(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	if err := c.chatService.DeleteSession(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// Send runs a user-message turn and streams chunk lines back.
func (c *chatController) Send(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Chat) == "" {
		return engine.ErrEmptyInput
	}

	// Resolve ownership before committing to a streaming response
	if _, err := c.chatService.Conversation(userId, sessionId); err != nil {
		return err
	}

	c.streamTurn(ctx, func(sink engine.Sink) error {
		_, err := c.chatService.SendChat(context.Background(), userId, sessionId, &req, sink)
		return err
	})
	return nil
}

// InvokeTool starts a templated turn. With several documents registered and
// no selection in the request it answers with the selection list instead of
// a stream; the client re-posts with document_ids to resume.
func (c *chatController) InvokeTool(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	var req dto.InvokeToolRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	conv, err := c.chatService.Conversation(userId, sessionId)
	if err != nil {
		return err
	}

	if len(req.DocumentIds) == 0 {
		switch conv.Documents.Len() {
		case 0:
			// Notice message instead of a generation call
			msg, err := c.chatService.InvokeTool(ctx.Context(), userId, sessionId, &req, nil)
			if err != nil {
				return err
			}
			return ctx.JSON(serverutils.SuccessResponse("No documents available", &dto.ChatMessageResponse{
				Id:        msg.ID,
				Role:      string(msg.Role),
				Content:   msg.Content,
				Status:    string(msg.Status),
				CreatedAt: msg.CreatedAt,
			}))
		case 1:
			// Implicit selection, fall through to the stream
		default:
			docs, err := c.documentService.List(ctx.Context(), userId, sessionId)
			if err != nil {
				return err
			}
			selection := dto.SelectionRequiredResponse{ToolType: req.ToolType}
			for _, doc := range docs {
				selection.Documents = append(selection.Documents, *doc)
			}
			return ctx.Status(fiber.StatusConflict).
				JSON(serverutils.FailResponse("Document selection required", selection))
		}
	}

	c.streamTurn(ctx, func(sink engine.Sink) error {
		_, err := c.chatService.InvokeTool(context.Background(), userId, sessionId, &req, sink)
		return err
	})
	return nil
}

func (c *chatController) Regenerate(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))
	messageId, _ := uuid.Parse(ctx.Params("messageId"))

	conv, err := c.chatService.Conversation(userId, sessionId)
	if err != nil {
		return err
	}
	// Fail fast on non-regenerable targets, before the stream opens
	for _, msg := range conv.Messages() {
		if msg.ID == messageId && msg.Origin == nil {
			return engine.ErrMissingOriginatingRequest
		}
	}

	c.streamTurn(ctx, func(sink engine.Sink) error {
		_, err := c.chatService.Regenerate(context.Background(), userId, sessionId, messageId, sink)
		return err
	})
	return nil
}

func (c *chatController) CopyMessage(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId, _ := uuid.Parse(ctx.Params("id"))
	messageId, _ := uuid.Parse(ctx.Params("messageId"))

	res, err := c.chatService.CopyMessage(ctx.Context(), userId, sessionId, messageId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get message content", res))
}

// streamTurn commits the response to the chunk-line protocol and runs the
// turn inside the body writer. Precondition failures after commit surface as
// a single {"error": ...} line.
func (c *chatController) streamTurn(ctx *fiber.Ctx, run func(engine.Sink) error) {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		sink := func(update engine.Update) {
			if update.Kind != engine.UpdateFragment {
				return
			}
			fragment := update.Fragment
			if err := enc.Encode(genai.ChunkLine{Chunk: &fragment}); err != nil {
				return
			}
			w.Flush()
		}

		if err := run(sink); err != nil {
			enc.Encode(fiber.Map{"error": err.Error()})
			w.Flush()
		}
	}))
}

func (c *chatController) handleWs(conn *fiberws.Conn) {
	userIdStr, _ := conn.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		conn.Close()
		return
	}
	sessionId, err := uuid.Parse(conn.Params("id"))
	if err != nil {
		conn.Close()
		return
	}

	conv, err := c.chatService.Conversation(userId, sessionId)
	if err != nil {
		conn.Close()
		return
	}

	websocket.ServeWs(c.wsHub, conn, conv.ID)
}

func currentUserId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}
