package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"coeus-ai-be/internal/dto"
	"coeus-ai-be/internal/repository/memory"
	"coeus-ai-be/internal/websocket"
	"coeus-ai-be/pkg/chat/engine"
	"coeus-ai-be/pkg/chat/registry"
	"coeus-ai-be/pkg/events"
	"coeus-ai-be/pkg/genai"
	pktNats "coeus-ai-be/pkg/nats"
)

// IChatService defines the chat service interface
type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.ChatMessageResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error

	SendChat(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.SendChatRequest, sink engine.Sink) (*engine.Message, error)
	InvokeTool(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.InvokeToolRequest, sink engine.Sink) (*engine.Message, error)
	Regenerate(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, messageId uuid.UUID, sink engine.Sink) (*engine.Message, error)
	CopyMessage(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, messageId uuid.UUID) (*dto.CopyMessageResponse, error)

	// Conversation resolves an owned conversation for collaborators
	// (websocket handler, document selection responses).
	Conversation(userId uuid.UUID, sessionId uuid.UUID) (*engine.Conversation, error)
}

// chatService owns conversation lifecycles and decorates engine turns with
// notifications and usage events.
type chatService struct {
	convRepo       *memory.ConversationRepository
	turnEngine     *engine.Engine
	maxDocs        int
	maxDocBytes    int64
	wsHub          *websocket.Hub
	eventPublisher *pktNats.Publisher
	turnLogger     *log.Logger
}

func NewChatService(
	convRepo *memory.ConversationRepository,
	invoker genai.Invoker,
	maxDocs int,
	maxDocBytes int64,
	wsHub *websocket.Hub,
	eventPublisher *pktNats.Publisher,
) IChatService {
	turnLogger := initTurnLogger()

	return &chatService{
		convRepo:       convRepo,
		turnEngine:     engine.New(invoker, turnLogger),
		maxDocs:        maxDocs,
		maxDocBytes:    maxDocBytes,
		wsHub:          wsHub,
		eventPublisher: eventPublisher,
		turnLogger:     turnLogger,
	}
}

func initTurnLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "chat_turns.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[CHAT-TURN] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// CreateSession creates a new conversation seeded with the welcome message.
func (cs *chatService) CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error) {
	conv := engine.NewConversation(userId, registry.New(cs.maxDocs, cs.maxDocBytes))
	cs.convRepo.Save(conv)

	return &dto.CreateSessionResponse{Id: conv.ID}, nil
}

// GetChatHistory returns the messages of a session in creation order.
func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.ChatMessageResponse, error) {
	conv, err := cs.Conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}

	messages := conv.Messages()
	response := make([]*dto.ChatMessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, &dto.ChatMessageResponse{
			Id:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Status:    string(msg.Status),
			CreatedAt: msg.CreatedAt,
		})
	}
	return response, nil
}

func (cs *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	if _, err := cs.Conversation(userId, sessionId); err != nil {
		return err
	}
	cs.convRepo.Delete(sessionId.String())
	return nil
}

func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.SendChatRequest, sink engine.Sink) (*engine.Message, error) {
	conv, err := cs.Conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	return cs.turnEngine.SubmitUserMessage(ctx, conv, req.Chat, cs.decorateSink(conv, sink, started))
}

func (cs *chatService) InvokeTool(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.InvokeToolRequest, sink engine.Sink) (*engine.Message, error) {
	conv, err := cs.Conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	kind := genai.ToolKind(req.ToolType)

	// An explicit selection resumes a paused invocation.
	if len(req.DocumentIds) > 0 {
		return cs.turnEngine.ResumeToolInvocation(ctx, conv, kind, req.DocumentIds, cs.decorateSink(conv, sink, started))
	}
	return cs.turnEngine.InvokeTool(ctx, conv, kind, cs.decorateSink(conv, sink, started))
}

func (cs *chatService) Regenerate(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, messageId uuid.UUID, sink engine.Sink) (*engine.Message, error) {
	conv, err := cs.Conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	return cs.turnEngine.Regenerate(ctx, conv, messageId, cs.decorateSink(conv, sink, started))
}

func (cs *chatService) CopyMessage(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, messageId uuid.UUID) (*dto.CopyMessageResponse, error) {
	conv, err := cs.Conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}
	content, err := cs.turnEngine.CopyMessageContent(conv, messageId)
	if err != nil {
		return nil, err
	}
	return &dto.CopyMessageResponse{Id: messageId, Content: content}, nil
}

func (cs *chatService) Conversation(userId uuid.UUID, sessionId uuid.UUID) (*engine.Conversation, error) {
	conv, found := cs.convRepo.Get(sessionId.String())
	if !found || conv.UserID != userId {
		return nil, &dto.SessionNotFoundError{}
	}
	return conv, nil
}

// decorateSink forwards updates to the caller and fans lifecycle events out
// to websocket watchers and the usage bus.
func (cs *chatService) decorateSink(conv *engine.Conversation, sink engine.Sink, started time.Time) engine.Sink {
	return func(update engine.Update) {
		if sink != nil {
			sink(update)
		}

		switch update.Kind {
		case engine.UpdateTurnStarted, engine.UpdateStreamStarted, engine.UpdateTurnCompleted, engine.UpdateTurnFailed:
			if cs.wsHub != nil {
				cs.wsHub.Notify(websocket.TurnEvent{
					ConversationId: conv.ID,
					MessageId:      update.Message.ID,
					Kind:           string(update.Kind),
					At:             time.Now(),
				})
			}
		}

		if update.Kind != engine.UpdateTurnCompleted && update.Kind != engine.UpdateTurnFailed {
			return
		}

		// Usage event for the settled turn
		if cs.eventPublisher != nil {
			evt := events.BaseEvent{
				Type: "CHAT_TURN_COMPLETED",
				Data: map[string]interface{}{
					"conversation_id": conv.ID,
					"message_id":      update.Message.ID,
					"status":          string(update.Message.Status),
					"content_length":  len(update.Message.Content),
					"duration_ms":     time.Since(started).Milliseconds(),
				},
				OccurredAt: time.Now(),
			}
			// Usage reporting is auxiliary; never fail the turn over it
			if err := cs.eventPublisher.Publish(context.Background(), evt); err != nil {
				fmt.Printf("[WARN] Failed to publish CHAT_TURN_COMPLETED event: %v\n", err)
			}
		}
	}
}
