// FILE: internal/service/consumer_service.go
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"coeus-ai-be/internal/dto"
	"coeus-ai-be/internal/pkg/logger"
	"coeus-ai-be/internal/repository/memory"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService computes audit stats for uploaded documents off the
// request path: checksum, size, rough page count.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	convRepo  *memory.ConversationRepository
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	convRepo *memory.ConversationRepository,
	sysLogger logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		convRepo:  convRepo,
		logger:    sysLogger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishDocumentUploadedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	conv, found := cs.convRepo.Get(payload.ConversationId)
	if !found {
		// Conversation expired between upload and processing? Ack.
		cs.logger.Warn("Consumer", "Conversation not found for uploaded document", map[string]interface{}{
			"conversation_id": payload.ConversationId,
			"document_id":     payload.DocumentId,
		})
		msg.Ack()
		return
	}

	doc, found := conv.Documents.Get(payload.DocumentId)
	if !found {
		// Removed already. Ack.
		msg.Ack()
		return
	}

	checksum := sha256.Sum256(doc.Content)
	cs.logger.Info("Consumer", "Document stats computed", map[string]interface{}{
		"conversation_id": payload.ConversationId,
		"document_id":     doc.ID,
		"name":            doc.DisplayName,
		"size_bytes":      len(doc.Content),
		"sha256":          fmt.Sprintf("%x", checksum),
		"page_estimate":   estimatePages(doc.Content),
	})

	msg.Ack()
}

// estimatePages counts page object markers in the raw PDF. Rough but good
// enough for the audit log.
func estimatePages(content []byte) int {
	n := bytes.Count(content, []byte("/Type /Page"))
	n -= bytes.Count(content, []byte("/Type /Pages"))
	if n < 1 {
		n = 1
	}
	return n
}
