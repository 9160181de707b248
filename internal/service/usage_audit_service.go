package service

import (
	"context"

	"coeus-ai-be/internal/pkg/logger"
	"coeus-ai-be/pkg/events"
	pktNats "coeus-ai-be/pkg/nats"
)

type IUsageAuditService interface {
	Start() error
}

// usageAuditService tails settled-turn events off the bus and writes them to
// the audit log. It is the read side of the events the chat service publishes.
type usageAuditService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewUsageAuditService(subscriber *pktNats.Subscriber, sysLogger logger.ILogger) IUsageAuditService {
	return &usageAuditService{
		subscriber: subscriber,
		logger:     sysLogger,
	}
}

func (s *usageAuditService) Start() error {
	return s.subscriber.Subscribe("events.CHAT_TURN_COMPLETED", "usage-audit", s.handleTurnCompleted)
}

func (s *usageAuditService) handleTurnCompleted(ctx context.Context, event events.Event) error {
	s.logger.Info("UsageAudit", "Chat turn settled", event.Payload())
	return nil
}
