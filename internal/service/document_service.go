// FILE: internal/service/document_service.go
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"coeus-ai-be/internal/dto"
	"coeus-ai-be/internal/repository/memory"
	"coeus-ai-be/pkg/chat/engine"
)

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, fileName string, content []byte) (*dto.UploadDocumentResponse, error)
	List(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.DocumentResponse, error)
	Remove(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, documentId string) error
}

type documentService struct {
	convRepo         *memory.ConversationRepository
	publisherService IPublisherService
}

func NewDocumentService(
	convRepo *memory.ConversationRepository,
	publisherService IPublisherService,
) IDocumentService {
	return &documentService{
		convRepo:         convRepo,
		publisherService: publisherService,
	}
}

func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, fileName string, content []byte) (*dto.UploadDocumentResponse, error) {
	conv, err := s.conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}

	doc, err := conv.Documents.Add(content, fileName)
	if err != nil {
		return nil, err
	}

	msgPayload := dto.PublishDocumentUploadedMessage{
		ConversationId: conv.ID.String(),
		DocumentId:     doc.ID,
		Name:           doc.DisplayName,
		SizeBytes:      len(doc.Content),
	}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return nil, err
	}

	// Stats run off the request path; failure to enqueue is not fatal to the upload
	if err := s.publisherService.Publish(ctx, msgJson); err != nil {
		fmt.Printf("[WARN] Failed to publish DOCUMENT_UPLOADED event: %v\n", err)
	}

	return &dto.UploadDocumentResponse{
		Success: true,
		Id:      doc.ID,
		Name:    doc.DisplayName,
		Base64:  base64.StdEncoding.EncodeToString(doc.Content),
	}, nil
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.DocumentResponse, error) {
	conv, err := s.conversation(userId, sessionId)
	if err != nil {
		return nil, err
	}

	docs := conv.Documents.List()
	response := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		response = append(response, &dto.DocumentResponse{
			Id:          doc.ID,
			Name:        doc.DisplayName,
			SizeBytes:   len(doc.Content),
			ContentType: doc.ContentType,
			UploadedAt:  doc.UploadedAt,
		})
	}
	return response, nil
}

func (s *documentService) Remove(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, documentId string) error {
	conv, err := s.conversation(userId, sessionId)
	if err != nil {
		return err
	}

	// No-op if the document is already gone
	conv.Documents.Remove(documentId)
	return nil
}

func (s *documentService) conversation(userId uuid.UUID, sessionId uuid.UUID) (*engine.Conversation, error) {
	conv, found := s.convRepo.Get(sessionId.String())
	if !found || conv.UserID != userId {
		return nil, &dto.SessionNotFoundError{}
	}
	return conv, nil
}
