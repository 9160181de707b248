package dto

import "time"

// UploadDocumentResponse mirrors the legacy upload contract: the client
// keeps name + base64 to echo back on generation requests.
type UploadDocumentResponse struct {
	Success bool   `json:"success"`
	Id      string `json:"id"`
	Name    string `json:"name"`
	Base64  string `json:"base64"`
}

type DocumentResponse struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	SizeBytes   int       `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// PublishDocumentUploadedMessage is the pub/sub payload emitted after a
// successful upload, consumed by the stats consumer.
type PublishDocumentUploadedMessage struct {
	ConversationId string `json:"conversation_id"`
	DocumentId     string `json:"document_id"`
	Name           string `json:"name"`
	SizeBytes      int    `json:"size_bytes"`
}
