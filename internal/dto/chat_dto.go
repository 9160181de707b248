package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type ChatMessageResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SendChatRequest struct {
	Chat string `json:"chat" validate:"required"`
}

type InvokeToolRequest struct {
	ToolType    string   `json:"tool_type" validate:"required,oneof=studyPlan quickSummary detailedExplanation practiceQuestions"`
	DocumentIds []string `json:"document_ids,omitempty" validate:"max=3"`
}

// SelectionRequiredResponse is returned when a tool invocation needs an
// explicit document selection before it can proceed.
type SelectionRequiredResponse struct {
	ToolType  string             `json:"tool_type"`
	Documents []DocumentResponse `json:"documents"`
}

type CopyMessageResponse struct {
	Id      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

// --- Session lookup errors ---

// SessionNotFoundError covers both unknown and foreign sessions; callers
// cannot tell the difference.
type SessionNotFoundError struct{}

func (e *SessionNotFoundError) Error() string {
	return "session not found or access denied"
}
