// Package genai carries the generation wire protocol: the JSON request shape
// accepted by the generation endpoint and the newline-delimited JSON chunk
// stream it answers with.
package genai

import "fmt"

// ToolKind is the closed set of predefined, templated generation requests.
type ToolKind string

const (
	ToolStudyPlan           ToolKind = "studyPlan"
	ToolQuickSummary        ToolKind = "quickSummary"
	ToolDetailedExplanation ToolKind = "detailedExplanation"
	ToolPracticeQuestions   ToolKind = "practiceQuestions"
)

func (k ToolKind) Valid() bool {
	switch k {
	case ToolStudyPlan, ToolQuickSummary, ToolDetailedExplanation, ToolPracticeQuestions:
		return true
	}
	return false
}

// DocumentPayload is one uploaded document on the wire.
type DocumentPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Base64 string `json:"base64"`
}

// Request is the canonical multi-document request body. Exactly one of
// Message / ToolType is set per request.
type Request struct {
	Message  string            `json:"message,omitempty"`
	ToolType ToolKind          `json:"toolType,omitempty"`
	PDFFiles []DocumentPayload `json:"pdfFiles,omitempty"`

	// Legacy single-document shape. Accepted on input only; Normalize folds
	// it into PDFFiles.
	PDFData *LegacyDocument `json:"pdfData,omitempty"`
}

// LegacyDocument is the pre-multi-document wire shape.
type LegacyDocument struct {
	Name   string `json:"name"`
	Base64 string `json:"base64"`
}

// Normalize translates the legacy pdfData shape onto the canonical pdfFiles
// shape. The canonical shape wins when both are present.
func (r *Request) Normalize() {
	if r.PDFData == nil {
		return
	}
	if len(r.PDFFiles) == 0 {
		r.PDFFiles = []DocumentPayload{{
			ID:     "legacy-0",
			Name:   r.PDFData.Name,
			Base64: r.PDFData.Base64,
		}}
	}
	r.PDFData = nil
}

// Validate checks the request carries exactly one kind of instruction.
func (r *Request) Validate() error {
	if r.Message == "" && r.ToolType == "" {
		return fmt.Errorf("request needs a message or a toolType")
	}
	if r.Message != "" && r.ToolType != "" {
		return fmt.Errorf("request cannot carry both a message and a toolType")
	}
	if r.ToolType != "" && !r.ToolType.Valid() {
		return fmt.Errorf("unknown toolType %q", r.ToolType)
	}
	return nil
}

// ChunkLine is one decoded line of the streaming response body.
type ChunkLine struct {
	Chunk *string `json:"chunk,omitempty"`
	// Response is set instead of Chunk by the non-streaming backend mode,
	// which returns a single JSON object for the whole generation.
	Response *string `json:"response,omitempty"`
}
