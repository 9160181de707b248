// Package prompt produces the exact instruction text sent to the generation
// backend. Building is pure: identical requests always yield identical text.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"coeus-ai-be/pkg/genai"
)

var (
	ErrUnknownTool = errors.New("unknown tool kind")
	// ErrNoDocuments guards tool requests that slipped past the caller's
	// empty-registry check.
	ErrNoDocuments = errors.New("tool request requires at least one document")
)

// Request is the tagged input of the builder: either a free-text user
// message or a tool kind, never both, plus the display names of the selected
// documents in selection order.
type Request struct {
	UserText      string
	Tool          genai.ToolKind
	DocumentNames []string
}

// Build produces the instruction text for a request.
func Build(req Request) (string, error) {
	if req.Tool != "" {
		if !req.Tool.Valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownTool, req.Tool)
		}
		if len(req.DocumentNames) == 0 {
			return "", ErrNoDocuments
		}
		return toolTemplate(req.Tool, documentContext(req.DocumentNames)), nil
	}

	if len(req.DocumentNames) == 0 {
		return req.UserText, nil
	}
	return fmt.Sprintf("Answer the following %s.\n\n%s", documentContext(req.DocumentNames), req.UserText), nil
}

// documentContext names the selected document(s), singular phrasing for one,
// plural for several.
func documentContext(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	if len(quoted) == 1 {
		return fmt.Sprintf("based on the uploaded document %s", quoted[0])
	}
	return fmt.Sprintf("based on the uploaded documents %s", strings.Join(quoted, ", "))
}

func toolTemplate(kind genai.ToolKind, docContext string) string {
	switch kind {
	case genai.ToolStudyPlan:
		return fmt.Sprintf("Create a comprehensive study plan %s. Break the material into key topics, define learning objectives for each topic, recommend how much study time to allocate per topic, suggest study activities, set milestones, and reference the relevant sections.", docContext)
	case genai.ToolQuickSummary:
		return fmt.Sprintf("Provide a concise summary %s. Aim for roughly one-fifth the length of the source, cover the main arguments and findings, and preserve the logical flow of the original.", docContext)
	case genai.ToolDetailedExplanation:
		return fmt.Sprintf("Give a detailed explanation of the concepts %s. Break down each concept step by step, provide examples and analogies where appropriate, cross-reference related ideas, and call out common misconceptions.", docContext)
	case genai.ToolPracticeQuestions:
		return fmt.Sprintf("Generate a set of 10-15 practice questions %s. Include a mix of multiple choice, short answer, and analytical questions, organize them by topic, and provide answers with explanations.", docContext)
	}
	return ""
}
