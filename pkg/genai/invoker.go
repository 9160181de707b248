package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"coeus-ai-be/pkg/llm"
)

// ProviderInvoker adapts an in-process streaming LLM provider to the wire
// protocol, so local and remote backends feed the same decoder. Provider
// fragments are re-encoded as {"chunk": ...} lines through a pipe.
type ProviderInvoker struct {
	Provider llm.StreamingProvider
}

var _ Invoker = &ProviderInvoker{}

func NewProviderInvoker(provider llm.StreamingProvider) *ProviderInvoker {
	return &ProviderInvoker{Provider: provider}
}

func (p *ProviderInvoker) Invoke(ctx context.Context, instruction string, documents []DocumentPayload) (io.ReadCloser, error) {
	attachments := make([]llm.Attachment, 0, len(documents))
	for _, doc := range documents {
		data, err := base64.StdEncoding.DecodeString(doc.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode document %q: %w", doc.Name, err)
		}
		attachments = append(attachments, llm.Attachment{
			Name:     doc.Name,
			MIMEType: "application/pdf",
			Data:     data,
		})
	}

	stream, err := p.Provider.GenerateStream(ctx, instruction, attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer stream.Close()
		enc := json.NewEncoder(pw)
		for stream.Next() {
			text := stream.Text()
			// Encode appends the newline delimiter itself.
			if err := enc.Encode(ChunkLine{Chunk: &text}); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(stream.Err())
	}()

	return pr, nil
}
