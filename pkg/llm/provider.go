package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Attachment is a binary part sent alongside a prompt (e.g. an uploaded PDF).
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Stream is a lazy, finite, non-restartable sequence of text fragments.
// Callers loop Next, read Text, then check Err once Next returns false.
type Stream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// StreamingProvider is an LLMProvider that can stream a generation
// incrementally, optionally grounded on binary attachments.
type StreamingProvider interface {
	LLMProvider

	// GenerateStream opens an incremental generation. The returned stream
	// yields fragments in model output order.
	GenerateStream(ctx context.Context, prompt string, attachments []Attachment, options ...Option) (Stream, error)
}
