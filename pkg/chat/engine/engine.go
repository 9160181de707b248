// Package engine drives one conversation turn end to end: prompt building,
// generation call, incremental decoding, and message state transitions.
package engine

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"coeus-ai-be/pkg/chat/prompt"
	"coeus-ai-be/pkg/genai"
)

const (
	WelcomeMessage    = "Hi! Upload a PDF and I can help you study it."
	ApologyMessage    = "Sorry, I ran into a problem generating a response. Please try again."
	NoDocumentsNotice = "Please upload a PDF document first so I can help with that."
)

type UpdateKind string

const (
	UpdateTurnStarted   UpdateKind = "turn_started"
	UpdateStreamStarted UpdateKind = "stream_started"
	UpdateFragment      UpdateKind = "fragment"
	UpdateTurnCompleted UpdateKind = "turn_completed"
	UpdateTurnFailed    UpdateKind = "turn_failed"
	UpdateNotice        UpdateKind = "notice"
)

// Update is one incremental change to the streaming assistant message.
type Update struct {
	Kind     UpdateKind
	Fragment string // set for UpdateFragment only
	Message  Message
}

// Sink receives updates in the exact order they are applied to the
// conversation.
type Sink func(Update)

type Engine struct {
	invoker genai.Invoker
	logger  *log.Logger
}

func New(invoker genai.Invoker, logger *log.Logger) *Engine {
	return &Engine{
		invoker: invoker,
		logger:  logger,
	}
}

// SubmitUserMessage appends the user's message and runs a generation turn
// against all currently registered documents. The returned message is the
// assistant placeholder; its terminal state is reached before this returns,
// with the apology text in place of the content on failure.
func (e *Engine) SubmitUserMessage(ctx context.Context, conv *Conversation, text string, sink Sink) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if !conv.beginTurn() {
		return nil, ErrTurnInProgress
	}
	defer conv.endTurn()

	conv.append(&Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   text,
		Status:    StatusComplete,
		CreatedAt: time.Now(),
	})

	docIDs := make([]string, 0)
	for _, doc := range conv.Documents.List() {
		docIDs = append(docIDs, doc.ID)
	}

	placeholder := e.newPlaceholder(&Origin{UserText: text, DocumentIDs: docIDs})
	conv.append(placeholder)

	e.runTurn(ctx, conv, placeholder, sink)
	return placeholder, nil
}

// InvokeTool starts a templated generation turn. With an empty registry it
// appends an assistant notice instead of calling the backend; with several
// documents registered it pauses for an explicit selection
// (ErrSelectionRequired), to be continued via ResumeToolInvocation.
func (e *Engine) InvokeTool(ctx context.Context, conv *Conversation, kind genai.ToolKind, sink Sink) (*Message, error) {
	if !kind.Valid() {
		return nil, ErrUnknownTool
	}

	docs := conv.Documents.List()
	if len(docs) == 0 {
		notice := &Message{
			ID:        uuid.New(),
			Role:      RoleAssistant,
			Content:   NoDocumentsNotice,
			Status:    StatusComplete,
			CreatedAt: time.Now(),
		}
		conv.append(notice)
		e.emit(sink, Update{Kind: UpdateNotice, Message: conv.snapshot(notice)})
		return notice, nil
	}
	if len(docs) > 1 {
		return nil, ErrSelectionRequired
	}

	return e.ResumeToolInvocation(ctx, conv, kind, []string{docs[0].ID}, sink)
}

// ResumeToolInvocation continues a paused tool invocation with the selected
// document ids.
func (e *Engine) ResumeToolInvocation(ctx context.Context, conv *Conversation, kind genai.ToolKind, docIDs []string, sink Sink) (*Message, error) {
	if !kind.Valid() {
		return nil, ErrUnknownTool
	}

	if !conv.beginTurn() {
		return nil, ErrTurnInProgress
	}
	defer conv.endTurn()

	placeholder := e.newPlaceholder(&Origin{Tool: kind, DocumentIDs: docIDs})
	conv.append(placeholder)

	e.runTurn(ctx, conv, placeholder, sink)
	return placeholder, nil
}

// Regenerate reissues the originating request of an assistant message. The
// target is replaced in place by a fresh identity; documents removed since
// the original request are silently omitted.
func (e *Engine) Regenerate(ctx context.Context, conv *Conversation, messageID uuid.UUID, sink Sink) (*Message, error) {
	target, ok := conv.find(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	origin := target.Origin
	if origin == nil {
		return nil, ErrMissingOriginatingRequest
	}

	if !conv.beginTurn() {
		return nil, ErrTurnInProgress
	}
	defer conv.endTurn()

	placeholder := e.newPlaceholder(origin)
	if !conv.replace(messageID, placeholder) {
		return nil, ErrMessageNotFound
	}

	e.runTurn(ctx, conv, placeholder, sink)
	return placeholder, nil
}

// CopyMessageContent returns the current content of a message for the caller
// to place on a clipboard. Pure read.
func (e *Engine) CopyMessageContent(conv *Conversation, messageID uuid.UUID) (string, error) {
	msg, ok := conv.find(messageID)
	if !ok {
		return "", ErrMessageNotFound
	}
	return conv.snapshot(msg).Content, nil
}

func (e *Engine) newPlaceholder(origin *Origin) *Message {
	return &Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Origin:    origin,
	}
}

// runTurn drives prompt building, the generation call, and the decode loop.
// Every failure is absorbed into the placeholder's failed state; nothing
// escapes to the caller.
func (e *Engine) runTurn(ctx context.Context, conv *Conversation, placeholder *Message, sink Sink) {
	e.emit(sink, Update{Kind: UpdateTurnStarted, Message: conv.snapshot(placeholder)})

	payloads, names := e.resolveDocuments(conv, placeholder.Origin)

	instruction, err := prompt.Build(prompt.Request{
		UserText:      placeholder.Origin.UserText,
		Tool:          placeholder.Origin.Tool,
		DocumentNames: names,
	})
	if err != nil {
		e.failTurn(conv, placeholder, sink, err)
		return
	}

	body, err := e.invoker.Invoke(ctx, instruction, payloads)
	if err != nil {
		e.failTurn(conv, placeholder, sink, err)
		return
	}

	// The placeholder enters streaming on the first byte, not the first
	// fragment; content may still be empty while status says streaming.
	decoder := genai.NewDecoder(&firstByteReader{
		inner: body,
		onFirst: func() {
			conv.setStatus(placeholder, StatusStreaming)
			e.emit(sink, Update{Kind: UpdateStreamStarted, Message: conv.snapshot(placeholder)})
		},
	}, e.logger)
	defer decoder.Close()

	for decoder.Next() {
		fragment := decoder.Fragment()
		conv.appendFragment(placeholder, fragment)
		e.emit(sink, Update{Kind: UpdateFragment, Fragment: fragment, Message: conv.snapshot(placeholder)})
	}
	if err := decoder.Err(); err != nil {
		e.failTurn(conv, placeholder, sink, err)
		return
	}

	conv.setStatus(placeholder, StatusComplete)
	e.emit(sink, Update{Kind: UpdateTurnCompleted, Message: conv.snapshot(placeholder)})
}

// resolveDocuments maps the origin's document ids onto the registry's
// current holdings. Removed documents are omitted, not an error.
func (e *Engine) resolveDocuments(conv *Conversation, origin *Origin) ([]genai.DocumentPayload, []string) {
	payloads := make([]genai.DocumentPayload, 0, len(origin.DocumentIDs))
	names := make([]string, 0, len(origin.DocumentIDs))
	for _, id := range origin.DocumentIDs {
		doc, ok := conv.Documents.Get(id)
		if !ok {
			continue
		}
		payloads = append(payloads, genai.DocumentPayload{
			ID:     doc.ID,
			Name:   doc.DisplayName,
			Base64: base64.StdEncoding.EncodeToString(doc.Content),
		})
		names = append(names, doc.DisplayName)
	}
	return payloads, names
}

func (e *Engine) failTurn(conv *Conversation, placeholder *Message, sink Sink, cause error) {
	e.logger.Printf("[ERROR] Turn failed for message %s: %v", placeholder.ID, cause)
	conv.fail(placeholder, ApologyMessage)
	e.emit(sink, Update{Kind: UpdateTurnFailed, Message: conv.snapshot(placeholder)})
}

func (e *Engine) emit(sink Sink, update Update) {
	if sink != nil {
		sink(update)
	}
}

// firstByteReader fires a callback once, on the first successful read.
type firstByteReader struct {
	inner   io.ReadCloser
	onFirst func()
	fired   bool
}

func (r *firstByteReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 && !r.fired {
		r.fired = true
		r.onFirst()
	}
	return n, err
}

func (r *firstByteReader) Close() error {
	return r.inner.Close()
}
