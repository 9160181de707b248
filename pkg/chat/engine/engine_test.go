package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coeus-ai-be/pkg/chat/registry"
	"coeus-ai-be/pkg/genai"
)

// scriptedInvoker replays a fixed response body and records what it was
// called with.
type scriptedInvoker struct {
	body    string
	err     error
	reader  io.ReadCloser // overrides body when set
	calls   int
	gotText string
	gotDocs []genai.DocumentPayload
}

func (s *scriptedInvoker) Invoke(ctx context.Context, instruction string, documents []genai.DocumentPayload) (io.ReadCloser, error) {
	s.calls++
	s.gotText = instruction
	s.gotDocs = documents
	if s.err != nil {
		return nil, s.err
	}
	if s.reader != nil {
		return s.reader, nil
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

// blockingInvoker parks inside Invoke until released, so a second call can be
// issued while the first turn is active.
type blockingInvoker struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingInvoker) Invoke(ctx context.Context, instruction string, documents []genai.DocumentPayload) (io.ReadCloser, error) {
	close(b.entered)
	<-b.release
	return io.NopCloser(strings.NewReader("{\"chunk\":\"late\"}\n")), nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestConversation() *Conversation {
	return NewConversation(uuid.New(), registry.New(3, 1024*1024))
}

func pdfFixture(name string) []byte {
	return []byte("%PDF-1.4\n" + name + "\n%%EOF\n")
}

func TestNewConversationWelcome(t *testing.T) {
	conv := newTestConversation()

	messages := conv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, RoleAssistant, messages[0].Role)
	assert.Equal(t, WelcomeMessage, messages[0].Content)
	assert.Equal(t, StatusComplete, messages[0].Status)
	assert.Nil(t, messages[0].Origin)
}

func TestSubmitUserMessage(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"Hel\"}\n{\"chunk\":\"lo\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	var kinds []UpdateKind
	msg, err := e.SubmitUserMessage(context.Background(), conv, "  What is calculus?  ", func(u Update) {
		kinds = append(kinds, u.Kind)
	})
	require.NoError(t, err)

	// Welcome, user message, assistant reply
	messages := conv.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Equal(t, "What is calculus?", messages[1].Content) // trimmed
	assert.Equal(t, StatusComplete, messages[1].Status)

	assert.Equal(t, msg.ID, messages[2].ID)
	assert.Equal(t, "Hello", messages[2].Content)
	assert.Equal(t, StatusComplete, messages[2].Status)
	require.NotNil(t, messages[2].Origin)
	assert.Equal(t, "What is calculus?", messages[2].Origin.UserText)

	// Lifecycle order: started, first byte, fragments, completed
	assert.Equal(t, []UpdateKind{
		UpdateTurnStarted,
		UpdateStreamStarted,
		UpdateFragment,
		UpdateFragment,
		UpdateTurnCompleted,
	}, kinds)

	assert.Equal(t, "What is calculus?", invoker.gotText)
}

func TestSubmitUserMessageEmpty(t *testing.T) {
	e := New(&scriptedInvoker{}, testLogger())
	conv := newTestConversation()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := e.SubmitUserMessage(context.Background(), conv, text, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Len(t, conv.Messages(), 1)
}

func TestSubmitUserMessageIncludesDocuments(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"ok\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	_, err := conv.Documents.Add(pdfFixture("one"), "one.pdf")
	require.NoError(t, err)
	_, err = conv.Documents.Add(pdfFixture("two"), "two.pdf")
	require.NoError(t, err)

	_, err = e.SubmitUserMessage(context.Background(), conv, "Compare them", nil)
	require.NoError(t, err)

	// All registered documents ride along, in registry order
	require.Len(t, invoker.gotDocs, 2)
	assert.Equal(t, "one.pdf", invoker.gotDocs[0].Name)
	assert.Equal(t, "two.pdf", invoker.gotDocs[1].Name)
	assert.Contains(t, invoker.gotText, "based on the uploaded documents")
}

func TestTurnFailureApology(t *testing.T) {
	invoker := &scriptedInvoker{err: errors.New("backend down")}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	var failed []Message
	msg, err := e.SubmitUserMessage(context.Background(), conv, "hi", func(u Update) {
		if u.Kind == UpdateTurnFailed {
			failed = append(failed, u.Message)
		}
	})
	require.NoError(t, err) // turn failures never escape as call errors

	assert.Equal(t, StatusFailed, msg.Status)
	assert.Equal(t, ApologyMessage, msg.Content)
	require.Len(t, failed, 1)
	assert.Equal(t, msg.ID, failed[0].ID)
}

func TestTurnFailureMidStream(t *testing.T) {
	// Stream breaks after one fragment; partial content is replaced by the
	// apology, not kept.
	invoker := &scriptedInvoker{reader: &erringReader{
		data: "{\"chunk\":\"partial \"}\n",
		err:  errors.New("connection reset"),
	}}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	msg, err := e.SubmitUserMessage(context.Background(), conv, "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, msg.Status)
	assert.Equal(t, ApologyMessage, msg.Content)
}

func TestTurnInProgress(t *testing.T) {
	invoker := &blockingInvoker{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.SubmitUserMessage(context.Background(), conv, "first", nil)
	}()

	<-invoker.entered
	_, err := e.SubmitUserMessage(context.Background(), conv, "second", nil)
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(invoker.release)
	<-done

	// The slot frees up once the first turn settles
	e2 := New(&scriptedInvoker{body: "{\"chunk\":\"ok\"}\n"}, testLogger())
	_, err = e2.SubmitUserMessage(context.Background(), conv, "third", nil)
	assert.NoError(t, err)
}

func TestInvokeToolNoDocuments(t *testing.T) {
	invoker := &scriptedInvoker{}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	var notices int
	msg, err := e.InvokeTool(context.Background(), conv, genai.ToolStudyPlan, func(u Update) {
		if u.Kind == UpdateNotice {
			notices++
		}
	})
	require.NoError(t, err)

	// Exactly one notice, no generation call
	assert.Equal(t, NoDocumentsNotice, msg.Content)
	assert.Equal(t, StatusComplete, msg.Status)
	assert.Nil(t, msg.Origin)
	assert.Equal(t, 1, notices)
	assert.Equal(t, 0, invoker.calls)
	assert.Len(t, conv.Messages(), 2)
}

func TestInvokeToolSingleDocument(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"plan\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	doc, err := conv.Documents.Add(pdfFixture("only"), "only.pdf")
	require.NoError(t, err)

	msg, err := e.InvokeTool(context.Background(), conv, genai.ToolStudyPlan, nil)
	require.NoError(t, err)

	// The single document is selected implicitly
	assert.Equal(t, "plan", msg.Content)
	require.NotNil(t, msg.Origin)
	assert.Equal(t, genai.ToolStudyPlan, msg.Origin.Tool)
	assert.Equal(t, []string{doc.ID}, msg.Origin.DocumentIDs)
	assert.Contains(t, invoker.gotText, "study plan")
	assert.Contains(t, invoker.gotText, "\"only.pdf\"")
}

func TestInvokeToolSelectionRequired(t *testing.T) {
	invoker := &scriptedInvoker{}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	_, err := conv.Documents.Add(pdfFixture("one"), "one.pdf")
	require.NoError(t, err)
	_, err = conv.Documents.Add(pdfFixture("two"), "two.pdf")
	require.NoError(t, err)

	_, err = e.InvokeTool(context.Background(), conv, genai.ToolQuickSummary, nil)
	assert.ErrorIs(t, err, ErrSelectionRequired)
	assert.Equal(t, 0, invoker.calls)
	assert.Len(t, conv.Messages(), 1)
}

func TestInvokeToolUnknownKind(t *testing.T) {
	e := New(&scriptedInvoker{}, testLogger())
	conv := newTestConversation()

	_, err := e.InvokeTool(context.Background(), conv, "essayWriter", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestResumeToolInvocation(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"summary\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	one, err := conv.Documents.Add(pdfFixture("one"), "one.pdf")
	require.NoError(t, err)
	_, err = conv.Documents.Add(pdfFixture("two"), "two.pdf")
	require.NoError(t, err)

	msg, err := e.ResumeToolInvocation(context.Background(), conv, genai.ToolQuickSummary, []string{one.ID}, nil)
	require.NoError(t, err)

	// Only the selected document is sent
	require.Len(t, invoker.gotDocs, 1)
	assert.Equal(t, "one.pdf", invoker.gotDocs[0].Name)
	assert.Contains(t, invoker.gotText, "based on the uploaded document \"one.pdf\"")
	assert.Equal(t, "summary", msg.Content)
}

func TestRegenerate(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"first answer\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	original, err := e.SubmitUserMessage(context.Background(), conv, "Explain this", nil)
	require.NoError(t, err)
	originalID := original.ID

	invoker.body = "{\"chunk\":\"second answer\"}\n"
	replacement, err := e.Regenerate(context.Background(), conv, originalID, nil)
	require.NoError(t, err)

	// Fresh identity, same position, same origin, old id gone
	assert.NotEqual(t, originalID, replacement.ID)
	messages := conv.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, replacement.ID, messages[2].ID)
	assert.Equal(t, "second answer", messages[2].Content)
	require.NotNil(t, messages[2].Origin)
	assert.Equal(t, "Explain this", messages[2].Origin.UserText)

	_, err = e.CopyMessageContent(conv, originalID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRegenerateWelcomeRefused(t *testing.T) {
	e := New(&scriptedInvoker{}, testLogger())
	conv := newTestConversation()

	welcome := conv.Messages()[0]
	_, err := e.Regenerate(context.Background(), conv, welcome.ID, nil)
	assert.ErrorIs(t, err, ErrMissingOriginatingRequest)
}

func TestRegenerateUnknownMessage(t *testing.T) {
	e := New(&scriptedInvoker{}, testLogger())
	conv := newTestConversation()

	_, err := e.Regenerate(context.Background(), conv, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRegenerateAfterDocumentRemoved(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"answer\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	doc, err := conv.Documents.Add(pdfFixture("gone"), "gone.pdf")
	require.NoError(t, err)

	original, err := e.SubmitUserMessage(context.Background(), conv, "About that doc", nil)
	require.NoError(t, err)

	conv.Documents.Remove(doc.ID)

	// Free-text regeneration proceeds without the missing document
	replacement, err := e.Regenerate(context.Background(), conv, original.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, replacement.Status)
	assert.Empty(t, invoker.gotDocs)
	assert.Equal(t, "About that doc", invoker.gotText)
}

func TestRegenerateToolAllDocumentsRemoved(t *testing.T) {
	invoker := &scriptedInvoker{body: "{\"chunk\":\"plan\"}\n"}
	e := New(invoker, testLogger())
	conv := newTestConversation()

	doc, err := conv.Documents.Add(pdfFixture("only"), "only.pdf")
	require.NoError(t, err)

	original, err := e.InvokeTool(context.Background(), conv, genai.ToolStudyPlan, nil)
	require.NoError(t, err)

	conv.Documents.Remove(doc.ID)
	invoker.calls = 0

	// A templated request cannot run without any document; the turn fails
	// with the apology instead of calling the backend.
	replacement, err := e.Regenerate(context.Background(), conv, original.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, replacement.Status)
	assert.Equal(t, ApologyMessage, replacement.Content)
	assert.Equal(t, 0, invoker.calls)
}

func TestCopyMessageContent(t *testing.T) {
	e := New(&scriptedInvoker{body: "{\"chunk\":\"copy me\"}\n"}, testLogger())
	conv := newTestConversation()

	msg, err := e.SubmitUserMessage(context.Background(), conv, "hi", nil)
	require.NoError(t, err)

	content, err := e.CopyMessageContent(conv, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy me", content)

	// Copying is a pure read
	assert.Len(t, conv.Messages(), 3)

	_, err = e.CopyMessageContent(conv, uuid.New())
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestStreamStartedOnFirstByte(t *testing.T) {
	e := New(&scriptedInvoker{body: "{\"chunk\":\"x\"}\n"}, testLogger())
	conv := newTestConversation()

	var statusAtStreamStart Status
	_, err := e.SubmitUserMessage(context.Background(), conv, "hi", func(u Update) {
		if u.Kind == UpdateStreamStarted {
			statusAtStreamStart = u.Message.Status
		}
	})
	require.NoError(t, err)
	assert.Equal(t, StatusStreaming, statusAtStreamStart)
}

// erringReader yields its payload, then a transport error.
type erringReader struct {
	data string
	err  error
	pos  int
}

func (r *erringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, r.err
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *erringReader) Close() error { return nil }
