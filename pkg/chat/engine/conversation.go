package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"coeus-ai-be/pkg/chat/registry"
	"coeus-ai-be/pkg/genai"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Origin records enough of the request that produced an assistant message to
// reissue it identically. Only generation-backed messages carry one.
type Origin struct {
	UserText    string
	Tool        genai.ToolKind
	DocumentIDs []string
}

type Message struct {
	ID        uuid.UUID
	Role      Role
	Content   string
	Status    Status
	CreatedAt time.Time
	Origin    *Origin
}

// Conversation is the ordered message sequence of one chat session, plus its
// document registry. Append-only, except for in-place mutation of the single
// streaming message and for regeneration, which swaps one assistant
// message's identity without moving it.
type Conversation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Documents *registry.Registry

	mu       sync.Mutex
	messages []*Message
	busy     bool
}

func NewConversation(userID uuid.UUID, docs *registry.Registry) *Conversation {
	conv := &Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now(),
		Documents: docs,
	}
	// Welcome message carries no origin, so it can never be regenerated.
	conv.messages = append(conv.messages, &Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Content:   WelcomeMessage,
		Status:    StatusComplete,
		CreatedAt: time.Now(),
	})
	return conv
}

// Messages returns value snapshots in creation order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, msg := range c.messages {
		out[i] = *msg
	}
	return out
}

// beginTurn claims the single turn slot. A second turn while one is active
// is rejected, never interleaved.
func (c *Conversation) beginTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Conversation) endTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}

func (c *Conversation) append(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// replace swaps the message with the given id for a new one at the same
// position. Returns false if the id is unknown.
func (c *Conversation) replace(id uuid.UUID, msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == id {
			c.messages[i] = msg
			return true
		}
	}
	return false
}

func (c *Conversation) find(id uuid.UUID) (*Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

func (c *Conversation) snapshot(msg *Message) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *msg
}

func (c *Conversation) setStatus(msg *Message, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Status = status
}

// appendFragment is a strict ordered append; fragments are never dropped or
// duplicated here.
func (c *Conversation) appendFragment(msg *Message, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Content += fragment
}

func (c *Conversation) fail(msg *Message, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Content = content
	msg.Status = StatusFailed
}
