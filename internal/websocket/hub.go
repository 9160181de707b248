package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"coeus-ai-be/internal/pkg/logger"
)

const redisChannel = "chat_turn_events"

// TurnEvent is the lifecycle notification pushed to conversation watchers.
type TurnEvent struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	MessageId      uuid.UUID `json:"message_id"`
	Kind           string    `json:"kind"` // turn_started | stream_started | turn_completed | turn_failed
	At             time.Time `json:"at"`
}

// Hub fans turn events out to the websocket clients watching each
// conversation. Redis pub/sub carries events across instances.
type Hub struct {
	// Watchers map: ConversationID -> connected clients (multi-tab)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConversationID] = append(h.clients[client.ConversationID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"conversation_id": client.ConversationID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ConversationID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.ConversationID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.ConversationID]) == 0 {
					delete(h.clients, client.ConversationID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify delivers a turn event to every local watcher of the conversation
// and republishes it for other instances.
func (h *Hub) Notify(event TurnEvent) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "turn_event",
		"data": event,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal turn event", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(event.ConversationId, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"conversation_id": event.ConversationId,
			"message":         data,
		})
		if err := h.rdb.Publish(context.Background(), redisChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(conversationID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[conversationID] {
		select {
		case client.Send <- data:
		default:
			// Slow consumer, drop it
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// subscribeToRedis pumps cross-instance events into local delivery.
func (h *Hub) subscribeToRedis() {
	sub := h.rdb.Subscribe(context.Background(), redisChannel)
	defer sub.Close()

	for msg := range sub.Channel() {
		var payload struct {
			ConversationId uuid.UUID       `json:"conversation_id"`
			Message        json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Undecodable cluster event", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.deliverLocal(payload.ConversationId, payload.Message)
	}
}
