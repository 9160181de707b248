package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"coeus-ai-be/pkg/chat/engine"
)

// ConversationRepository keeps live conversations in memory for the session
// lifetime. Documents and messages die with the conversation; nothing is
// persisted.
type ConversationRepository struct {
	cache *cache.Cache
}

func NewConversationRepository() *ConversationRepository {
	// Conversations idle for an hour are purged, sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ConversationRepository{
		cache: c,
	}
}

func (r *ConversationRepository) Save(conv *engine.Conversation) {
	r.cache.Set(conv.ID.String(), conv, cache.DefaultExpiration)
}

func (r *ConversationRepository) Get(conversationID string) (*engine.Conversation, bool) {
	if x, found := r.cache.Get(conversationID); found {
		// Touch to keep active conversations alive
		r.cache.Set(conversationID, x, cache.DefaultExpiration)
		return x.(*engine.Conversation), true
	}
	return nil, false
}

func (r *ConversationRepository) Delete(conversationID string) {
	r.cache.Delete(conversationID)
}
