package api

import (
	"encoding/json"
	"log"
	"sync"

	"kudos-chat/internal/models"
)

// Event is one server-sent event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventBroadcaster manages SSE clients and fans lifecycle events out to
// everyone watching a conversation. It implements chat.Notifier.
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[string]map[chan Event]struct{} // conversationID -> clients
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe adds a client receiving events for a conversation.
func (b *EventBroadcaster) Subscribe(conversationID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 10)

	if b.clients[conversationID] == nil {
		b.clients[conversationID] = make(map[chan Event]struct{})
	}
	b.clients[conversationID][ch] = struct{}{}

	log.Printf("[SSE] Client subscribed conversation_id=%s total_clients=%d",
		conversationID, len(b.clients[conversationID]))

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBroadcaster) Unsubscribe(conversationID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[conversationID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(b.clients, conversationID)
		}
	}

	log.Printf("[SSE] Client unsubscribed conversation_id=%s", conversationID)
}

// Broadcast sends an event to every client watching the conversation.
func (b *EventBroadcaster) Broadcast(conversationID string, event Event) {
	b.mu.RLock()
	clients := b.clients[conversationID]
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	log.Printf("[SSE] Broadcasting event type=%s conversation_id=%s clients=%d",
		event.Type, conversationID, len(clients))

	for ch := range clients {
		select {
		case ch <- event:
		default:
			// Skip clients whose channel is full
			log.Printf("[SSE] Client channel full, skipping event")
		}
	}
}

// MessageAppended broadcasts a new transcript message.
func (b *EventBroadcaster) MessageAppended(conversationID string, msg models.Message) {
	b.Broadcast(conversationID, Event{
		Type: "message",
		Data: msg,
	})
}

// PhaseChanged broadcasts a lifecycle phase transition.
func (b *EventBroadcaster) PhaseChanged(conversationID string, phase models.Phase) {
	b.Broadcast(conversationID, Event{
		Type: "phase_changed",
		Data: map[string]any{
			"phase": phase,
		},
	})
}

// VoteCast broadcasts an updated vote tally.
func (b *EventBroadcaster) VoteCast(conversationID string, votes models.Votes) {
	b.Broadcast(conversationID, Event{
		Type: "vote_cast",
		Data: votes,
	})
}

// ClientCount returns the number of clients watching one conversation.
func (b *EventBroadcaster) ClientCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[conversationID])
}

// TotalClientCount returns the client count across all conversations.
func (b *EventBroadcaster) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}

// FormatSSE renders an event in SSE wire format.
func FormatSSE(event Event) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte("event: " + event.Type + "\ndata: " + string(data) + "\n\n"), nil
}
