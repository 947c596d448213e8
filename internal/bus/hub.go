package bus

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"kudos-chat/internal/models"
	"kudos-chat/internal/store"
)

// Event types received from clients.
const (
	EventJoinQueue        = "join-queue"
	EventLeaveQueue       = "leave-queue"
	EventSendMessage      = "send-message"
	EventSubmitCompliment = "submit-compliment"
)

// Event types sent to clients.
const (
	EventQueueStatus          = "queue-status"
	EventMatched              = "matched"
	EventNewMessage           = "new-message"
	EventComplimentReceived   = "compliment-received"
	EventConversationComplete = "conversation-complete"
	EventUserDisconnected     = "user-disconnected"
	EventGlobalQueueStatus    = "global-queue-status"
)

// Envelope is one event on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one connected peer. Send is drained by the transport; delivery
// is best-effort, a full channel drops the event.
type Client struct {
	ID   string
	Send chan Envelope
}

// NewClient creates a client with a buffered send channel.
func NewClient() *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan Envelope, 16),
	}
}

// pair is one matched two-party chat in progress. Each side accumulates its
// own perspective of the transcript so each gets its own persisted record.
type pair struct {
	conversationID string
	createdAt      time.Time
	clients        [2]*Client
	transcripts    map[string][]models.Message // client id -> messages from that side's view
	compliments    map[string]string           // client id -> own compliment
}

func (p *pair) partnerOf(c *Client) *Client {
	if p.clients[0].ID == c.ID {
		return p.clients[1]
	}
	return p.clients[0]
}

// Hub owns the matchmaking queue and all active pairs. Completed peer
// conversations are written to the store, one record per side.
type Hub struct {
	store *store.Store

	mu    sync.Mutex
	queue []*Client
	pairs map[string]*pair // client id -> pair
}

// NewHub creates a Hub over the given store.
func NewHub(st *store.Store) *Hub {
	return &Hub{
		store: st,
		pairs: make(map[string]*pair),
	}
}

// Join adds a client to the matchmaking queue. When two clients are waiting
// they are paired FIFO and both receive a matched event.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, inPair := h.pairs[c.ID]; inPair {
		return
	}
	for _, queued := range h.queue {
		if queued.ID == c.ID {
			return
		}
	}

	h.queue = append(h.queue, c)
	log.Printf("[Bus] Client joined queue client_id=%s queue_len=%d", c.ID, len(h.queue))

	if len(h.queue) >= 2 {
		a, b := h.queue[0], h.queue[1]
		h.queue = h.queue[2:]
		h.matchLocked(a, b)
	}

	h.broadcastQueueStatusLocked()
}

func (h *Hub) matchLocked(a, b *Client) {
	p := &pair{
		conversationID: uuid.NewString(),
		createdAt:      time.Now(),
		clients:        [2]*Client{a, b},
		transcripts:    make(map[string][]models.Message),
		compliments:    make(map[string]string),
	}
	h.pairs[a.ID] = p
	h.pairs[b.ID] = p

	log.Printf("[Bus] Clients matched conversation_id=%s a=%s b=%s", p.conversationID, a.ID, b.ID)

	data := mustMarshal(map[string]string{"conversation_id": p.conversationID})
	send(a, Envelope{Type: EventMatched, Data: data})
	send(b, Envelope{Type: EventMatched, Data: data})
}

// Leave removes a client from the matchmaking queue.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromQueueLocked(c)
	h.broadcastQueueStatusLocked()
}

func (h *Hub) removeFromQueueLocked(c *Client) {
	for i, queued := range h.queue {
		if queued.ID == c.ID {
			h.queue = append(h.queue[:i], h.queue[i+1:]...)
			log.Printf("[Bus] Client left queue client_id=%s queue_len=%d", c.ID, len(h.queue))
			return
		}
	}
}

// SendMessage relays a chat message to the client's partner and records it
// in both sides' transcripts. Ignored when the client is not paired.
func (h *Hub) SendMessage(c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pairs[c.ID]
	if !ok {
		return
	}

	now := time.Now()
	partner := p.partnerOf(c)

	p.transcripts[c.ID] = append(p.transcripts[c.ID], models.Message{
		ID: uuid.NewString(), Author: models.AuthorSelf, Text: text, CreatedAt: now,
	})
	p.transcripts[partner.ID] = append(p.transcripts[partner.ID], models.Message{
		ID: uuid.NewString(), Author: models.AuthorCounterpart, Text: text, CreatedAt: now,
	})

	send(partner, Envelope{
		Type: EventNewMessage,
		Data: mustMarshal(map[string]string{"text": text}),
	})
}

// SubmitCompliment records a client's compliment and forwards it to the
// partner. When both halves are in, both sides' conversations are persisted
// and conversation-complete is emitted.
func (h *Hub) SubmitCompliment(c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pairs[c.ID]
	if !ok {
		return
	}
	if _, already := p.compliments[c.ID]; already {
		return
	}

	p.compliments[c.ID] = text
	partner := p.partnerOf(c)

	send(partner, Envelope{
		Type: EventComplimentReceived,
		Data: mustMarshal(map[string]string{"text": text}),
	})

	if len(p.compliments) == 2 {
		h.completeLocked(p)
	}
}

// completeLocked persists both sides of a finished pair and notifies them.
func (h *Hub) completeLocked(p *pair) {
	h.persistLocked(p)

	for _, c := range p.clients {
		send(c, Envelope{
			Type: EventConversationComplete,
			Data: mustMarshal(map[string]string{"conversation_id": p.conversationID}),
		})
		delete(h.pairs, c.ID)
	}

	log.Printf("[Bus] Conversation complete conversation_id=%s", p.conversationID)
}

// persistLocked writes one record per side. A side whose compliment never
// arrived gets an empty placeholder; such records stay ineligible for
// voting.
func (h *Hub) persistLocked(p *pair) {
	for _, c := range p.clients {
		partner := p.partnerOf(c)
		conv := &models.Conversation{
			ID:        sideConversationID(p, c),
			Mode:      models.ModePeer,
			Phase:     models.PhaseCompleted,
			CreatedAt: p.createdAt,
			Messages:  p.transcripts[c.ID],
			Compliments: &models.Compliments{
				Self:        p.compliments[c.ID],
				Counterpart: p.compliments[partner.ID],
			},
		}
		h.store.Add(conv)
	}
}

// sideConversationID derives a stable per-side record id from the pair id.
func sideConversationID(p *pair, c *Client) string {
	if p.clients[0].ID == c.ID {
		return p.conversationID + "-a"
	}
	return p.conversationID + "-b"
}

// Disconnect removes a client entirely. A paired partner is told the user
// left; if the partner had already submitted a compliment, their side is
// persisted with an empty placeholder for the missing half.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromQueueLocked(c)

	p, ok := h.pairs[c.ID]
	if ok {
		partner := p.partnerOf(c)
		send(partner, Envelope{Type: EventUserDisconnected})

		if _, submitted := p.compliments[partner.ID]; submitted {
			h.persistLocked(p)
			log.Printf("[Bus] Partner disconnected before complimenting, persisted with placeholder conversation_id=%s",
				p.conversationID)
		}

		delete(h.pairs, c.ID)
		delete(h.pairs, partner.ID)
	}

	h.broadcastQueueStatusLocked()
	log.Printf("[Bus] Client disconnected client_id=%s", c.ID)
}

// QueueLen returns the number of clients waiting for a match.
func (h *Hub) QueueLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// broadcastQueueStatusLocked tells each queued client its position and all
// clients the global queue size.
func (h *Hub) broadcastQueueStatusLocked() {
	for i, c := range h.queue {
		send(c, Envelope{
			Type: EventQueueStatus,
			Data: mustMarshal(map[string]int{"position": i + 1, "waiting": len(h.queue)}),
		})
	}

	global := Envelope{
		Type: EventGlobalQueueStatus,
		Data: mustMarshal(map[string]int{"waiting": len(h.queue), "active_pairs": len(h.pairs) / 2}),
	}
	seen := make(map[string]bool)
	for _, p := range h.pairs {
		for _, c := range p.clients {
			if !seen[c.ID] {
				seen[c.ID] = true
				send(c, global)
			}
		}
	}
	for _, c := range h.queue {
		send(c, global)
	}
}

// send delivers best-effort: a full client channel drops the event.
func send(c *Client, e Envelope) {
	select {
	case c.Send <- e:
	default:
		log.Printf("[Bus] Client channel full, dropping event client_id=%s type=%s", c.ID, e.Type)
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reached on marshal of our own map types
		log.Printf("[Bus] Marshal failed err=%v", err)
		return json.RawMessage(`{}`)
	}
	return data
}
