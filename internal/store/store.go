package store

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"kudos-chat/internal/models"
)

// conversationsKey is the single key the whole conversation collection
// lives under.
const conversationsKey = "conversations"

// ErrNotFound is returned when a conversation id is not in the collection.
var ErrNotFound = fmt.Errorf("store: conversation not found")

// Store holds the conversation collection. The collection is read from the
// KV once at construction and kept in memory; every mutation rewrites the
// whole collection (last-write-wins at collection granularity). Persistence
// failures are logged and the in-memory state proceeds.
type Store struct {
	kv    KV
	mutex sync.Mutex
	convs []*models.Conversation
	index map[string]*models.Conversation
}

// NewStore creates a Store backed by kv. Missing or corrupt persisted data
// falls back to an empty collection.
func NewStore(kv KV) *Store {
	s := &Store{
		kv:    kv,
		index: make(map[string]*models.Conversation),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, found, err := s.kv.Get(conversationsKey)
	if err != nil {
		log.Printf("[Store] Load failed, starting empty err=%v", err)
		return
	}
	if !found {
		log.Printf("[Store] No persisted conversations, starting empty")
		return
	}

	var convs []*models.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		log.Printf("[Store] Corrupt persisted data, starting empty err=%v", err)
		return
	}

	s.convs = convs
	for _, c := range convs {
		s.index[c.ID] = c
	}
	log.Printf("[Store] Loaded conversations count=%d", len(convs))
}

// persist writes the full collection back to the KV. Must be called with
// the mutex held. Failures are logged, never returned.
func (s *Store) persist() {
	data, err := json.Marshal(s.convs)
	if err != nil {
		log.Printf("[Store] Persist failed: marshal error err=%v", err)
		return
	}
	if err := s.kv.Set(conversationsKey, data); err != nil {
		log.Printf("[Store] Persist failed, continuing in memory err=%v", err)
	}
}

// Add registers a new conversation, prepended so the newest comes first.
func (s *Store) Add(conv *models.Conversation) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.convs = append([]*models.Conversation{conv}, s.convs...)
	s.index[conv.ID] = conv
	s.persist()

	log.Printf("[Store] Conversation added conversation_id=%s mode=%s count=%d",
		conv.ID, conv.Mode, len(s.convs))
}

// Get returns a deep copy of the conversation with the given id. Copies
// keep readers safe from concurrent Update mutations once the pointer
// escapes the store's lock.
func (s *Store) Get(id string) (*models.Conversation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	conv, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// All returns deep copies of the collection, newest first.
func (s *Store) All() []*models.Conversation {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]*models.Conversation, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.Clone()
	}
	return out
}

// Update applies fn to the conversation with the given id and persists the
// collection. The whole update is one critical section so message appends
// and phase changes are not interleaved.
func (s *Store) Update(id string, fn func(*models.Conversation)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	conv, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}

	fn(conv)
	s.persist()
	return nil
}

// IncrementVote applies a single vote record to its conversation's tally.
func (s *Store) IncrementVote(rec models.VoteRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	conv, ok := s.index[rec.ConversationID]
	if !ok {
		return ErrNotFound
	}

	switch rec.Choice {
	case models.VoteChoiceSelf:
		conv.Votes.Self++
	case models.VoteChoiceCounterpart:
		conv.Votes.Counterpart++
	default:
		return fmt.Errorf("store: unknown vote choice %q", rec.Choice)
	}

	s.persist()
	log.Printf("[Store] Vote recorded conversation_id=%s choice=%s total=%d",
		rec.ConversationID, rec.Choice, conv.Votes.Total())
	return nil
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}
