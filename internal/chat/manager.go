package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"kudos-chat/internal/models"
	"kudos-chat/internal/persona"
	"kudos-chat/internal/pipeline"
	"kudos-chat/internal/store"
)

// ErrUnknownMode is returned for modes the manager does not own. Peer
// conversations are created by the relay hub, not here.
var ErrUnknownMode = errors.New("chat: unknown or unsupported conversation mode")

// Manager owns the live sessions, one per in-progress conversation, and
// their countdown goroutines.
type Manager struct {
	store      *store.Store
	pipeline   *pipeline.Pipeline
	personaGen *persona.Generator
	duration   time.Duration
	notifier   Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. duration is the chat-phase countdown.
func NewManager(st *store.Store, pl *pipeline.Pipeline, gen *persona.Generator, duration time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:      st,
		pipeline:   pl,
		personaGen: gen,
		duration:   duration,
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
	}
}

// SetNotifier sets the lifecycle event notifier for all future sessions.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Start creates a conversation in the Active phase with a fresh persona,
// registers it in the store and begins its countdown. Only assisted mode is
// started here.
func (m *Manager) Start(mode models.Mode) (*models.Conversation, error) {
	if mode != models.ModeAssisted {
		return nil, ErrUnknownMode
	}

	p := m.personaGen.Generate()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Mode:      mode,
		Phase:     models.PhaseActive,
		CreatedAt: time.Now(),
		Persona:   &p,
	}
	m.store.Add(conv)

	sess := newSession(m.ctx, conv.ID, m.store, m.pipeline, m.notifier, m.duration)

	m.mu.Lock()
	m.sessions[conv.ID] = sess
	m.mu.Unlock()

	sess.start()

	log.Printf("[Manager] Session started conversation_id=%s mode=%s persona=%s duration=%v",
		conv.ID, mode, p.Name, m.duration)

	return conv, nil
}

// Get returns the live session for a conversation, if any.
func (m *Manager) Get(conversationID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[conversationID]
	return sess, ok
}

// Remove stops and forgets the session for a conversation.
func (m *Manager) Remove(conversationID string) {
	m.mu.Lock()
	sess, ok := m.sessions[conversationID]
	delete(m.sessions, conversationID)
	m.mu.Unlock()

	if ok {
		sess.stop()
		log.Printf("[Manager] Session removed conversation_id=%s", conversationID)
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops all sessions and waits for their goroutines to finish.
func (m *Manager) Shutdown() error {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}

	log.Printf("[Manager] Shutdown complete stopped=%d", len(sessions))
	return nil
}
