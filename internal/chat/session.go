package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kudos-chat/internal/models"
	"kudos-chat/internal/pipeline"
	"kudos-chat/internal/store"
)

var (
	// ErrNotActive is returned when an operation requires the chat phase.
	ErrNotActive = errors.New("chat: conversation is not active")
	// ErrNotComplimentPending is returned when a compliment is submitted
	// outside the compliment-entry phase.
	ErrNotComplimentPending = errors.New("chat: conversation is not awaiting a compliment")
)

// Notifier receives lifecycle events for pushing to connected clients.
type Notifier interface {
	MessageAppended(conversationID string, msg models.Message)
	PhaseChanged(conversationID string, phase models.Phase)
}

// Session drives one conversation through its phases:
// Active -> ComplimentPending -> Completed. Transitions only move forward;
// the only exit from Active is timer expiry (or abandonment).
type Session struct {
	conversationID string
	store          *store.Store
	pipeline       *pipeline.Pipeline
	notifier       Notifier

	mu        sync.Mutex
	phase     models.Phase
	remaining int // seconds left in the chat phase

	// ctx covers the session's pipeline work and is cancelled only on
	// abandon or shutdown, so in-flight replies are delivered rather
	// than cancelled when the chat phase ends. runCtx is derived from it
	// and only drives the countdown loop.
	ctx       context.Context
	cancel    context.CancelFunc
	runCtx    context.Context
	runCancel context.CancelFunc
	runWG     sync.WaitGroup // timer goroutine
	replyWG   sync.WaitGroup // in-flight pipeline turns
}

func newSession(
	parentCtx context.Context,
	conversationID string,
	st *store.Store,
	pl *pipeline.Pipeline,
	notifier Notifier,
	duration time.Duration,
) *Session {
	ctx, cancel := context.WithCancel(parentCtx)
	runCtx, runCancel := context.WithCancel(ctx)

	return &Session{
		conversationID: conversationID,
		store:          st,
		pipeline:       pl,
		notifier:       notifier,
		phase:          models.PhaseActive,
		remaining:      int(duration / time.Second),
		ctx:            ctx,
		cancel:         cancel,
		runCtx:         runCtx,
		runCancel:      runCancel,
	}
}

// start begins the per-second countdown loop.
func (s *Session) start() {
	s.runWG.Add(1)
	go s.run()
}

func (s *Session) run() {
	defer s.runWG.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	log.Printf("[Session] Timer started conversation_id=%s remaining=%d", s.conversationID, s.Remaining())

	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.Tick()
			if s.Phase() != models.PhaseActive {
				return
			}
		}
	}
}

// stop cancels the timer loop and waits for it and any in-flight replies.
func (s *Session) stop() {
	s.cancel()
	s.runWG.Wait()
	s.replyWG.Wait()
}

// ConversationID returns the id of the conversation this session drives.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Remaining returns the seconds left in the chat phase.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Tick decrements the countdown by one second. When it reaches zero the
// conversation transitions Active -> ComplimentPending exactly once; further
// ticks are inert.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.phase != models.PhaseActive {
		s.mu.Unlock()
		return
	}

	s.remaining--
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}

	s.remaining = 0
	s.phase = models.PhaseComplimentPending
	s.mu.Unlock()

	log.Printf("[Session] Chat phase ended conversation_id=%s", s.conversationID)

	if err := s.store.Update(s.conversationID, func(c *models.Conversation) {
		c.Phase = models.PhaseComplimentPending
	}); err != nil {
		log.Printf("[Session] Failed to persist phase change conversation_id=%s err=%v", s.conversationID, err)
	}

	if s.notifier != nil {
		s.notifier.PhaseChanged(s.conversationID, models.PhaseComplimentPending)
	}
}

// AppendSelfMessage appends a Self-authored message and spawns one
// asynchronous pipeline turn to produce the counterpart's reply. Only valid
// while Active; whitespace-only text is a no-op. The reply is appended when
// it completes, even if the phase has transitioned by then, so the
// transcript stays complete; no further user input is accepted after the
// transition.
func (s *Session) AppendSelfMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.phase != models.PhaseActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.mu.Unlock()

	msg := models.Message{
		ID:        uuid.NewString(),
		Author:    models.AuthorSelf,
		Text:      text,
		CreatedAt: time.Now(),
	}

	// Snapshot the transcript before the append so the prompt sees the
	// conversation as it was when the user pressed send.
	var snapshot models.Conversation
	err := s.store.Update(s.conversationID, func(c *models.Conversation) {
		snapshot = *c
		snapshot.Messages = make([]models.Message, len(c.Messages))
		copy(snapshot.Messages, c.Messages)
		c.Messages = append(c.Messages, msg)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.MessageAppended(s.conversationID, msg)
	}

	s.replyWG.Add(1)
	go func() {
		defer s.replyWG.Done()
		s.deliverReply(&snapshot, text)
	}()

	return nil
}

// deliverReply runs one pipeline turn and appends the result. Replies land
// in completion order, not send order; a slow turn is not cancelled by the
// phase transition.
func (s *Session) deliverReply(snapshot *models.Conversation, selfText string) {
	reply := s.pipeline.Reply(s.ctx, snapshot, selfText)

	msg := models.Message{
		ID:        uuid.NewString(),
		Author:    models.AuthorCounterpart,
		Text:      reply,
		CreatedAt: time.Now(),
	}

	if err := s.store.Update(s.conversationID, func(c *models.Conversation) {
		c.Messages = append(c.Messages, msg)
	}); err != nil {
		log.Printf("[Session] Failed to append reply conversation_id=%s err=%v", s.conversationID, err)
		return
	}

	if s.Phase() != models.PhaseActive {
		// Late reply appended after the phase transition, kept for
		// transcript completeness.
		log.Printf("[Session] Late reply appended conversation_id=%s", s.conversationID)
	}

	if s.notifier != nil {
		s.notifier.MessageAppended(s.conversationID, msg)
	}
}

// SubmitCompliment records the user's compliment, obtains the counterpart's
// compliment from the pipeline and completes the conversation. Only valid in
// ComplimentPending; whitespace-only text is a no-op. The pipeline falls
// back to a fixed string on oracle failure, so the transition to Completed
// always happens.
func (s *Session) SubmitCompliment(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.phase != models.PhaseComplimentPending {
		s.mu.Unlock()
		return ErrNotComplimentPending
	}
	s.phase = models.PhaseCompleted
	s.mu.Unlock()

	conv, err := s.store.Get(s.conversationID)
	if err != nil {
		return err
	}

	counterpart := s.pipeline.Compliment(s.ctx, conv)

	if err := s.store.Update(s.conversationID, func(c *models.Conversation) {
		c.Compliments = &models.Compliments{
			Self:        text,
			Counterpart: counterpart,
		}
		c.Phase = models.PhaseCompleted
	}); err != nil {
		log.Printf("[Session] Failed to persist compliments conversation_id=%s err=%v", s.conversationID, err)
	}

	log.Printf("[Session] Conversation completed conversation_id=%s", s.conversationID)

	if s.notifier != nil {
		s.notifier.PhaseChanged(s.conversationID, models.PhaseCompleted)
	}

	// Stop the countdown loop only; a reply still in flight keeps its
	// context and lands in the transcript when it completes.
	s.runCancel()
	return nil
}

// Abandon discards an in-progress conversation. Only valid while Active.
// The stored record remains (conversations are never deleted) but its
// compliments are never set, so it can never become eligible for voting.
func (s *Session) Abandon() error {
	s.mu.Lock()
	if s.phase != models.PhaseActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.phase = models.PhaseAbandoned
	s.mu.Unlock()

	log.Printf("[Session] Conversation abandoned conversation_id=%s", s.conversationID)

	s.cancel()
	return nil
}
