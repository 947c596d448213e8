package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kudos-chat/internal/bus"
	"kudos-chat/internal/chat"
	"kudos-chat/internal/models"
	"kudos-chat/internal/oracle"
	"kudos-chat/internal/persona"
	"kudos-chat/internal/pipeline"
	"kudos-chat/internal/store"
	"kudos-chat/internal/voting"
)

// fakeOracle returns a canned response or error for every completion.
type fakeOracle struct {
	response string
	err      error
}

func (f *fakeOracle) Complete(_ context.Context, _ oracle.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type testEnv struct {
	router  *Router
	store   *store.Store
	manager *chat.Manager
}

func newTestEnv(t *testing.T, o oracle.Oracle) *testEnv {
	t.Helper()

	kv, err := store.OpenBadger("")
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	st := store.NewStore(kv)
	rng := rand.New(rand.NewSource(1))
	manager := chat.NewManager(st, pipeline.New(o), persona.NewGenerator(rng), time.Minute)
	t.Cleanup(func() { manager.Shutdown() })

	router := NewRouter(st, manager, voting.NewAggregator(st, rng), bus.NewHub(st), "")

	return &testEnv{router: router, store: st, manager: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createConversation(t *testing.T) ConversationResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/conversations", CreateConversationRequest{Mode: models.ModeAssisted})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned status %d: %s", w.Code, w.Body.String())
	}

	var resp ConversationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode conversation: %v", err)
	}
	return resp
}

// waitForMessages polls until the conversation has at least n messages.
func (e *testEnv) waitForMessages(t *testing.T, id string, n int) []models.Message {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		conv, err := e.store.Get(id)
		if err != nil {
			t.Fatalf("get conversation: %v", err)
		}
		if len(conv.Messages) >= n {
			return conv.Messages
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(conv.Messages))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	resp := env.createConversation(t)

	if resp.Phase != models.PhaseActive {
		t.Errorf("expected active phase, got %s", resp.Phase)
	}
	if resp.Persona == nil {
		t.Error("expected a persona on an assisted conversation")
	}
	if resp.Remaining == nil || *resp.Remaining != 60 {
		t.Errorf("expected 60 remaining seconds, got %v", resp.Remaining)
	}
}

func TestCreateConversation_DefaultsToAssisted(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	w := env.do(t, http.MethodPost, "/api/conversations", map[string]string{})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	var resp ConversationResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Mode != models.ModeAssisted {
		t.Errorf("expected assisted mode, got %s", resp.Mode)
	}
}

func TestCreateConversation_PeerModeRejected(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	w := env.do(t, http.MethodPost, "/api/conversations", CreateConversationRequest{Mode: models.ModePeer})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for peer mode, got %d", w.Code)
	}
}

func TestListConversations_NewestFirst(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	first := env.createConversation(t)
	second := env.createConversation(t)

	w := env.do(t, http.MethodGet, "/api/conversations", nil)
	var list []models.Conversation
	json.NewDecoder(w.Body).Decode(&list)

	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("expected newest conversation first")
	}
}

func TestSendMessage_ReplyDelivered(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "nice to meet you!"})
	conv := env.createConversation(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		SendMessageRequest{Text: "hello"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	messages := env.waitForMessages(t, conv.ID, 2)
	if messages[1].Text != "nice to meet you!" {
		t.Errorf("unexpected reply '%s'", messages[1].Text)
	}
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	w := env.do(t, http.MethodPost, "/api/conversations/nope/messages", SendMessageRequest{Text: "hi"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for unknown conversation, got %d", w.Code)
	}
}

func TestComplimentFlow(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "You were wonderful to talk to."})
	conv := env.createConversation(t)

	// Compliment before the chat phase ends is rejected
	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/compliment", conv.ID),
		SubmitComplimentRequest{Text: "too early"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before transition, got %d", w.Code)
	}

	// Drain the countdown
	sess, ok := env.manager.Get(conv.ID)
	if !ok {
		t.Fatal("expected a live session")
	}
	for i := 0; i < 60; i++ {
		sess.Tick()
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/compliment", conv.ID),
		SubmitComplimentRequest{Text: "You made me laugh"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ConversationResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Phase != models.PhaseCompleted {
		t.Errorf("expected completed, got %s", resp.Phase)
	}
	if resp.Compliments == nil || resp.Compliments.Self == "" || resp.Compliments.Counterpart == "" {
		t.Errorf("expected both compliment halves, got %+v", resp.Compliments)
	}

	// The session is released once completed
	if _, ok := env.manager.Get(conv.ID); ok {
		t.Error("expected session to be removed after completion")
	}
}

func TestAbandonConversation(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})
	conv := env.createConversation(t)

	w := env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	// Abandoning again conflicts: there is no live session anymore
	w = env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on second abandon, got %d", w.Code)
	}

	// The stored record remains
	if _, err := env.store.Get(conv.ID); err != nil {
		t.Error("abandoned conversation must remain in the store")
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{response: "hi"})

	w := env.do(t, http.MethodGet, "/api/conversations/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSendMessage_OracleDownStillActive(t *testing.T) {
	env := newTestEnv(t, &fakeOracle{err: errors.New("oracle down")})
	conv := env.createConversation(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		SendMessageRequest{Text: "Hi"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	messages := env.waitForMessages(t, conv.ID, 2)
	if messages[1].Text == "" {
		t.Error("expected non-empty fallback reply")
	}

	w = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	var resp ConversationResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Phase != models.PhaseActive {
		t.Errorf("oracle failure must not end the conversation, got %s", resp.Phase)
	}
}
