package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"kudos-chat/internal/chat"
	"kudos-chat/internal/models"
	"kudos-chat/internal/store"
)

// ConversationHandler handles conversation lifecycle HTTP requests.
type ConversationHandler struct {
	store   *store.Store
	manager *chat.Manager
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(st *store.Store, manager *chat.Manager) *ConversationHandler {
	return &ConversationHandler{
		store:   st,
		manager: manager,
	}
}

// CreateConversationRequest is the request body for starting a conversation.
type CreateConversationRequest struct {
	Mode models.Mode `json:"mode"`
}

// ConversationResponse is a conversation in API responses, with the live
// countdown attached when the session is still running.
type ConversationResponse struct {
	*models.Conversation
	Remaining *int `json:"remaining_seconds,omitempty"`
}

func (h *ConversationHandler) respondWithConversation(w http.ResponseWriter, status int, conv *models.Conversation) {
	resp := ConversationResponse{Conversation: conv}
	if sess, ok := h.manager.Get(conv.ID); ok && sess.Phase() == models.PhaseActive {
		remaining := sess.Remaining()
		resp.Remaining = &remaining
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Create handles POST /api/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	log.Printf("[API] Create conversation started")

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[API] Create conversation failed: invalid request body err=%v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mode == "" {
		req.Mode = models.ModeAssisted
	}

	conv, err := h.manager.Start(req.Mode)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownMode) {
			log.Printf("[API] Create conversation failed: mode=%s", req.Mode)
			http.Error(w, "Unsupported conversation mode", http.StatusBadRequest)
			return
		}
		log.Printf("[API] Create conversation failed err=%v", err)
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Create conversation completed conversation_id=%s mode=%s", conv.ID, conv.Mode)
	h.respondWithConversation(w, http.StatusCreated, conv)
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations := h.store.All()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversations)
}

// Get handles GET /api/conversations/{id}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	h.respondWithConversation(w, http.StatusOK, conv)
}

// GetMessages handles GET /api/conversations/{id}/messages.
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	messages := conv.Messages
	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage handles POST /api/conversations/{id}/messages. The
// counterpart's reply is produced asynchronously and pushed over SSE.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.manager.Get(conversationID)
	if !ok {
		log.Printf("[API] Send message failed: no live session conversation_id=%s", conversationID)
		http.Error(w, "Conversation is not active", http.StatusConflict)
		return
	}

	if err := sess.AppendSelfMessage(req.Text); err != nil {
		if errors.Is(err, chat.ErrNotActive) {
			http.Error(w, "Conversation is not active", http.StatusConflict)
			return
		}
		log.Printf("[API] Send message failed conversation_id=%s err=%v", conversationID, err)
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SubmitComplimentRequest is the request body for the compliment phase.
type SubmitComplimentRequest struct {
	Text string `json:"text"`
}

// SubmitCompliment handles POST /api/conversations/{id}/compliment.
func (h *ConversationHandler) SubmitCompliment(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req SubmitComplimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.manager.Get(conversationID)
	if !ok {
		log.Printf("[API] Submit compliment failed: no live session conversation_id=%s", conversationID)
		http.Error(w, "Conversation is not awaiting a compliment", http.StatusConflict)
		return
	}

	if err := sess.SubmitCompliment(req.Text); err != nil {
		if errors.Is(err, chat.ErrNotComplimentPending) {
			http.Error(w, "Conversation is not awaiting a compliment", http.StatusConflict)
			return
		}
		log.Printf("[API] Submit compliment failed conversation_id=%s err=%v", conversationID, err)
		http.Error(w, "Failed to submit compliment", http.StatusInternalServerError)
		return
	}

	conv, err := h.store.Get(conversationID)
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if conv.Phase == models.PhaseCompleted {
		// Session is finished, release it
		h.manager.Remove(conversationID)
	}

	h.respondWithConversation(w, http.StatusOK, conv)
}

// Abandon handles DELETE /api/conversations/{id}. The stored record remains;
// only the live session is discarded.
func (h *ConversationHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	sess, ok := h.manager.Get(conversationID)
	if !ok {
		http.Error(w, "Conversation is not active", http.StatusConflict)
		return
	}

	if err := sess.Abandon(); err != nil {
		http.Error(w, "Conversation is not active", http.StatusConflict)
		return
	}
	h.manager.Remove(conversationID)

	log.Printf("[API] Conversation abandoned conversation_id=%s", conversationID)
	w.WriteHeader(http.StatusNoContent)
}
