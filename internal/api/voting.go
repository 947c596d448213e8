package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"kudos-chat/internal/models"
	"kudos-chat/internal/store"
	"kudos-chat/internal/voting"
)

// VotingHandler handles head-to-head voting and history HTTP requests.
type VotingHandler struct {
	store       *store.Store
	aggregator  *voting.Aggregator
	broadcaster *EventBroadcaster
}

// NewVotingHandler creates a new voting handler.
func NewVotingHandler(st *store.Store, agg *voting.Aggregator, broadcaster *EventBroadcaster) *VotingHandler {
	return &VotingHandler{
		store:       st,
		aggregator:  agg,
		broadcaster: broadcaster,
	}
}

// PairResponse is a head-to-head comparison pair.
type PairResponse struct {
	First  *models.Conversation `json:"first"`
	Second *models.Conversation `json:"second"`
}

// GetPair handles GET /api/voting/pair. With fewer than two eligible
// conversations this is an empty state, not a server error.
func (h *VotingHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	first, second, err := h.aggregator.PickPair()
	if err != nil {
		if errors.Is(err, voting.ErrInsufficientData) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient_data"})
			return
		}
		log.Printf("[API] Pick pair failed err=%v", err)
		http.Error(w, "Failed to pick pair", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PairResponse{First: first, Second: second})
}

// CastVoteRequest is the request body for casting a vote.
type CastVoteRequest struct {
	ConversationID string            `json:"conversation_id"`
	Choice         models.VoteChoice `json:"choice"`
}

// CastVoteResponse is the updated tally after a vote.
type CastVoteResponse struct {
	Votes       models.Votes       `json:"votes"`
	Percentages voting.Percentages `json:"percentages"`
}

// CastVote handles POST /api/voting/votes. Every call increments; gating
// repeat votes on the same displayed pair is the client's session state.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Choice != models.VoteChoiceSelf && req.Choice != models.VoteChoiceCounterpart {
		http.Error(w, "Choice must be 'self' or 'counterpart'", http.StatusBadRequest)
		return
	}

	if err := h.aggregator.CastVote(req.ConversationID, req.Choice); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Cast vote failed conversation_id=%s err=%v", req.ConversationID, err)
		http.Error(w, "Failed to cast vote", http.StatusInternalServerError)
		return
	}

	conv, err := h.store.Get(req.ConversationID)
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.VoteCast(conv.ID, conv.Votes)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CastVoteResponse{
		Votes:       conv.Votes,
		Percentages: voting.ComputePercentages(conv.Votes),
	})
}

// GetStats handles GET /api/conversations/{id}/stats.
func (h *VotingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CastVoteResponse{
		Votes:       conv.Votes,
		Percentages: voting.ComputePercentages(conv.Votes),
	})
}

// GetHistory handles GET /api/history?keyword=&date=YYYY-MM-DD.
func (h *VotingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	filter := voting.HistoryFilter{
		Keyword: r.URL.Query().Get("keyword"),
	}

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			http.Error(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Date = &date
	}

	results := h.aggregator.History(filter)
	if results == nil {
		results = []*models.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
