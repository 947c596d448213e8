package api

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kudos-chat/internal/bus"
	"kudos-chat/internal/chat"
	"kudos-chat/internal/store"
	"kudos-chat/internal/voting"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Router holds the HTTP multiplexer and dependencies
type Router struct {
	mux                 *http.ServeMux
	conversationHandler *ConversationHandler
	votingHandler       *VotingHandler
	eventsHandler       *ConversationEventsHandler
	busHandler          *bus.Handler
	broadcaster         *EventBroadcaster
	staticDir           string
}

// NewRouter creates a new router with all routes configured
func NewRouter(st *store.Store, manager *chat.Manager, agg *voting.Aggregator, hub *bus.Hub, staticDir string) *Router {
	// Create event broadcaster for SSE and wire it into the lifecycle
	broadcaster := NewEventBroadcaster()
	if manager != nil {
		manager.SetNotifier(broadcaster)
	}

	r := &Router{
		mux:                 http.NewServeMux(),
		conversationHandler: NewConversationHandler(st, manager),
		votingHandler:       NewVotingHandler(st, agg, broadcaster),
		eventsHandler:       NewConversationEventsHandler(broadcaster),
		busHandler:          bus.NewHandler(hub),
		broadcaster:         broadcaster,
		staticDir:           staticDir,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes
func (r *Router) setupRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", HealthHandler)

	// Conversation lifecycle routes
	r.mux.HandleFunc("GET /api/conversations", r.conversationHandler.List)
	r.mux.HandleFunc("POST /api/conversations", r.conversationHandler.Create)
	r.mux.HandleFunc("GET /api/conversations/{id}", r.conversationHandler.Get)
	r.mux.HandleFunc("DELETE /api/conversations/{id}", r.conversationHandler.Abandon)

	// Message routes
	r.mux.HandleFunc("GET /api/conversations/{id}/messages", r.conversationHandler.GetMessages)
	r.mux.HandleFunc("POST /api/conversations/{id}/messages", r.conversationHandler.SendMessage)

	// Compliment route
	r.mux.HandleFunc("POST /api/conversations/{id}/compliment", r.conversationHandler.SubmitCompliment)

	// Voting routes
	r.mux.HandleFunc("GET /api/voting/pair", r.votingHandler.GetPair)
	r.mux.HandleFunc("POST /api/voting/votes", r.votingHandler.CastVote)
	r.mux.HandleFunc("GET /api/conversations/{id}/stats", r.votingHandler.GetStats)
	r.mux.HandleFunc("GET /api/history", r.votingHandler.GetHistory)

	// SSE events route
	r.mux.HandleFunc("GET /api/conversations/{id}/events", r.eventsHandler.HandleEvents)

	// Peer-relay websocket route
	r.mux.HandleFunc("GET /ws", r.busHandler.ServeWS)

	// Static file serving (for frontend)
	if r.staticDir != "" {
		r.mux.HandleFunc("GET /", r.serveStatic)
	}
}

// serveStatic serves static files from the static directory
func (r *Router) serveStatic(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	filePath := filepath.Join(r.staticDir, path)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		// Serve index.html for SPA routing
		filePath = filepath.Join(r.staticDir, "index.html")
	}

	http.ServeFile(w, req, filePath)
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Add CORS headers for development
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if req.Method == "OPTIONS" {
		log.Printf("[HTTP] CORS preflight method=OPTIONS path=%s", req.URL.Path)
		w.WriteHeader(http.StatusOK)
		return
	}

	// Skip logging for static files, health checks, and streaming endpoints
	shouldLog := strings.HasPrefix(req.URL.Path, "/api/") && !strings.HasSuffix(req.URL.Path, "/events")

	if shouldLog {
		log.Printf("[HTTP] Request started method=%s path=%s", req.Method, req.URL.Path)
	}

	// Wrap response writer to capture status code
	wrapped := newResponseWriter(w)
	r.mux.ServeHTTP(wrapped, req)

	if shouldLog {
		log.Printf("[HTTP] Request completed method=%s path=%s status=%d duration=%v",
			req.Method, req.URL.Path, wrapped.statusCode, time.Since(start))
	}
}

// GetBroadcaster returns the event broadcaster
func (r *Router) GetBroadcaster() *EventBroadcaster {
	return r.broadcaster
}
