package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kudos-chat/internal/api"
	"kudos-chat/internal/bus"
	"kudos-chat/internal/chat"
	"kudos-chat/internal/config"
	"kudos-chat/internal/oracle"
	"kudos-chat/internal/persona"
	"kudos-chat/internal/pipeline"
	"kudos-chat/internal/store"
	"kudos-chat/internal/voting"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Failed to load config: %v (continuing without OpenAI)", err)
		cfg = &config.Config{
			StoreBackend: getEnvOrDefault("STORE_BACKEND", "badger"),
			StorePath:    getEnvOrDefault("STORE_PATH", "data/kudos"),
			StaticDir:    getEnvOrDefault("STATIC_DIR", "static"),
			ChatDuration: config.DefaultChatDuration,
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Open the persisted store
	kv, err := store.OpenKV(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer kv.Close()

	st := store.NewStore(kv)
	log.Printf("Store opened backend=%s path=%s", cfg.StoreBackend, cfg.StorePath)

	// Initialize the text-generation oracle. Without an API key the
	// pipeline still works, it just always falls back.
	var generator oracle.Oracle
	if cfg.OpenAI.APIKey != "" {
		generator = oracle.NewClient(cfg.OpenAI.APIKey, oracle.WithModel(cfg.OpenAI.Model))
		log.Println("OpenAI oracle initialized")
	} else {
		generator = unavailableOracle{}
		log.Println("Warning: OpenAI API key not configured, counterpart replies will use fallbacks")
	}

	// Separate sources per component; a rand.Rand is not safe to share
	// across handler goroutines.
	personaRNG := rand.New(rand.NewSource(time.Now().UnixNano()))
	pairRNG := rand.New(rand.NewSource(time.Now().UnixNano() + 1))

	manager := chat.NewManager(st, pipeline.New(generator), persona.NewGenerator(personaRNG), cfg.ChatDuration)
	aggregator := voting.NewAggregator(st, pairRNG)
	hub := bus.NewHub(st)

	router := api.NewRouter(st, manager, aggregator, hub, cfg.StaticDir)

	// Setup server
	port := getEnvOrDefault("PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Server is shutting down...")

		// Stop conversation sessions first
		if err := manager.Shutdown(); err != nil {
			log.Printf("Error shutting down sessions: %v", err)
		}

		// Shutdown HTTP server with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		close(done)
	}()

	log.Printf("Server starting on port %s", port)
	log.Printf("Static files served from: %s", cfg.StaticDir)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	<-done
	log.Println("Server stopped gracefully")
}

// unavailableOracle stands in when no API key is configured; every call
// errs so the pipeline serves its fallbacks.
type unavailableOracle struct{}

func (unavailableOracle) Complete(_ context.Context, _ oracle.Request) (string, error) {
	return "", errors.New("oracle not configured")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
