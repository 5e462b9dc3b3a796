// Package server provides the HTTP REST API for the ideation pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/board-of-ideators/internal/backend"
	"github.com/jonathan/board-of-ideators/internal/config"
	"github.com/jonathan/board-of-ideators/internal/db"
)

// Store is the subset of database operations the API surface needs. *db.DB
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateRun(ctx context.Context, input *db.RunInput) (*db.Run, error)
	InitRun(ctx context.Context, input *db.RunInput) (bool, error)
	GetRun(ctx context.Context, runID string) (*db.Run, error)
	ListRuns(ctx context.Context, userID string, limit int) ([]db.Run, error)
	MarkRunFailed(ctx context.Context, runID string, completedAt time.Time) error
	CompleteRun(ctx context.Context, runID string, completedAt time.Time, duration *int, fullReport *string) error
	SetStageSnapshot(ctx context.Context, runID string, stageNumber int, output string) error
	UpsertStageOutput(ctx context.Context, runID string, input *db.StageOutputInput) (*db.StageOutput, error)
	ListStageOutputs(ctx context.Context, runID string) ([]db.StageOutput, error)
	CreateOpportunityCards(ctx context.Context, runID string, cards []db.OpportunityCardInput) (int, error)
	ListOpportunityCards(ctx context.Context, runID string) ([]db.OpportunityCard, error)
	SetCardStarred(ctx context.Context, cardID uuid.UUID, starred bool) error
}

// PipelineRunner triggers the external pipeline. Satisfied by *backend.Client.
type PipelineRunner interface {
	Run(ctx context.Context, blobURL, brandID, runID string) (*backend.RunResponse, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer    *http.Server
	store         Store
	pipeline      PipelineRunner
	webhookSecret string
	jwtService    *JWTService
}

// New creates a new server instance
func New(cfg *config.Config) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	s := &Server{
		store:         database,
		pipeline:      backend.New(cfg.BackendURL),
		webhookSecret: cfg.WebhookSecret,
		jwtService:    NewJWTService(jwtConfig),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(s.routes())),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Run trigger and history (session-authenticated)
	mux.Handle("POST /pipeline/run", s.requireSession(http.HandlerFunc(s.handleTriggerRun)))
	mux.Handle("GET /pipeline/runs", s.requireSession(http.HandlerFunc(s.handleListRuns)))

	// Webhooks from the external pipeline (shared-secret authenticated)
	mux.HandleFunc("POST /pipeline/init", s.handleInit)
	mux.HandleFunc("POST /pipeline/{runId}/stage-update", s.handleStageUpdate)
	mux.HandleFunc("POST /pipeline/{runId}/complete", s.handleComplete)

	// Read surface
	mux.HandleFunc("GET /pipeline/{runId}/status", s.handleStatus)
	mux.HandleFunc("GET /pipeline/{runId}/opportunity-cards", s.handleListOpportunityCards)
	mux.HandleFunc("PATCH /pipeline/{runId}/opportunity-cards/{cardId}/star", s.handleStarCard)

	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if database, ok := s.store.(*db.DB); ok {
		database.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Secret")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
