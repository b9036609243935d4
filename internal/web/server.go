// Package web exposes the AG-UI event stream over HTTP: the /agui SSE
// endpoint, health and run-listing endpoints, and the passthrough
// request/response logger every handler sits behind.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coagents/aguid/internal/config"
	"github.com/coagents/aguid/internal/runtime"
	"github.com/coagents/aguid/internal/storage"
	"github.com/coagents/aguid/internal/stream"
)

// Server holds web server shared state.
type Server struct {
	Config  *config.Config
	DB      *storage.Database
	Encoder *stream.Encoder
}

// NewServer wires a runtime behind the stream encoder using the config's
// pacing settings.
func NewServer(cfg *config.Config, db *storage.Database, rt runtime.Runtime) *Server {
	return &Server{
		Config: cfg,
		DB:     db,
		Encoder: stream.New(rt, stream.Options{
			EventDelay: cfg.EventDelay(),
			TextDelay:  cfg.TextDelay(),
			Buffer:     cfg.EventBuffer,
		}),
	}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// Recoverer sits outside httpLog so the re-panic httpLog raises for
	// faults on an in-flight stream still lands somewhere.
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: s.Config.AllowCredentials,
	}))
	r.Use(s.httpLog)

	// A blanket timeout would cut paced SSE runs short, so only the
	// non-streaming endpoints get one.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", s.handleHealth)
		r.With(s.requireAuth).Get("/runs", s.handleListRuns)
	})

	r.With(s.requireAuth).Post("/agui", s.handleAgui)

	return r
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, cfg *config.Config, db *storage.Database, rt runtime.Runtime) error {
	s := NewServer(cfg, db, rt)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("[web] %s listening on %s", cfg.ServiceName, cfg.Addr())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, healthResponse{Status: "healthy", Service: s.Config.ServiceName})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.DB.ListRecentRuns(50)
	if err != nil {
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	jsonOK(w, runs)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
