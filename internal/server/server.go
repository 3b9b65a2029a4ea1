package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/user/vkv/internal/jobstore"
	"github.com/user/vkv/internal/vdb"
)

// Server is the thin HTTP binding over the verifiable KV engine and the
// job store: a pass-through to internal/vdb and internal/jobstore, no
// business logic of its own.
type Server struct {
	kv         *vdb.VerifiableKV
	jobs       *jobstore.Store
	httpServer *http.Server
	router     chi.Router
}

// New creates a Server wiring kv and jobs behind bindAddr.
func New(kv *vdb.VerifiableKV, jobs *jobstore.Store, bindAddr string) *Server {
	srv := &Server{kv: kv, jobs: jobs}
	srv.router = srv.buildRouter()
	srv.httpServer = &http.Server{
		Addr:    bindAddr,
		Handler: srv.router,
	}
	return srv
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(structuredLogger)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/kv", func(r chi.Router) {
			r.Put("/{key}", s.handlePutKV)
			r.Get("/{key}", s.handleGetKV)
			r.Delete("/{key}", s.handleDeleteKV)
			r.Post("/batch", s.handleBatchSetKV)
			r.Get("/checkpoint", s.handleCheckpoint)
			r.Post("/verify", s.handleVerifyProof)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleEnqueue)
			r.Get("/{id}", s.handleGetJob)
			r.Get("/{id}/events", s.handleJobEvents)
			r.Post("/{id}/cancel", s.handleCancel)
			r.Post("/{id}/retry", s.handleRetry)
			r.Post("/{id}/pause", s.handlePause)
			r.Post("/{id}/resume", s.handleResume)
		})
	})

	r.Get("/healthz", s.handleHealthz)

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Close force-closes the server's listeners, for use when Shutdown fails
// to drain in time.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// Handler returns the http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func structuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
