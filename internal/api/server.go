package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"genpool/internal/pool"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type generateReq struct {
	Prompt string `json:"prompt"`
}

type batchReq struct {
	Tasks []any `json:"tasks"`
}

type batchRun struct {
	mu      sync.Mutex
	status  string // running | done | failed
	results []map[string]any
	err     string
}

func NewServer(p *pool.Pool) *Server {
	s := &Server{pool: p, batches: make(map[string]*batchRun)}

	r := chi.NewRouter()
	r.Post("/generate", s.handleGenerate)
	r.Post("/batch", s.handleBatchSubmit)
	r.Get("/batch/{id}", s.handleBatchStatus)
	r.Get("/stats", s.handleStats)
	s.router = r
	return s
}

type Server struct {
	router  *chi.Mux
	pool    *pool.Pool
	mu      sync.Mutex
	batches map[string]*batchRun
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	out, err := s.pool.GenerateSingle(r.Context(), req.Prompt)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": out})
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	var req batchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if len(req.Tasks) == 0 {
		http.Error(w, "no tasks submitted", 400)
		return
	}

	id := uuid.NewString()
	run := &batchRun{status: "running"}
	s.mu.Lock()
	s.batches[id] = run
	s.mu.Unlock()

	go func() {
		// Batches queue up behind the pool's run lock; detach from the
		// request context so a closed connection does not cancel the work.
		results, err := s.pool.GenerateBatch(context.Background(), req.Tasks)
		run.mu.Lock()
		defer run.mu.Unlock()
		run.results = results
		if err != nil {
			run.status = "failed"
			run.err = err.Error()
			return
		}
		run.status = "done"
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	run, ok := s.batches[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown batch", 404)
		return
	}

	run.mu.Lock()
	resp := map[string]any{"id": id, "status": run.status}
	if run.status != "running" {
		resp["results"] = run.results
	}
	if run.err != "" {
		resp["error"] = run.err
	}
	run.mu.Unlock()
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.pool.Snapshot())
}

// Run method of the Server struct runs the HTTP server on the specified port. It initializes
// a new HTTP server instance with the specified port and the server's router.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	h := chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
