package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"deodexer/internal/job"
	"deodexer/internal/logging"
	"deodexer/internal/results"
)

// Run is the live view of an in-progress run.
type Run interface {
	ID() string
	State() string
	Snapshot() results.Snapshot
	Cancel() bool
}

// Provider returns the current run, or nil before scheduling starts.
type Provider interface {
	Current() Run
}

// Server serves run status over HTTP.
type Server struct {
	bind     string
	provider Provider
	logger   *slog.Logger

	router   *mux.Router
	listener net.Listener
	server   *http.Server
}

// NewServer builds a status server. It does not listen until Start.
func NewServer(bind string, provider Provider, logger *slog.Logger) *Server {
	s := &Server{
		bind:     strings.TrimSpace(bind),
		provider: provider,
		logger:   logging.NewComponentLogger(logger, "api"),
		router:   mux.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/run", s.handleRun).Methods(http.MethodGet)
	v1.HandleFunc("/run/results", s.handleResults).Methods(http.MethodGet)
	v1.HandleFunc("/run/cancelled", s.handleCancelled).Methods(http.MethodGet)
	v1.HandleFunc("/run/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the bind address and serves until ctx is done or Stop is
// called. It returns the bound address.
func (s *Server) Start(ctx context.Context) (string, error) {
	if s.bind == "" {
		return "", errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return "", fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	addr := listener.Addr().String()
	s.logger.Info("api server listening", logging.String("address", addr))
	return addr, nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) current(w http.ResponseWriter) Run {
	var run Run
	if s.provider != nil {
		run = s.provider.Current()
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no run in progress")
	}
	return run
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	run := s.current(w)
	if run == nil {
		return
	}
	snap := run.Snapshot()
	s.writeJSON(w, http.StatusOK, RunStatus{
		RunID:   run.ID(),
		State:   run.State(),
		Summary: FromSummary(snap.Summary),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	run := s.current(w)
	if run == nil {
		return
	}
	filter := make(map[job.Status]struct{})
	for _, value := range r.URL.Query()["status"] {
		status := job.Status(strings.TrimSpace(value))
		if !status.Valid() {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		filter[status] = struct{}{}
	}

	snap := run.Snapshot()
	items := make([]ResultView, 0, len(snap.Results))
	for _, res := range snap.Results {
		if len(filter) > 0 {
			if _, ok := filter[res.Status]; !ok {
				continue
			}
		}
		items = append(items, FromResult(res))
	}
	s.writeJSON(w, http.StatusOK, ResultListResponse{Items: items})
}

func (s *Server) handleCancelled(w http.ResponseWriter, _ *http.Request) {
	run := s.current(w)
	if run == nil {
		return
	}
	snap := run.Snapshot()
	items := make([]string, 0, len(snap.Cancelled))
	for _, f := range snap.Cancelled {
		items = append(items, f.Path)
	}
	s.writeJSON(w, http.StatusOK, CancelledListResponse{Items: items})
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	run := s.current(w)
	if run == nil {
		return
	}
	requested := run.Cancel()
	if requested {
		s.logger.Info("cancellation requested via api", logging.RunID(run.ID()))
	}
	s.writeJSON(w, http.StatusAccepted, CancelResponse{RunID: run.ID(), Requested: requested})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("api response encode failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
