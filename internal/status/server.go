// Package status serves a read-only JSON view of the pipeline over
// HTTP: the resolved steps, recent run history, and a server-sent event
// stream that pings after every rebuild. It runs inside watch mode.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/liftoff-dev/liftoff/internal/state"
	"golang.org/x/sync/errgroup"
)

// defaultRunsLimit caps /api/runs responses when no limit is given.
const defaultRunsLimit = 20

// Server is the status API server.
type Server struct {
	engine   *engine.Engine
	addr     string
	logger   *slog.Logger
	notifier *Notifier
}

// Config holds configuration for the status server.
type Config struct {
	Engine *engine.Engine
	Addr   string
	Logger *slog.Logger
	// Notifier is shared with the watcher; nil creates a private one.
	Notifier *Notifier
}

// NewServer creates a status server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Server{
		engine:   cfg.Engine,
		addr:     cfg.Addr,
		logger:   logger,
		notifier: notifier,
	}
}

// Notifier returns the notifier clients are subscribed to.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/events", s.handleEvents)

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting status server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Environment string        `json:"environment"`
	Steps       []stepStatus  `json:"steps"`
	Order       []string      `json:"order"`
	Launch      *launchStatus `json:"launch,omitempty"`
	LastRun     *runWithSteps `json:"last_run,omitempty"`
}

type stepStatus struct {
	Name       string   `json:"name"`
	Dir        string   `json:"dir"`
	Entrypoint string   `json:"entrypoint"`
	Needs      []string `json:"needs,omitempty"`
}

type launchStatus struct {
	Target  string `json:"target"`
	Elevate bool   `json:"elevate"`
}

type runWithSteps struct {
	*state.Run
	Steps []*state.StepRun `json:"steps,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.GetGraph().Sort()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := statusResponse{
		Environment: s.engine.GetEnvironment(),
		Order:       order,
	}
	for _, step := range s.engine.GetSteps() {
		resp.Steps = append(resp.Steps, stepStatus{
			Name:       step.Name,
			Dir:        step.Dir,
			Entrypoint: step.Entrypoint,
			Needs:      step.Needs,
		})
	}
	if launch := s.engine.GetLaunch(); launch != nil {
		resp.Launch = &launchStatus{Target: launch.Target, Elevate: launch.Elevate}
	}

	store := s.engine.GetStateStore()
	if run, err := store.GetLatestRun(s.engine.GetEnvironment()); err == nil && run != nil {
		last := &runWithSteps{Run: run}
		if steps, err := store.GetStepRunsForRun(run.ID); err == nil {
			last.Steps = steps
		}
		resp.LastRun = last
	}

	s.writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	store := s.engine.GetStateStore()
	runs, err := store.ListRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := make([]*runWithSteps, 0, len(runs))
	for _, run := range runs {
		rws := &runWithSteps{Run: run}
		if steps, err := store.GetStepRunsForRun(run.ID); err == nil {
			rws.Steps = steps
		}
		resp = append(resp, rws)
	}

	s.writeJSON(w, map[string]any{"runs": resp})
}

// handleEvents streams one SSE ping per rebuild until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			fmt.Fprint(w, "event: rebuild\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
