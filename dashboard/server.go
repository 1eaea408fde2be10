package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/orchestrator"
)

// Source is the kernel state the dashboard reads.
type Source interface {
	Snapshot(ctx context.Context) (orchestrator.Snapshot, error)
	Bus() *bus.Bus
}

// LogSource lists recent log entries in emission order.
type LogSource interface {
	Entries() []core.LogEntry
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address for ListenAndServe.
	Addr string
	// Logs backs /api/logs. Without it the endpoint returns an empty list.
	Logs LogSource
	// ServiceName names the otelhttp server spans.
	ServiceName string
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
	// OriginPatterns are extra browser origins allowed on /ws. Same-host
	// requests and clients without an Origin header are always accepted.
	OriginPatterns []string
	Logger          logging.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	src    Source
	opts   Options
	logger logging.Logger
	router chi.Router
}

// New creates a dashboard over src.
func New(src Source, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8080",
		ServiceName:     "agentkernel-dashboard",
		ShutdownTimeout: 5 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{src: src, opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, s.opts.ServiceName)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap }))
		r.Get("/agents", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap.Agents }))
		r.Get("/tasks", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap.Tasks }))
		r.Get("/capabilities", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap.Capabilities }))
		r.Get("/keys", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap.Keys }))
		r.Get("/subscriptions", s.snapshotView(func(snap orchestrator.Snapshot) any { return snap.Subscriptions }))
		r.Get("/logs", s.handleLogs)
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on Options.Addr until ctx is done, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard.listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("dashboard.stopped")
	return nil
}

func (s *Server) snapshotView(view func(orchestrator.Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.src.Snapshot(r.Context())
		if err != nil {
			s.logger.Error("dashboard.snapshot.failed", "error", err)
			writeError(w, http.StatusInternalServerError, "snapshot failed")
			return
		}
		writeJSON(w, http.StatusOK, view(snap))
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := []core.LogEntry{}
	if s.opts.Logs != nil {
		entries = append(entries, s.opts.Logs.Entries()...)
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
