package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/history"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/health"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/tracing"
)

// HistoryLister reads the snapshot journal.
type HistoryLister interface {
	List(ctx context.Context, q history.Query) ([]history.Record, error)
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the components the admin server exposes. Manager and RulesDir
// are required; nil optional components disable their routes.
type Deps struct {
	Manager  *manager.Manager
	RulesDir string

	Checker     *health.Checker
	Metrics     http.Handler
	MetricsPath string
	History     HistoryLister
	Tracer      *tracing.Tracer
	Build       BuildInfo
}

// Server is the admin HTTP server.
type Server struct {
	config *config.AdminConfig
	deps   Deps
	logger *slog.Logger
	router chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New builds the admin server and its routes.
func New(cfg *config.AdminConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Manager == nil {
		return nil, errors.New("admin server requires a manager")
	}
	if deps.RulesDir == "" {
		return nil, errors.New("admin server requires a rule directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Tracer == nil {
		tracer, err := tracing.New(&config.TracingConfig{}, deps.Build.Version)
		if err != nil {
			return nil, err
		}
		deps.Tracer = tracer
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "admin"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer(s.logger))
	r.Use(accessLog(s.logger))
	if s.deps.Tracer.Enabled() {
		r.Use(tracing.HTTPMiddleware(s.deps.Tracer))
	}

	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		r.Method(http.MethodGet, path, s.deps.Metrics)
	}
	if s.deps.Checker != nil {
		b := s.deps.Build
		health.Mount(r, s.deps.Checker, b.Version, b.Commit, b.BuildTime)
	}

	r.Get("/rules", s.handleRules)
	r.Get("/snapshot", s.handleSnapshot)
	if s.deps.History != nil {
		r.Get("/history", s.handleHistory)
	}
	r.Post("/reload", s.handleReload)
	r.Post("/reload/file", s.handleReloadFile)
	r.Put("/apply", s.handleApply)
	return r
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.config.ListenAddress, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("admin server is already running")
	}
	s.httpServer, s.listener = srv, ln
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting admin server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultAdminShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down admin server", "timeout", timeout.String())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return <-errCh
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

type snapshotResponse struct {
	ID          string              `json:"id"`
	Generation  uint64              `json:"generation"`
	Version     string              `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	Enabled     bool                `json:"enabled"`
	Assignments map[string][]string `json:"assignments"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Manager.Snapshot()
	resp := snapshotResponse{
		ID:          snap.ID.String(),
		Generation:  snap.Generation,
		Version:     snap.Version,
		CreatedAt:   snap.CreatedAt,
		Enabled:     s.deps.Manager.Enabled(),
		Assignments: make(map[string][]string, snap.Len()),
	}
	for id, rules := range snap.Assignments() {
		resp.Assignments[string(id)] = rules
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.deps.Manager.Version(),
		"rules":   s.deps.Manager.Rules(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := history.Query{Subject: r.URL.Query().Get("subject")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		q.Limit = limit
	}

	records, err := s.deps.History.List(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "History query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

type reloadResponse struct {
	*manager.LoadResult
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	_, span := s.deps.Tracer.Start(r.Context(), tracing.SpanLoadDirectory)
	defer span.End()

	result, err := s.deps.Manager.LoadDirectory(s.deps.RulesDir)
	span.SetAttributes(tracing.LoadAttributes(s.deps.RulesDir, result)...)
	tracing.SetStatus(span, err)
	if err != nil && len(result.Rejected) == 0 {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := reloadResponse{LoadResult: result}
	if err != nil {
		resp.Errors = flatten(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReloadFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveRulePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Manager.ReloadFile(path); err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, manager.ErrUnsupportedExtension) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, map[string]any{"path": path, "loaded": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "loaded": true})
}

// resolveRulePath maps a request path onto the rule directory. Relative
// paths are taken from the rule directory; anything outside it is refused.
func (s *Server) resolveRulePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("missing path parameter")
	}

	root, err := filepath.Abs(s.deps.RulesDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the rule directory", p)
	}
	return p, nil
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	s.deps.Manager.SetEnabled(*req.Enabled)
	s.logger.InfoContext(r.Context(), "Apply pass toggled", "enabled", *req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

func flatten(err error) []string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
