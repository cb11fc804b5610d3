package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commongraph/graphview/pkg/platform"
	"github.com/commongraph/graphview/pkg/render"
)

const maxRenderBody = 16 << 20

// Server encapsulates the HTTP API server
type Server struct {
	session *render.Session
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger

	// sha256 of the admin token; empty disables auth
	tokenHash string

	tlsCertFile string
	tlsKeyFile  string
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on state-changing routes.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.tokenHash = hashToken(token)
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new API server instance
func NewServer(session *render.Session, addr string, opts ...Option) *Server {
	s := &Server{
		session: session,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/render", s.handleRender)
	mux.HandleFunc("/v1/schema/edge-types", s.handleEdgeTypes)
	mux.HandleFunc("/v1/schema/target-types", s.handleTargetTypes)
	mux.HandleFunc("/v1/schema/source-types", s.handleSourceTypes)
	mux.HandleFunc("/v1/config", s.handleConfig)
	mux.HandleFunc("/v1/config/reload", s.withAuth(s.handleReload))
	mux.HandleFunc("/v1/direction", s.handleDirection)

	s.handler = withLogging(s.logger, withRecovery(s.logger, withSecureHeaders(mux)))

	if addr == "" {
		addr = ":8090"
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	var err error
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("server_starting_tls", "addr", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	} else {
		s.logger.Info("server_starting", "addr", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		ConfigLoaded: s.session.Config.Loaded(),
		SchemaLoaded: s.session.Schema.Loaded(),
	})
}

// handleRender styles and lays out the posted records.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	var req render.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json_body", err.Error())
		return
	}

	res := s.session.Render(r.Context(), req)
	s.logger.Debug("render_complete",
		"trace_id", getTraceID(r.Context()),
		"nodes", len(res.Nodes),
		"edges", len(res.Edges),
		"direction", res.Direction,
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEdgeTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	s.ensureLoaded(r.Context())

	q := r.URL.Query()
	source, target := q.Get("source"), q.Get("target")
	writeJSON(w, http.StatusOK, EdgeTypesResponse{
		Source:    source,
		Target:    target,
		EdgeTypes: s.session.Schema.AllowedEdgeTypes(source, target),
	})
}

func (s *Server) handleTargetTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	s.ensureLoaded(r.Context())

	source := r.URL.Query().Get("source")
	writeJSON(w, http.StatusOK, NodeTypesResponse{
		Source:    source,
		NodeTypes: s.session.Schema.AllowedTargetTypes(source),
	})
}

func (s *Server) handleSourceTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	s.ensureLoaded(r.Context())

	target := r.URL.Query().Get("target")
	writeJSON(w, http.StatusOK, NodeTypesResponse{
		Target:    target,
		NodeTypes: s.session.Schema.AllowedSourceTypes(target),
	})
}

// handleConfig serves the loaded config. DELETE drops the loaded flags so
// the next request fetches again; it requires the admin token.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeConfig(w, r)
	case http.MethodDelete:
		s.withAuth(s.handleClearCache)(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.session.ClearCache()
	s.logger.Info("cache_cleared", "trace_id", getTraceID(r.Context()))
	writeJSON(w, http.StatusOK, ReloadResponse{
		ConfigLoaded: s.session.Config.Loaded(),
		SchemaLoaded: s.session.Schema.Loaded(),
	})
}

func (s *Server) writeConfig(w http.ResponseWriter, r *http.Request) {
	s.ensureLoaded(r.Context())

	cfg := s.session.Config
	current := cfg.Config()
	writeJSON(w, http.StatusOK, ConfigResponse{
		Loaded:      cfg.Loaded(),
		Metadata:    cfg.Metadata(),
		Permissions: cfg.Permissions().Summary(),
		NodePolls:   pollLabels(current.NodeTypes, cfg.NodeTypePolls),
		EdgePolls:   pollLabels(current.EdgeTypes, cfg.EdgeTypePolls),
		Config:      current,
	})
}

func pollLabels(types map[string]platform.TypeDef, lookup func(string) []platform.Poll) map[string][]string {
	out := make(map[string][]string, len(types))
	for name := range types {
		labels := []string{}
		for _, p := range lookup(name) {
			labels = append(labels, p.Label)
		}
		out[name] = labels
	}
	return out
}

// handleReload forces both caches to refetch.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	resp := ReloadResponse{}
	status := http.StatusOK
	if err := s.session.Load(r.Context(), true); err != nil {
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
		s.logger.Warn("reload_incomplete", "trace_id", getTraceID(r.Context()), "error", err)
	}
	resp.ConfigLoaded = s.session.Config.Loaded()
	resp.SchemaLoaded = s.session.Schema.Loaded()
	writeJSON(w, status, resp)
}

// handleDirection reports the persisted direction. DELETE clears the
// persisted client state and requires the admin token.
func (s *Server) handleDirection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, DirectionResponse{Direction: s.session.PreviousDirection(r.Context())})
	case http.MethodDelete:
		s.withAuth(s.handleResetState)(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ResetState(r.Context()); err != nil {
		s.logger.Error("state_reset_failed", "trace_id", getTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "state_reset_failed", err.Error())
		return
	}
	s.logger.Info("state_reset", "trace_id", getTraceID(r.Context()))
	writeJSON(w, http.StatusOK, DirectionResponse{Direction: s.session.PreviousDirection(r.Context())})
}

// ensureLoaded loads the session on first use. Failures degrade answers to
// their unconstrained defaults rather than failing the request.
func (s *Server) ensureLoaded(ctx context.Context) {
	if s.session.Ready() {
		return
	}
	if err := s.session.Load(ctx, false); err != nil {
		s.logger.Warn("session_not_loaded", "trace_id", getTraceID(ctx), "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed_to_encode_response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	body := map[string]string{"error": code}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}
