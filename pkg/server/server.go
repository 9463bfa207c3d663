// Package server exposes the authorization workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/api"
	"github.com/kalamgit143/validAIte-sub004/pkg/auth"
	"github.com/kalamgit143/validAIte-sub004/pkg/workflow"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Options configures the HTTP surface. Zero values disable the feature,
// except Validator: without one every non-public route answers 401.
type Options struct {
	Validator   *auth.JWTValidator
	RateLimiter *api.GlobalRateLimiter
	Idempotency api.IdempotencyStorer
	CORSOrigins []string
	// Ready reports dependency health for /readiness.
	Ready  func(context.Context) error
	Logger *slog.Logger
}

// Server routes API calls to the workflow.
type Server struct {
	wf     *workflow.Service
	opts   Options
	logger *slog.Logger
	mux    *http.ServeMux
}

func New(wf *workflow.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	s := &Server{wf: wf, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /readiness", s.handleReadiness)

	s.mux.HandleFunc("POST /v1/requests", s.handleCreate)
	s.mux.HandleFunc("GET /v1/requests", s.handleList)
	s.mux.HandleFunc("GET /v1/requests/{id}", s.handleGet)
	s.mux.HandleFunc("POST /v1/requests/{id}/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /v1/requests/{id}/approvals/{role}/{action}", s.handleSignOff)
	s.mux.HandleFunc("POST /v1/requests/{id}/conditions/{condition}", s.handleCondition)
	s.mux.HandleFunc("GET /v1/requests/{id}/progress", s.handleProgress)
	s.mux.HandleFunc("GET /v1/requests/{id}/readiness", s.handleRequestReadiness)
	s.mux.HandleFunc("POST /v1/requests/{id}/finalize", s.handleFinalize)
	s.mux.HandleFunc("GET /v1/requests/{id}/decision", s.handleDecision)
	s.mux.HandleFunc("GET /v1/requests/{id}/certificate", s.handleCertificate)
	s.mux.HandleFunc("GET /v1/requests/{id}/certificate/token", s.handleCertificateToken)
	s.mux.HandleFunc("GET /v1/requests/{id}/audit", s.handleAudit)
	s.mux.HandleFunc("GET /v1/requests/{id}/evidence-pack", s.handleEvidencePack)
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = api.IdempotencyMiddleware(s.opts.Idempotency, principalScope)(h)
	h = auth.NewMiddleware(s.opts.Validator)(h)
	if s.opts.RateLimiter != nil {
		h = s.opts.RateLimiter.Middleware(h)
	}
	h = auth.CORSMiddleware(s.opts.CORSOrigins)(h)
	h = s.accessLog(h)
	return auth.RequestIDMiddleware(h)
}

// NewHTTPServer wraps Handler with the timeouts used in production.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func principalScope(r *http.Request) string {
	p, err := auth.GetPrincipal(r.Context())
	if err != nil {
		return "anonymous"
	}
	return p.GetOrganizationID() + "/" + p.GetID()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", auth.GetRequestID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		api.WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			api.WriteErrorR(w, r, http.StatusServiceUnavailable, "Service Unavailable", "dependencies not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
