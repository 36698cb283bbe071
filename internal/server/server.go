// Package server exposes the Sentinel runtime as an HTTP gateway. Agent
// plugins post commands to /audit; reviewers drive the approval endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sentinelgate/sentinel/internal/auditor"
	"github.com/sentinelgate/sentinel/internal/runtime"
	"github.com/sentinelgate/sentinel/internal/store"
)

// Config holds the gateway wiring.
type Config struct {
	// ListenAddr is the address to listen on. Defaults to "127.0.0.1:8765".
	ListenAddr string

	Runtime *runtime.Runtime
	Auditor *auditor.CommandAuditor
	Store   *store.Store

	// AuthToken is the expected X-Sentinel-Token value. With auth enabled and
	// no token configured, every protected endpoint answers 503: an
	// unconfigured gateway must not silently become an open one.
	AuthToken    string
	AuthDisabled bool

	// Stderr receives diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
}

// Server is the Sentinel HTTP gateway.
type Server struct {
	cfg      Config
	stderr   io.Writer
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// New creates a gateway server.
func New(cfg Config) *Server {
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8765"
	}
	return &Server{cfg: cfg, stderr: stderr}
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /audit", s.auth(s.handleAudit))
	mux.HandleFunc("POST /audit-only", s.auth(s.handleAuditOnly))
	mux.HandleFunc("GET /pending", s.auth(s.handlePending))
	mux.HandleFunc("POST /approve/{id}", s.auth(s.handleApprove))
	mux.HandleFunc("POST /reject/{id}", s.auth(s.handleReject))
	mux.HandleFunc("GET /stats", s.auth(s.handleStats))
	return mux
}

// ListenAndServe starts the gateway and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // audits can wait on the model
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	fmt.Fprintf(s.stderr, "[sentinel] gateway listening on http://%s\n", ln.Addr().String())
	return s.server.Serve(ln)
}

// ListenAddr returns the bound address, valid after ListenAndServe.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Shutdown stops the gateway gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// auth guards an endpoint with the shared-secret header.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AuthDisabled {
			if s.cfg.AuthToken == "" {
				writeError(w, http.StatusServiceUnavailable, "Sentinel auth token is not configured")
				return
			}
			if r.Header.Get("X-Sentinel-Token") != s.cfg.AuthToken {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next(w, r)
	}
}

type auditRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "sentinel"})
}

// handleAudit runs the full interception flow: policy, audit, execution.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuditRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeJSON(w, http.StatusOK, runtime.Result{
			Allowed:   false,
			RiskScore: 10,
			Reason:    "Empty command",
		})
		return
	}

	res, err := s.cfg.Runtime.Run(r.Context(), req.Command, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Status == runtime.StatusReviewRequired && res.RequestID != "" {
		res.Reason = fmt.Sprintf("%s [Request ID: %s]", res.Reason, res.RequestID)
		fmt.Fprintf(s.stderr, "[sentinel] review required, request id %s\n", res.RequestID)
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAuditOnly returns the audit decision without executing anything.
func (s *Server) handleAuditOnly(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuditRequest(w, r)
	if !ok {
		return
	}
	d := s.cfg.Auditor.Audit(r.Context(), req.Command)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.cfg.Store.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[string]store.Request, len(pending))
	for _, req := range pending {
		byID[req.ID] = req
	}
	writeJSON(w, http.StatusOK, byID)
}

// handleApprove executes a pending command with policy bypass and marks the
// request approved. The request is resolved only after execution was
// attempted, so a crashed gateway leaves it reviewable rather than lost.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, ok := s.pendingRequest(w, r, id)
	if !ok {
		return
	}

	fmt.Fprintf(s.stderr, "[sentinel] approving request %s: %s\n", id, req.Command)

	res, err := s.cfg.Runtime.Run(r.Context(), req.Command, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.cfg.Store.Resolve(r.Context(), id, store.StatusApproved); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReject marks a pending request rejected without executing it.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, ok := s.pendingRequest(w, r, id); !ok {
		return
	}

	resolved, err := s.cfg.Store.Resolve(r.Context(), id, store.StatusRejected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// pendingRequest loads a request and enforces the pending-only transition.
func (s *Server) pendingRequest(w http.ResponseWriter, r *http.Request, id string) (store.Request, bool) {
	req, err := s.cfg.Store.Request(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Request not found")
		return store.Request{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return store.Request{}, false
	}
	if req.Status != store.StatusPending {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Request is already %s", req.Status))
		return store.Request{}, false
	}
	return req, true
}

func decodeAuditRequest(w http.ResponseWriter, r *http.Request) (auditRequest, bool) {
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return auditRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
