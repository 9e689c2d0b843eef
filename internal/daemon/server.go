package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WatcherHandle is the slice of internal/watcher.Watcher the daemon
// needs: a stop method for the shutdown sequence and a stats snapshot
// for GET /status. Stats returns `any` (internal/watcher.Stats in
// practice) rather than a daemon-defined struct, so daemon has no
// dependency on the watcher package at all — just whatever JSON-able
// value it reports.
type WatcherHandle interface {
	Stop()
	Stats() any
}

// Server is the long-lived JSON-RPC process of spec.md §4.10: an HTTP
// listener bound to 127.0.0.1, a method registry, a session reaper, and
// a PID file scoped to the project root. Grounded on the teacher's
// internal/server.IndexServer (net/http server, Start/Shutdown/Wait
// lifecycle, handleStatus/handlePing shape) adapted from its Unix-socket
// transport to spec.md's 127.0.0.1:{port} TCP transport and from its
// single-endpoint-per-operation routing to a JSON-RPC 2.0 envelope.
type Server struct {
	registry *Registry
	sessions *SessionManager
	log      *zap.Logger

	pidFile   string
	startTime time.Time

	mu         sync.RWMutex
	running    bool
	watcher    WatcherHandle
	listener   net.Listener
	httpServer *http.Server
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewServer builds a daemon bound to projectRoot's PID file. Passing
// port == 0 to Start picks an ephemeral port, matching net.Listen's own convention; call
// Addr() after Start to discover which one was chosen.
func NewServer(registry *Registry, sessions *SessionManager, projectRoot string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		registry:   registry,
		sessions:   sessions,
		log:        log,
		pidFile:    PIDFilePath(projectRoot),
		shutdownCh: make(chan struct{}),
	}
}

// SetWatcher attaches the filesystem watcher so /status can report its
// counters and Shutdown can stop it. Optional: a daemon started without
// a watcher (e.g. a one-shot RPC session) simply omits watcher stats.
func (s *Server) SetWatcher(w WatcherHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// Start binds the listener, writes the PID file, and begins serving.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	s.mu.Unlock()

	if IsRunning(s.pidFile) {
		return fmt.Errorf("daemon already running for this project (pid file %s)", s.pidFile)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind daemon listener: %w", err)
	}

	if err := WritePID(s.pidFile, os.Getpid()); err != nil {
		listener.Close()
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/rpc", s.handleRPC)

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}
	s.startTime = time.Now()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("daemon server error", zap.Error(err))
		}
	}()

	s.log.Info("daemon started", zap.String("addr", listener.Addr().String()), zap.Int("pid", os.Getpid()))
	return nil
}

// Addr returns the bound listener address, valid only after Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until Shutdown closes the server.
func (s *Server) Wait() {
	<-s.shutdownCh
}

// Shutdown runs spec.md §4.10's sequence: stop the session reaper, stop
// the watcher, close the HTTP server, remove the PID file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	watcher := s.watcher
	srv := s.httpServer
	s.mu.Unlock()

	s.sessions.Shutdown()

	if watcher != nil {
		watcher.Stop()
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("daemon shutdown error: %w", err)
		}
	}
	s.wg.Wait()

	if err := RemovePID(s.pidFile); err != nil {
		s.log.Warn("failed to remove pid file", zap.Error(err))
	}

	close(s.shutdownCh)
	s.log.Info("daemon shut down cleanly")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime).Seconds()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"index_loaded": true,
		"uptime_seconds": uptime,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	watcher := s.watcher
	s.mu.RUnlock()

	status := map[string]any{
		"index_loaded": true,
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if watcher != nil {
		status["watcher"] = watcher.Stats()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRPC dispatches a single JSON-RPC request or a batch (a JSON
// array), per spec.md §4.10's "single or batch."
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(ErrParse, "failed to read request body", nil))
		return
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(ErrInvalidRequest, "empty request body", nil))
		return
	}

	ctx := r.Context()
	if trimmed[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			writeJSON(w, http.StatusOK, errorResponse(ErrParse, err.Error(), nil))
			return
		}
		responses := make([]Response, len(reqs))
		for i, req := range reqs {
			responses[i] = s.dispatch(ctx, req)
		}
		writeJSON(w, http.StatusOK, responses)
		return
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		writeJSON(w, http.StatusOK, errorResponse(ErrParse, err.Error(), nil))
		return
	}
	writeJSON(w, http.StatusOK, s.dispatch(ctx, req))
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	if req.JSONRPC != jsonRPCVersion {
		return errorResponse(ErrInvalidRequest, "unsupported jsonrpc version", req.ID)
	}
	resp := s.registry.Invoke(ctx, req.Method, req.Params, req.ID)
	if sessionID := sessionIDFromParams(req.Params); sessionID != "" {
		_ = s.sessions.Touch(ctx, sessionID, req.Method)
	}
	return resp
}

// sessionIDFromParams peeks at an optional "session_id" field so RPC
// calls made within a session bump its activity timestamp, without every
// handler needing to know about sessions.
func sessionIDFromParams(params json.RawMessage) string {
	var probe struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
