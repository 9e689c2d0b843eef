package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/store"
)

// SessionManager backs §4.10's create_session/close_session RPC methods
// and the idle-reaper background thread. Session state itself lives in
// the store's sessions/session_activity tables (internal/store/
// mutation_log.go) rather than in process memory, so a session survives
// a daemon restart; SessionManager only owns the reaper's lifecycle.
// Grounded on original_source/src/cerberus/daemon/session_manager.py's
// SessionManager, whose in-memory dict this replaces with the shared
// store.
type SessionManager struct {
	store           *store.Store
	maxIdle         time.Duration
	reapInterval    time.Duration
	log             *zap.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSessionManager starts the background reaper immediately, matching
// session_manager.py's constructor which spawns its cleanup thread
// eagerly. Call Shutdown to stop it.
func NewSessionManager(s *store.Store, maxIdle, reapInterval time.Duration, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &SessionManager{
		store:        s,
		maxIdle:      maxIdle,
		reapInterval: reapInterval,
		log:          log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Create starts a new session with a random 16-byte hex ID.
func (m *SessionManager) Create(ctx context.Context, context_ string) (store.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return store.Session{}, err
	}
	return m.store.CreateSession(ctx, id, context_)
}

// Touch records one RPC call against a session, bumping its activity
// timestamp and query count.
func (m *SessionManager) Touch(ctx context.Context, id, method string) error {
	return m.store.TouchSession(ctx, id, method)
}

// Close removes a session immediately rather than waiting for the
// reaper.
func (m *SessionManager) Close(ctx context.Context, id string) error {
	return m.store.CloseSession(ctx, id)
}

// Get reads one session's current state.
func (m *SessionManager) Get(ctx context.Context, id string) (store.Session, error) {
	return m.store.GetSession(ctx, id)
}

func (m *SessionManager) reapLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *SessionManager) reapExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.maxIdle)
	idle, err := m.store.IdleSessions(ctx, cutoff)
	if err != nil {
		m.log.Warn("idle session scan failed", zap.Error(err))
		return
	}
	for _, sess := range idle {
		if err := m.store.CloseSession(ctx, sess.ID); err != nil {
			m.log.Warn("failed to reap idle session", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		m.log.Info("reaped idle session", zap.String("session_id", sess.ID))
	}
}

// Shutdown stops the reaper thread and waits for it to exit, matching
// §4.10's SIGTERM sequence ("stop session reaper" before closing the
// server).
func (m *SessionManager) Shutdown() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
