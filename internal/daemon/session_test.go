package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionManagerCreateTouchClose(t *testing.T) {
	s := newTestStore(t)
	mgr := NewSessionManager(s, time.Hour, time.Hour, nil)
	t.Cleanup(mgr.Shutdown)

	sess, err := mgr.Create(context.Background(), "investigating auth bug")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, 0, sess.QueryCount)

	require.NoError(t, mgr.Touch(context.Background(), sess.ID, "get_symbol"))
	updated, err := mgr.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.QueryCount)

	require.NoError(t, mgr.Close(context.Background(), sess.ID))
	_, err = mgr.Get(context.Background(), sess.ID)
	require.Error(t, err)
}

func TestSessionManagerReapsIdleSessions(t *testing.T) {
	s := newTestStore(t)
	mgr := NewSessionManager(s, 20*time.Millisecond, 10*time.Millisecond, nil)
	t.Cleanup(mgr.Shutdown)

	sess, err := mgr.Create(context.Background(), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := mgr.Get(context.Background(), sess.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond, "idle session was never reaped")
}

func TestSessionManagerShutdownStopsReaperGoroutine(t *testing.T) {
	s := newTestStore(t)
	mgr := NewSessionManager(s, time.Hour, 5*time.Millisecond, nil)
	mgr.Shutdown() // must return once the reaper loop has exited
}
