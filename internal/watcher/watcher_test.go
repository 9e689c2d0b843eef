package watcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/incremental"
	"github.com/proxikal/cerberus/internal/store"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com")
	require.NoError(t, cmd.Run())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDebouncerCollapsesBurstIntoOneFire(t *testing.T) {
	fired := make(chan struct{}, 10)
	d := newDebouncer(20*time.Millisecond, func() { fired <- struct{}{} })
	t.Cleanup(d.stop)

	for i := 0; i < 5; i++ {
		d.touch()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
	select {
	case <-fired:
		t.Fatal("debouncer fired more than once for one burst")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerStopPreventsFire(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := newDebouncer(10*time.Millisecond, func() { fired <- struct{}{} })
	d.touch()
	d.stop()

	select {
	case <-fired:
		t.Fatal("debouncer fired after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherTriggersIncrementalUpdateOnFileChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify integration test in short mode")
	}

	root := t.TempDir()
	runGit(t, root, "init")
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	git, err := gitutil.NewProvider(root)
	require.NoError(t, err)
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	updater := incremental.New(git, s, nil)
	_, err = updater.Run(context.Background())
	require.NoError(t, err)

	w, err := New(root, Options{DebounceDelay: 30 * time.Millisecond}, updater, git, s, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	writeFile(t, root, "b.go", "package main\n\nfunc B() {}\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "add b.go")

	require.Eventually(t, func() bool {
		return w.Stats().UpdatesTriggered > 0
	}, 3*time.Second, 20*time.Millisecond, "watcher never triggered an incremental update")

	syms, err := s.QuerySymbolsByFile(context.Background(), "b.go")
	require.NoError(t, err)
	require.Len(t, syms, 1)
}

func TestHotSetTracksAccessCountsAgainstThreshold(t *testing.T) {
	h := NewHotSet(HotSetOptions{Enabled: false, Threshold: 5}, nil, nil)
	h.Start()
	t.Cleanup(h.Stop)

	h.RecordAccess("a.go")
	h.RecordAccess("a.go")
	require.Empty(t, h.hotPaths(), "two accesses should not cross a threshold of five")

	h2 := NewHotSet(HotSetOptions{Enabled: false, Threshold: 2}, nil, nil)
	h2.Start()
	t.Cleanup(h2.Stop)
	h2.RecordAccess("a.go")
	h2.RecordAccess("a.go")
	require.ElementsMatch(t, []string{"a.go"}, h2.hotPaths())
}
