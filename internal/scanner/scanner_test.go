package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {}")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")

	matcher := config.NewMatcher(root, nil, false)
	s := New(root, matcher, 0)

	entries, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "main.go", entries[0].Path)
}

func TestCollectEnforcesMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package main")
	writeFile(t, root, "big.go", string(make([]byte, 100)))

	s := New(root, config.NewMatcher(root, nil, false), 50)
	entries, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "small.go", entries[0].Path)
}

func TestCollectSkipsBinaryContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "text.go", "package main")
	path := filepath.Join(root, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 'a', 'b'}, 0o644))

	s := New(root, config.NewMatcher(root, nil, false), 0)
	entries, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "text.go", entries[0].Path)
}

func TestWalkStreamsEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")
	writeFile(t, root, "b.go", "package b")

	s := New(root, config.NewMatcher(root, nil, false), 0)
	out := make(chan Entry, 8)
	require.NoError(t, s.Walk(context.Background(), out))

	var paths []string
	for e := range out {
		paths = append(paths, e.Path)
	}
	require.ElementsMatch(t, []string{"a.go", "b.go"}, paths)
}

func TestDiffAgainstClassifiesChanges(t *testing.T) {
	previous := map[string]int64{
		"kept.go":     1,
		"changed.go":  1,
		"removed.go":  1,
	}
	entries := []Entry{
		{Path: "kept.go", ModTime: 1},
		{Path: "changed.go", ModTime: 2},
		{Path: "new.go", ModTime: 3},
	}

	d := DiffAgainst(entries, previous)
	require.Len(t, d.Added, 1)
	require.Equal(t, "new.go", d.Added[0].Path)
	require.Len(t, d.Modified, 1)
	require.Equal(t, "changed.go", d.Modified[0].Path)
	require.ElementsMatch(t, []string{"removed.go"}, d.Removed)
}
