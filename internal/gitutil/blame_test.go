package gitutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlameReturnsOneLinePerSourceLine(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)

	lines, err := p.Blame(context.Background(), filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "test", lines[0].Author)
	require.False(t, lines[0].Timestamp.IsZero())
}

func TestShowReturnsFileContentAtRef(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)

	head, err := p.HeadCommit(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc A() {}\n"), 0o644))

	content, err := p.Show(context.Background(), head, "a.go")
	require.NoError(t, err)
	require.Equal(t, "package main\n", content)
}

func TestShowMissingRefReturnsError(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)

	_, err = p.Show(context.Background(), "deadbeef", "a.go")
	require.Error(t, err)
}
