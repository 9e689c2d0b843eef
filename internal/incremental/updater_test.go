package incremental

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/gitutil"
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

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpdaterRunIndexesAddedFileAndAdvancesCommit(t *testing.T) {
	root := t.TempDir()
	runGit(t, root, "init")
	writeFile(t, root, "README.md", "placeholder\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	git, err := gitutil.NewProvider(root)
	require.NoError(t, err)

	s := openStore(t)
	u := New(git, s, nil)

	// A first run with no stored commit establishes the baseline (no
	// prior working-tree changes to diff) before any real content exists.
	_, err = u.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "add a.go")

	result, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.AddedFiles)
	require.NotEmpty(t, result.NewCommit)

	commit, ok, err := s.GetMetadata(context.Background(), "git_commit")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result.NewCommit, commit)

	syms, err := s.QuerySymbolsByFile(context.Background(), "a.go")
	require.NoError(t, err)
	require.Len(t, syms, 1)
}

func TestUpdaterRunDetectsModifiedAndDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	writeFile(t, root, "b.go", "package main\n\nfunc B() {}\n")
	runGit(t, root, "init")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	git, err := gitutil.NewProvider(root)
	require.NoError(t, err)

	s := openStore(t)
	u := New(git, s, nil)

	_, err = u.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n\nfunc A2() {}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))
	runGit(t, root, "add", "-A")
	runGit(t, root, "commit", "-m", "second")

	result, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.ModifiedFiles)
	require.Equal(t, 1, result.DeletedFiles)

	syms, err := s.QuerySymbolsByFile(context.Background(), "a.go")
	require.NoError(t, err)
	require.Len(t, syms, 2)

	bSyms, err := s.QuerySymbolsByFile(context.Background(), "b.go")
	require.NoError(t, err)
	require.Empty(t, bSyms)
}

func TestUpdaterRunRecommendsRebuildWhenMostFilesChange(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		writeFile(t, root, filepath.Join("pkg", string(rune('a'+i))+".go"), "package pkg\n\nfunc F() {}\n")
	}
	runGit(t, root, "init")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	git, err := gitutil.NewProvider(root)
	require.NoError(t, err)

	s := openStore(t)
	u := New(git, s, nil)
	_, err = u.Run(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		writeFile(t, root, filepath.Join("pkg", string(rune('a'+i))+".go"), "package pkg\n\nfunc F() {}\n\nfunc G() {}\n")
	}
	runGit(t, root, "add", "-A")
	runGit(t, root, "commit", "-m", "touch everything")

	result, err := u.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.RebuildRecommended)
}
