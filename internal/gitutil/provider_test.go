package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// initRepo creates a throwaway git repository with one commit, mirroring
// the teacher's provider_test.go approach of shelling real git rather
// than mocking it.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com")
		require.NoError(t, cmd.Run())
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func TestNewProviderRejectsNonGitDir(t *testing.T) {
	_, err := NewProvider(t.TempDir())
	require.Error(t, err)
}

func TestNewProviderResolvesRepoRoot(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)
	require.NotEmpty(t, p.Root())
}

func TestHeadCommitReturnsHash(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)

	hash, err := p.HeadCommit(context.Background())
	require.NoError(t, err)
	require.Len(t, hash, 40)
}

func TestDiffAgainstClassifiesAddedAndModified(t *testing.T) {
	dir := initRepo(t)
	p, err := NewProvider(dir)
	require.NoError(t, err)

	base, err := p.HeadCommit(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package main\n"), 0o644))
	runGit := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	runGit("add", "b.go")
	runGit("add", "a.go")
	runGit("rm", "--cached", "-f", "does-not-exist.go", "--ignore-unmatch")

	cs, err := p.DiffAgainst(context.Background(), base)
	require.NoError(t, err)
	require.Contains(t, cs.Added, "b.go")

	var modified bool
	for _, m := range cs.Modified {
		if m.Path == "a.go" {
			modified = true
			require.NotEmpty(t, m.Ranges)
		}
	}
	require.True(t, modified)
}
