package blueprint

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/model"
)

func initChurnRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com")
		require.NoError(t, cmd.Run())
	}
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n\nfunc A() {}\n"), 0o644))
	run("init")
	run("add", ".")
	run("commit", "-m", "initial")
	return dir, file
}

func TestChurnAnalyzerReportsLastAuthorAndFrequency(t *testing.T) {
	dir, file := initChurnRepo(t)
	git, err := gitutil.NewProvider(dir)
	require.NoError(t, err)

	a := newChurnAnalyzer(git)
	metrics := a.Analyze(context.Background(), model.Symbol{FilePath: file, StartLine: 1, EndLine: 3})
	require.NotNil(t, metrics)
	require.Equal(t, "test", metrics.LastAuthor)
	require.Equal(t, 1, metrics.EditFrequency)
	require.Equal(t, 1, metrics.UniqueAuthors)
}

func TestChurnAnalyzerNoGitProviderReturnsNil(t *testing.T) {
	a := newChurnAnalyzer(nil)
	require.Nil(t, a.Analyze(context.Background(), model.Symbol{FilePath: "a.go"}))
}
