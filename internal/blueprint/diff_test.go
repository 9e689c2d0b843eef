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

func initDiffRepo(t *testing.T) (string, string) {
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
	require.NoError(t, os.WriteFile(file, []byte("package a\n\nfunc Old() {}\n"), 0o644))
	run("init")
	run("add", ".")
	run("commit", "-m", "initial")
	return dir, file
}

func TestDiffAnalyzerMarksAddedSymbol(t *testing.T) {
	dir, file := initDiffRepo(t)
	git, err := gitutil.NewProvider(dir)
	require.NoError(t, err)

	head, err := git.HeadCommit(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("package a\n\nfunc Old() {}\n\nfunc New() {}\n"), 0o644))

	bp := &Blueprint{
		FilePath: file,
		Nodes: []*Node{
			{Symbol: model.Symbol{Name: "Old", Type: model.SymbolFunction, Signature: "Old()"}},
			{Symbol: model.Symbol{Name: "New", Type: model.SymbolFunction}},
		},
	}

	analyzer := newDiffAnalyzer(nil, git)
	analyzer.Annotate(context.Background(), bp, head)

	require.Equal(t, "", bp.Nodes[0].Overlay.DiffStatus)
	require.Equal(t, "added", bp.Nodes[1].Overlay.DiffStatus)
}

func TestDiffAnalyzerNoGitProviderIsNoop(t *testing.T) {
	analyzer := newDiffAnalyzer(nil, nil)
	bp := &Blueprint{Nodes: []*Node{{Symbol: model.Symbol{Name: "X"}}}}
	analyzer.Annotate(context.Background(), bp, "HEAD")
	require.Equal(t, "", bp.Nodes[0].Overlay.DiffStatus)
}
