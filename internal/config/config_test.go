package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(filepath.Join(root, ".cerberus.toml"), root)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Index.BatchSize)
	require.Equal(t, root, cfg.Project.Root)
}

func TestLoadTOML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".cerberus.toml")
	content := `
[project]
name = "demo"

[index]
batch_size = 50

[embeddings]
enabled = true
model = "local-minilm"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, root)
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Project.Name)
	require.Equal(t, 50, cfg.Index.BatchSize)
	require.True(t, cfg.Embeddings.Enabled)
}

func TestLoadKDL(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".cerberus.kdl")
	content := `
project {
    name "demo-kdl"
}
index {
    batch_size 25
}
include "**/*.go"
exclude "**/*_generated.go"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, root)
	require.NoError(t, err)
	require.Equal(t, "demo-kdl", cfg.Project.Name)
	require.Equal(t, 25, cfg.Index.BatchSize)
	require.Contains(t, cfg.Include, "**/*.go")
	require.Contains(t, cfg.Exclude, "**/*_generated.go")
}

func TestMatcherExcludesDefaults(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher(root, nil, false)
	require.True(t, m.Excluded("node_modules/foo/index.js"))
	require.True(t, m.Excluded(".git/HEAD"))
	require.False(t, m.Excluded("main.go"))
}

func TestMatcherRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbin/\n"), 0o644))
	m := NewMatcher(root, nil, true)
	require.True(t, m.Excluded("server.log"))
	require.True(t, m.Excluded("bin/app"))
	require.False(t, m.Excluded("main.go"))
}
