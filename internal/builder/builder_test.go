package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/store"
)

// fakeEmbedder returns a fixed-dimension zero vector per text, enough to
// exercise the embedding path without a real model.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (f fakeEmbedder) Dimension() int { return f.dim }

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuilderRunIndexesGoFiles(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "main.go", "package main\n\nfunc main() {\n\tHelper()\n}\n")
	writeRepoFile(t, root, "helper.go", "package main\n\nfunc Helper() {}\n")

	storeDir := t.TempDir()
	s, err := store.Open(storeDir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	vecs, err := store.OpenVectorStore(storeDir, 4)
	require.NoError(t, err)

	cfg := config.Default(root)

	b := New(root, cfg, s, vecs, nil, nil)
	result, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesIndexed)
	require.GreaterOrEqual(t, result.SymbolsTotal, 2)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.FileCount)
}

func TestBuilderRunEmbedsWhenEnabled(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.go", "package main\n\nfunc A() {}\n")

	storeDir := t.TempDir()
	s, err := store.Open(storeDir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	vecs, err := store.OpenVectorStore(storeDir, 4)
	require.NoError(t, err)

	cfg := config.Default(root)
	cfg.Embeddings.Enabled = true

	b := New(root, cfg, s, vecs, fakeEmbedder{dim: 4}, nil)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, vecs.Len())
}

func TestBuilderRunRecordsScanDurationMetadata(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "ok.go", "package main\n\nfunc OK() {}\n")

	storeDir := t.TempDir()
	s, err := store.Open(storeDir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	vecs, err := store.OpenVectorStore(storeDir, 4)
	require.NoError(t, err)

	cfg := config.Default(root)
	b := New(root, cfg, s, vecs, nil, nil)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	value, ok, err := s.GetMetadata(context.Background(), "scan_duration_ms")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, value)
}
