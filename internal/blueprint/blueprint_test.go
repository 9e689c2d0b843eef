package blueprint

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

func TestGenerateBuildsTreeForIndexedFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "widget.go")
	require.NoError(t, os.WriteFile(file, []byte("package widget\n\nfunc New() {}\n"), 0o644))

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "New", Type: model.SymbolFunction, FilePath: file, StartLine: 3, EndLine: 3, StartByte: 16, EndByte: 31},
		})
	}))

	gen := New(s, nil, nil, config.Default(root).Blueprint, root)
	bp, err := gen.Generate(ctx, Request{FilePath: file})
	require.NoError(t, err)
	require.Len(t, bp.Nodes, 1)
	require.Equal(t, "New", bp.Nodes[0].Symbol.Name)
	require.False(t, bp.Cached)
}

func TestGenerateUnknownFileReturnsEmptyBlueprint(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	gen := New(s, nil, nil, config.Default(t.TempDir()).Blueprint, t.TempDir())
	bp, err := gen.Generate(context.Background(), Request{FilePath: "/does/not/exist.go"})
	require.NoError(t, err)
	require.Empty(t, bp.Nodes)
}

func TestGenerateAppliesComplexityOverlayWhenRequested(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "widget.go")
	src := "package widget\n\nfunc New() {\n\tif true {\n\t\treturn\n\t}\n}\n"
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "New", Type: model.SymbolFunction, FilePath: file, StartLine: 3, EndLine: 7, StartByte: 16, EndByte: len(src)},
		})
	}))

	gen := New(s, nil, nil, config.Default(root).Blueprint, root)
	bp, err := gen.Generate(ctx, Request{FilePath: file, ShowMeta: true})
	require.NoError(t, err)
	require.NotNil(t, bp.Nodes[0].Overlay.Complexity)
}
