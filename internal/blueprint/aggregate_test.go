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

func TestGenerateAggregatedBuildsOneNodePerFile(t *testing.T) {
	root := t.TempDir()
	fileA := filepath.Join(root, "a.go")
	fileB := filepath.Join(root, "b.go")
	require.NoError(t, os.WriteFile(fileA, []byte("package p\n"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("package p\n"), 0o644))

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteFile(tx, model.File{Path: fileA, AbsPath: fileA}); err != nil {
			return err
		}
		if err := store.WriteFile(tx, model.File{Path: fileB, AbsPath: fileB}); err != nil {
			return err
		}
		if err := store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "A", Type: model.SymbolFunction, FilePath: fileA, StartLine: 1, EndLine: 1},
		}); err != nil {
			return err
		}
		return store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "B", Type: model.SymbolFunction, FilePath: fileB, StartLine: 1, EndLine: 1},
		})
	}))

	gen := New(s, nil, nil, config.Default(root).Blueprint, root)
	bp, err := gen.Generate(ctx, Request{FilePath: root, Aggregate: true})
	require.NoError(t, err)
	require.Len(t, bp.Nodes, 2)
	require.Equal(t, 2, bp.TotalFiles)
}
