package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteFileAndSymbolsTransactional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := WriteFile(tx, model.File{Path: "a.go", AbsPath: "/repo/a.go", Size: 10, LastModified: time.Now()}); err != nil {
			return err
		}
		return WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Foo", Type: model.SymbolFunction, FilePath: "a.go", StartLine: 1, EndLine: 3, StartByte: 0, EndByte: 20, Signature: "Foo()"},
		})
	})
	require.NoError(t, err)

	symbols, err := s.QuerySymbolsByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	require.Equal(t, "Foo", symbols[0].Name)
}

func TestFindSymbolNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindSymbol(context.Background(), "Missing", "", "")
	require.Error(t, err)
}

func TestDeleteFileRowsRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := WriteFile(tx, model.File{Path: "b.go", AbsPath: "/repo/b.go", Size: 5, LastModified: time.Now()}); err != nil {
			return err
		}
		return WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Bar", Type: model.SymbolFunction, FilePath: "b.go", StartLine: 1, EndLine: 2},
		})
	}))

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return DeleteFileRows(tx, "b.go")
	}))

	symbols, err := s.QuerySymbolsByFile(ctx, "b.go")
	require.NoError(t, err)
	require.Empty(t, symbols)
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetMetadata(ctx, "git_commit")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetMetadata(ctx, "git_commit", "abc123"))
	value, ok, err := s.GetMetadata(ctx, "git_commit")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", value)
}

func TestSearchSymbolNamesPrefixMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "ParseConfig", Type: model.SymbolFunction, FilePath: "config.go", StartLine: 10, Signature: "ParseConfig(path string)"},
			{Name: "WriteConfig", Type: model.SymbolFunction, FilePath: "config.go", StartLine: 20, Signature: "WriteConfig(cfg Config)"},
		})
	}))

	hits, err := s.SearchSymbolNames(ctx, "Parse", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "ParseConfig", hits[0].Name)
}

func TestStatsCountsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := WriteFile(tx, model.File{Path: "c.go", AbsPath: "/repo/c.go", Size: 1, LastModified: time.Now()}); err != nil {
			return err
		}
		return WriteSymbolsBatch(tx, []model.Symbol{{Name: "X", Type: model.SymbolFunction, FilePath: "c.go"}})
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.FileCount)
	require.Equal(t, 1, stats.SymbolCount)
}
