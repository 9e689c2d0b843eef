package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorStoreAddAndSearch(t *testing.T) {
	dir := t.TempDir()
	vs, err := OpenVectorStore(dir, 3)
	require.NoError(t, err)

	ids, err := vs.AddVectorsBatch([]int64{10, 20, 30}, [][]float32{
		Normalize([]float32{1, 0, 0}),
		Normalize([]float32{0, 1, 0}),
		Normalize([]float32{0.9, 0.1, 0}),
	})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2}, ids)

	matches, err := vs.Search(Normalize([]float32{1, 0, 0}), 2, 0.0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, int64(10), matches[0].SymbolID)
}

func TestVectorStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	vs, err := OpenVectorStore(dir, 2)
	require.NoError(t, err)
	_, err = vs.AddVectorsBatch([]int64{1}, [][]float32{Normalize([]float32{1, 1})})
	require.NoError(t, err)

	reopened, err := OpenVectorStore(dir, 2)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
}

func TestVectorStoreMinSimilarityFilters(t *testing.T) {
	dir := t.TempDir()
	vs, err := OpenVectorStore(dir, 2)
	require.NoError(t, err)
	_, err = vs.AddVectorsBatch([]int64{1, 2}, [][]float32{
		Normalize([]float32{1, 0}),
		Normalize([]float32{-1, 0}),
	})
	require.NoError(t, err)

	matches, err := vs.Search(Normalize([]float32{1, 0}), 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, int64(1), matches[0].SymbolID)
}

func TestVectorStoreRebuild(t *testing.T) {
	dir := t.TempDir()
	vs, err := OpenVectorStore(dir, 2)
	require.NoError(t, err)
	_, err = vs.AddVectorsBatch([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	require.Equal(t, 2, vs.Len())

	require.NoError(t, vs.Rebuild([]int64{5}, [][]float32{{1, 1}}))
	require.Equal(t, 1, vs.Len())
}
