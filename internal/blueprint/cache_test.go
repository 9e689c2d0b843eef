package blueprint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheRoundTripsByFlags(t *testing.T) {
	s := openDependencyTestStore(t)
	cache := NewCache(s, time.Minute)

	file := filepath.Join(t.TempDir(), "sample.go")
	require.NoError(t, os.WriteFile(file, []byte("package sample\n"), 0o644))

	flags := cacheFlags{Deps: true}
	bp := &Blueprint{FilePath: file, TotalSymbols: 3}

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, file, flags, bp))

	got, ok, err := cache.Get(ctx, file, flags)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got.TotalSymbols)
	require.True(t, got.Cached)

	_, ok, err = cache.Get(ctx, file, cacheFlags{Deps: false})
	require.NoError(t, err)
	require.False(t, ok, "different flags must miss")

	stats := cache.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	s := openDependencyTestStore(t)
	cache := NewCache(s, -time.Minute)

	file := filepath.Join(t.TempDir(), "sample.go")
	require.NoError(t, os.WriteFile(file, []byte("package sample\n"), 0o644))

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, file, cacheFlags{}, &Blueprint{FilePath: file}))

	_, ok, err := cache.Get(ctx, file, cacheFlags{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheInvalidateDropsAllFlagVariants(t *testing.T) {
	s := openDependencyTestStore(t)
	cache := NewCache(s, time.Minute)

	file := filepath.Join(t.TempDir(), "sample.go")
	require.NoError(t, os.WriteFile(file, []byte("package sample\n"), 0o644))

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, file, cacheFlags{Deps: true}, &Blueprint{FilePath: file}))
	require.NoError(t, cache.Invalidate(ctx, file))

	_, ok, err := cache.Get(ctx, file, cacheFlags{Deps: true})
	require.NoError(t, err)
	require.False(t, ok)
}
