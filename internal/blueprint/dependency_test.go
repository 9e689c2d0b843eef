package blueprint

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

func openDependencyTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDependencyOverlayClassifiesInternalExternalStdlib(t *testing.T) {
	s := openDependencyTestStore(t)
	ctx := context.Background()
	projectRoot := "/repo"

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteSymbolReferencesBatch(tx, []model.SymbolReference{
			{SourceSymbol: "Caller", TargetSymbol: "Helper", TargetFile: "/repo/internal/util/helper.go", Confidence: 0.9, ReferenceType: model.RefMethodCall},
			{SourceSymbol: "Caller", TargetSymbol: "Third", TargetFile: "/repo/vendor/pkg/third.go", Confidence: 0.8, ReferenceType: model.RefMethodCall},
			{SourceSymbol: "Caller", TargetSymbol: "fmt.Println", TargetFile: "", Confidence: 0.5, ReferenceType: model.RefMethodCall},
		})
	}))

	overlay := newDependencyOverlay(s, projectRoot)
	deps, err := overlay.Get(ctx, model.Symbol{Name: "Caller"})
	require.NoError(t, err)
	require.Len(t, deps, 3)

	// Highest confidence first.
	require.Equal(t, "Helper", deps[0].Target)
	require.Equal(t, "internal", deps[0].DependencyType)

	byTarget := make(map[string]DependencyInfo, len(deps))
	for _, d := range deps {
		byTarget[d.Target] = d
	}
	require.Equal(t, "external", byTarget["Third"].DependencyType)
	require.Equal(t, "stdlib", byTarget["fmt.Println"].DependencyType)
}

func TestDependencyOverlayNoReferencesReturnsNil(t *testing.T) {
	s := openDependencyTestStore(t)
	overlay := newDependencyOverlay(s, "/repo")
	deps, err := overlay.Get(context.Background(), model.Symbol{Name: "Lonely"})
	require.NoError(t, err)
	require.Nil(t, deps)
}
