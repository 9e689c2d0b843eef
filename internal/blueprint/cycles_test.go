package blueprint

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

func TestCycleDetectorFindsImportCycle(t *testing.T) {
	s := openDependencyTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteImportLinksBatch(tx, []model.ImportLink{
			{ImporterFile: "a.go", ImportedModule: "b", ImportLine: 1, DefinitionFile: "b.go"},
			{ImporterFile: "b.go", ImportedModule: "a", ImportLine: 1, DefinitionFile: "a.go"},
		})
	}))

	detector := newCycleDetector(s)
	cycles, err := detector.Detect(ctx, "a.go")
	require.NoError(t, err)

	var found bool
	for _, c := range cycles {
		if c.Kind == cycleImport {
			found = true
		}
	}
	require.True(t, found)
}

func TestCycleDetectorNoFalsePositiveOnAcyclicGraph(t *testing.T) {
	s := openDependencyTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteImportLinksBatch(tx, []model.ImportLink{
			{ImporterFile: "a.go", ImportedModule: "b", ImportLine: 1, DefinitionFile: "b.go"},
		})
	}))

	detector := newCycleDetector(s)
	cycles, err := detector.Detect(ctx, "a.go")
	require.NoError(t, err)
	require.Empty(t, cycles)
}

func TestCycleDetectorFindsCallCycle(t *testing.T) {
	s := openDependencyTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		return store.WriteSymbolReferencesBatch(tx, []model.SymbolReference{
			{SourceSymbol: "A", TargetSymbol: "B", ReferenceType: model.RefMethodCall},
			{SourceSymbol: "B", TargetSymbol: "A", ReferenceType: model.RefMethodCall},
		})
	}))

	detector := newCycleDetector(s)
	cycles, err := detector.Detect(ctx, "a.go")
	require.NoError(t, err)

	var found bool
	for _, c := range cycles {
		if c.Kind == cycleCall {
			found = true
		}
	}
	require.True(t, found)
}
