package resolve

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveImportsMatchesDottedModuleToFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteFile(tx, model.File{Path: "pkg/widget.go", AbsPath: "/r/pkg/widget.go"}); err != nil {
			return err
		}
		if err := store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Widget", Type: model.SymbolStruct, FilePath: "pkg/widget.go", StartLine: 1},
		}); err != nil {
			return err
		}
		return store.WriteImportLinksBatch(tx, []model.ImportLink{
			{ImporterFile: "main.go", ImportedModule: "pkg/widget", ImportedSymbols: []string{"Widget"}, ImportLine: 3},
		})
	}))

	require.NoError(t, ResolveImports(ctx, s))

	links, err := s.AllImportLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "pkg/widget.go", links[0].DefinitionFile)
	require.Equal(t, "Widget", links[0].DefinitionSymbol)
}

func TestResolveImportsSingleCandidateHeuristic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "UniqueHelper", Type: model.SymbolFunction, FilePath: "util/helper.go", StartLine: 1},
		}); err != nil {
			return err
		}
		return store.WriteImportLinksBatch(tx, []model.ImportLink{
			{ImporterFile: "main.go", ImportedModule: "some/unrelated/path", ImportedSymbols: []string{"UniqueHelper"}, ImportLine: 1},
		})
	}))

	require.NoError(t, ResolveImports(ctx, s))

	links, err := s.AllImportLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, "util/helper.go", links[0].DefinitionFile)
	require.Equal(t, "UniqueHelper", links[0].DefinitionSymbol)
}

func TestResolveTypesAndMethodsResolvesAnnotatedReceiver(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Greeter", Type: model.SymbolClass, FilePath: "greeter.py", StartLine: 1},
			{Name: "greet", Type: model.SymbolMethod, FilePath: "greeter.py", StartLine: 2, ParentClass: "Greeter"},
		}); err != nil {
			return err
		}
		if err := store.WriteTypeInfosBatch(tx, []model.TypeInfo{
			{Name: "g", TypeAnnotation: "Greeter", FilePath: "main.py", Line: 5},
		}); err != nil {
			return err
		}
		return store.WriteMethodCallsBatch(tx, []model.MethodCall{
			{CallerFile: "main.py", Line: 6, Receiver: "g", Method: "greet"},
		})
	}))

	refs, err := ResolveTypesAndMethods(ctx, s)
	require.NoError(t, err)

	var found bool
	for _, r := range refs {
		if r.ReferenceType == model.RefMethodCall && r.TargetSymbol == "greet" {
			found = true
			require.Equal(t, model.ConfidenceTypeAnnotation, r.Confidence)
		}
	}
	require.True(t, found)
}

func TestResolveInheritanceEmitsInheritsReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Animal", Type: model.SymbolClass, FilePath: "animal.py", StartLine: 1},
			{Name: "Dog", Type: model.SymbolClass, FilePath: "dog.py", StartLine: 1},
		}); err != nil {
			return err
		}
		return store.WriteMethodCallsBatch(tx, []model.MethodCall{
			{CallerFile: "dog.py", Line: 1, Receiver: "Dog", Method: "__bases__:Animal"},
		})
	}))

	refs, err := ResolveInheritance(ctx, s)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, model.RefInherits, refs[0].ReferenceType)
	require.Equal(t, "Animal", refs[0].TargetSymbol)
	require.Equal(t, model.ConfidenceInheritSamePackage, refs[0].Confidence)
}

func TestMROFollowsInheritsChainAndGuardsCycles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSymbolReferences(ctx, []model.SymbolReference{
		{SourceSymbol: "C", ReferenceType: model.RefInherits, TargetSymbol: "B", Confidence: 1},
		{SourceSymbol: "B", ReferenceType: model.RefInherits, TargetSymbol: "A", Confidence: 1},
		{SourceSymbol: "A", ReferenceType: model.RefInherits, TargetSymbol: "C", Confidence: 1}, // cycle
	}))

	chain, err := MRO(ctx, s, "C", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "B", "A"}, chain)
}

func TestRunAllEndToEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteFile(tx, model.File{Path: "a.go", AbsPath: "/r/a.go"}); err != nil {
			return err
		}
		return store.WriteSymbolsBatch(tx, []model.Symbol{
			{Name: "Foo", Type: model.SymbolFunction, FilePath: "a.go", StartLine: 1},
		})
	}))

	require.NoError(t, RunAll(ctx, s))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.FileCount)
}
