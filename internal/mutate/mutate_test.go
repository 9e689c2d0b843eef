package mutate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeSymbol(t *testing.T, s *store.Store, sym model.Symbol) {
	t.Helper()
	require.NoError(t, s.Transaction(context.Background(), func(tx *sql.Tx) error {
		return store.WriteSymbolsBatch(tx, []model.Symbol{sym})
	}))
}

func TestLocateMatchesWithinLineTolerance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"), 0o644))

	s := newTestStore(t)
	writeSymbol(t, s, model.Symbol{Name: "Greet", Type: model.SymbolFunction, FilePath: path, StartLine: 4}) // stale by 1

	loc, err := Locate(context.Background(), s, parser.NewRegistry(), "Greet", model.SymbolFunction, "")
	require.NoError(t, err)
	require.Equal(t, "Greet", loc.SymbolName)
	require.Equal(t, path, loc.FilePath)
	require.Greater(t, loc.EndByte, loc.StartByte)
}

func TestLocateFailsOutsideLineTolerance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"), 0o644))

	s := newTestStore(t)
	writeSymbol(t, s, model.Symbol{Name: "Greet", Type: model.SymbolFunction, FilePath: path, StartLine: 40})

	_, err := Locate(context.Background(), s, parser.NewRegistry(), "Greet", model.SymbolFunction, "")
	require.Error(t, err)
}

func TestCheckReferencesAllowsForce(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Transaction(context.Background(), func(tx *sql.Tx) error {
		return store.WriteSymbolReferencesBatch(tx, []model.SymbolReference{
			{SourceFile: "other.go", SourceSymbol: "Caller", TargetSymbol: "Greet", ReferenceType: model.RefMethodCall, Confidence: 1},
		})
	}))

	err := CheckReferences(context.Background(), s, "Greet", "a.go", true, "")
	require.NoError(t, err)
}

func TestCheckReferencesBlocksExternalReferences(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Transaction(context.Background(), func(tx *sql.Tx) error {
		return store.WriteSymbolReferencesBatch(tx, []model.SymbolReference{
			{SourceFile: "other.go", SourceSymbol: "Caller", TargetSymbol: "Greet", ReferenceType: model.RefMethodCall, Confidence: 1},
		})
	}))

	err := CheckReferences(context.Background(), s, "Greet", "a.go", false, "")
	require.Error(t, err)
	var guardErr *cerrors.GuardError
	require.ErrorAs(t, err, &guardErr)
	require.False(t, guardErr.HighRisk)
}

func TestCheckReferencesIgnoresSameFileReferences(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Transaction(context.Background(), func(tx *sql.Tx) error {
		return store.WriteSymbolReferencesBatch(tx, []model.SymbolReference{
			{SourceFile: "a.go", SourceSymbol: "Caller", TargetSymbol: "Greet", ReferenceType: model.RefMethodCall, Confidence: 1},
		})
	}))

	err := CheckReferences(context.Background(), s, "Greet", "a.go", false, "")
	require.NoError(t, err)
}

func TestCheckReferencesBlocksHighRiskRegardlessOfReferences(t *testing.T) {
	s := newTestStore(t)
	err := CheckReferences(context.Background(), s, "Greet", "a.go", false, highRiskLevel)
	require.Error(t, err)
	var guardErr *cerrors.GuardError
	require.ErrorAs(t, err, &guardErr)
	require.True(t, guardErr.HighRisk)
}

func TestEditorReplaceWritesBackupAndAtomicContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	original := "package a\n\nfunc Old() int {\n\treturn 1\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	backupDir := filepath.Join(dir, "backups")
	e := NewEditor(backupDir)

	loc := Location{FilePath: path, SymbolName: "Old", StartByte: 11, EndByte: len(original) - 1}
	result, err := e.Replace(context.Background(), loc, "func New() int {\n\treturn 2\n}")
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupPath)
	require.FileExists(t, result.BackupPath)

	backupContent, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	require.Equal(t, original, string(backupContent))

	finalContent, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(finalContent), "func New()")
	require.NotContains(t, string(finalContent), "func Old()")
}

func TestEditorReplaceDetectsOptimisticLockConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	e := NewEditor(filepath.Join(dir, "backups"))
	state, err := getFileState(path)
	require.NoError(t, err)

	// Simulate an external modification between read and write by
	// sleeping past filesystem mtime resolution before rewriting.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc X() {}\n"), 0o644))

	require.Error(t, checkUnchanged(path, state))
}

func TestUndoStackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("modified"), 0o644))

	u := NewUndoStack(filepath.Join(dir, "undo"))
	id, err := u.RecordTransaction("edit", []string{target}, []ReversePatch{
		{FilePath: target, OriginalContent: "original"},
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	applied, errs := u.ApplyReversePatches(id)
	require.Empty(t, errs)
	require.Equal(t, []string{target}, applied)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "original", string(content))
}

func TestUndoStackClearHistoryKeepsRecent(t *testing.T) {
	dir := t.TempDir()
	u := NewUndoStack(filepath.Join(dir, "undo"))
	for i := 0; i < 3; i++ {
		_, err := u.RecordTransaction("edit", nil, []ReversePatch{{FilePath: "x", OriginalContent: string(rune('a' + i))}}, nil)
		require.NoError(t, err)
	}
	history, err := u.GetHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	deleted, err := u.ClearHistory(1)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	remaining, err := u.GetHistory(0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestDetectIndentPrefersFourSpaces(t *testing.T) {
	source := []byte("func A() {\n    return\n}\n")
	require.Equal(t, "    ", DetectIndent(source))
}

func TestReindentBlockShiftsToTargetLevel(t *testing.T) {
	code := "if true {\n    return\n}"
	out := ReindentBlock(code, 1, "    ")
	require.Equal(t, "    if true {\n        return\n    }", out)
}

func TestGenerateUnifiedDiffKeepsAllDeletions(t *testing.T) {
	original := []byte("a\nb\nc\n")
	modified := []byte("a\nc\n")
	diff := GenerateUnifiedDiff("f.go", original, modified, 100)
	require.Contains(t, diff, "-b")
}

func TestLedgerRecordMutationComputesEfficiency(t *testing.T) {
	s := newTestStore(t)
	l := NewLedger(s)
	metric, err := l.RecordMutation(context.Background(), "edit", "a.go", 2, 10)
	require.NoError(t, err)
	require.InDelta(t, 0.2, metric.WriteEfficiency, 0.0001)
	require.Equal(t, 32, metric.TokensSaved)

	stats, err := l.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalOperations)
}
