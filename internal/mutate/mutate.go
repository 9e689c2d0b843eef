package mutate

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/store"
)

// runVerify shells out to verifyCommand (e.g. "pytest", "go test ./...")
// after a batch's writes land but before its undo transaction is
// recorded, matching facade.py's batch_edit verify_command step. A
// non-zero exit triggers the same rollback path as an operation failure.
func runVerify(ctx context.Context, verifyCommand string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", verifyCommand)
	return cmd.Run()
}

// Mutator wires locate -> guard -> format -> edit -> validate ->
// ledger -> undo into the single pipeline spec.md §4.9 describes, one
// call per operation. Grounded on
// original_source/src/cerberus/mutation/facade.py's MutationFacade,
// generalized from its per-operation methods (edit_symbol/
// insert_symbol/delete_symbol/batch_edit) into the same shape here.
type Mutator struct {
	Store    *store.Store
	Registry *parser.Registry
	Editor   *Editor
	Undo     *UndoStack
	Ledger   *Ledger
	Log      *zap.Logger

	// StabilityOf resolves a symbol's blueprint stability label
	// ("🔴 HIGH RISK", etc.) for the guard. Nil means "unknown" —
	// CheckReferences then falls back to the external-reference check
	// alone. Kept as an injected function rather than an
	// internal/blueprint import to avoid a package cycle.
	StabilityOf func(symbolName string) string
}

// New builds a Mutator from the store, a parser registry, and the
// project's resolved backup/undo directories. log may be nil.
func New(s *store.Store, reg *parser.Registry, backupDir, undoDir string, log *zap.Logger) *Mutator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mutator{
		Store:    s,
		Registry: reg,
		Editor:   NewEditor(backupDir),
		Undo:     NewUndoStack(undoDir),
		Ledger:   NewLedger(s),
		Log:      log,
	}
}

// Options controls one mutation call across Edit/Insert/Delete.
type Options struct {
	SymbolType  model.SymbolType
	ParentClass string
	Force       bool
	DryRun      bool
	AutoFormat  bool
	Formatter   string // external formatter override; "" uses the language default
}

// Result is what every operation (and every item in a BatchResult)
// returns to the CLI/RPC layer.
type Result struct {
	Success         bool
	Operation       string
	FilePath        string
	SymbolName      string
	LinesChanged    int
	LinesTotal      int
	WriteEfficiency float64
	TokensSaved     int
	ValidationPassed bool
	Errors          []string
	Warnings        []string
	BackupPath      string
	Diff            string
}

func failure(operation, filePath, symbolName string, errs ...string) Result {
	return Result{Success: false, Operation: operation, FilePath: filePath, SymbolName: symbolName, Errors: errs}
}

// EditSymbol replaces symbolName's body with newCode, per §4.9's full
// numbered pipeline.
func (m *Mutator) EditSymbol(ctx context.Context, filePath, symbolName, newCode string, opts Options) Result {
	loc, err := Locate(ctx, m.Store, m.Registry, symbolName, opts.SymbolType, opts.ParentClass)
	if err != nil {
		return failure("edit", filePath, symbolName, err.Error())
	}

	if !opts.DryRun {
		level := ""
		if m.StabilityOf != nil {
			level = m.StabilityOf(symbolName)
		}
		if err := CheckReferences(ctx, m.Store, symbolName, loc.FilePath, opts.Force, level); err != nil {
			return failure("edit", loc.FilePath, symbolName, err.Error())
		}
	}

	if opts.AutoFormat {
		indentUnit := DetectIndent(loc.Source)
		newCode = ReindentBlock(newCode, loc.IndentLevel, indentUnit)
	}

	if opts.DryRun {
		return m.dryRunResult("edit", loc.FilePath, symbolName, newCode)
	}

	edit, err := m.Editor.Replace(ctx, loc, newCode)
	if err != nil {
		return failure("edit", loc.FilePath, symbolName, err.Error())
	}
	return m.finish(ctx, "edit", symbolName, opts, edit)
}

// InsertSymbol inserts newCode at the given byte offset (typically just
// before/after another located symbol — the caller resolves that offset
// via Locate and loc.StartByte/EndByte).
func (m *Mutator) InsertSymbol(ctx context.Context, filePath string, byteOffset int, newCode string, opts Options) Result {
	if opts.AutoFormat {
		source, err := os.ReadFile(filePath)
		if err == nil {
			newCode = ReindentBlock(newCode, 0, DetectIndent(source))
		}
	}

	if opts.DryRun {
		return m.dryRunResult("insert", filePath, "", newCode)
	}

	edit, err := m.Editor.Insert(ctx, filePath, byteOffset, newCode)
	if err != nil {
		return failure("insert", filePath, "", err.Error())
	}
	return m.finish(ctx, "insert", "", opts, edit)
}

// DeleteSymbol removes symbolName from its file entirely.
func (m *Mutator) DeleteSymbol(ctx context.Context, filePath, symbolName string, opts Options) Result {
	loc, err := Locate(ctx, m.Store, m.Registry, symbolName, opts.SymbolType, opts.ParentClass)
	if err != nil {
		return failure("delete", filePath, symbolName, err.Error())
	}

	if !opts.DryRun {
		level := ""
		if m.StabilityOf != nil {
			level = m.StabilityOf(symbolName)
		}
		if err := CheckReferences(ctx, m.Store, symbolName, loc.FilePath, opts.Force, level); err != nil {
			return failure("delete", loc.FilePath, symbolName, err.Error())
		}
	}

	if opts.DryRun {
		return m.dryRunResult("delete", loc.FilePath, symbolName, "")
	}

	edit, err := m.Editor.Delete(ctx, loc)
	if err != nil {
		return failure("delete", loc.FilePath, symbolName, err.Error())
	}
	return m.finish(ctx, "delete", symbolName, opts, edit)
}

// dryRunResult implements §4.9's preview mode: validate the candidate
// content in memory, never touching disk or the undo/ledger state.
func (m *Mutator) dryRunResult(operation, filePath, symbolName, candidate string) Result {
	language := DetectLanguage(filePath)
	_ = language
	v := Validate(m.Registry, filePath, []byte(candidate))
	return Result{
		Success:          v.OK,
		Operation:        operation,
		FilePath:         filePath,
		SymbolName:       symbolName,
		ValidationPassed: v.OK,
		Errors:           v.Errors,
		Warnings:         v.Warnings,
	}
}

// finish runs the post-write half of the pipeline shared by every
// operation: validate, roll back the write on failure, otherwise run the
// external formatter, record the ledger row, a single-file undo
// transaction (recordSingleUndo) and the action log entry, and return the
// diff to the caller. BatchEdit records one further transaction spanning
// every file the batch touched.
func (m *Mutator) finish(ctx context.Context, operation, symbolName string, opts Options, edit EditResult) Result {
	v := Validate(m.Registry, edit.FilePath, edit.ModifiedContent)
	if !v.OK {
		_ = os.WriteFile(edit.FilePath, edit.OriginalContent, 0o644)
		m.Log.Error("mutation failed syntax validation, restored backup",
			zap.String("file", edit.FilePath), zap.Strings("errors", v.Errors))
		return failure(operation, edit.FilePath, symbolName, cerrors.NewValidationError(edit.FilePath, v.Errors).Error())
	}

	if opts.Formatter != "" || DetectLanguage(edit.FilePath) != "" {
		if err := FormatFile(ctx, edit.FilePath, DetectLanguage(edit.FilePath), opts.Formatter); err != nil {
			m.Log.Debug("external formatter failed, continuing with unformatted write", zap.Error(err))
		}
	}

	metric, err := m.Ledger.RecordMutation(ctx, operation, edit.FilePath, edit.LinesChanged, edit.LinesTotal)
	if err != nil {
		m.Log.Warn("failed to record ledger entry", zap.Error(err))
	}

	if err := m.recordSingleUndo(operation, edit); err != nil {
		m.Log.Warn("failed to record undo transaction", zap.Error(err))
	}

	_ = m.Ledger.RecordAction(ctx, operation, symbolName, edit.FilePath, "success")

	return Result{
		Success:          true,
		Operation:        operation,
		FilePath:         edit.FilePath,
		SymbolName:       symbolName,
		LinesChanged:     edit.LinesChanged,
		LinesTotal:       edit.LinesTotal,
		WriteEfficiency:  metric.WriteEfficiency,
		TokensSaved:      metric.TokensSaved,
		ValidationPassed: true,
		BackupPath:       edit.BackupPath,
		Diff:             edit.Diff,
	}
}

func (m *Mutator) recordSingleUndo(operation string, edit EditResult) error {
	_, err := m.Undo.RecordTransaction(operation, []string{edit.FilePath}, []ReversePatch{{
		FilePath:        edit.FilePath,
		OriginalContent: string(edit.OriginalContent),
	}}, nil)
	return err
}

// Operation is one item of a batch_edit request (§4.9's batch mode).
type Operation struct {
	Kind        string // "edit", "insert", "delete"
	FilePath    string
	SymbolName  string
	NewCode     string
	ByteOffset  int
	Options     Options
}

// BatchResult is batch_edit's return value: every per-operation Result
// plus whether the whole batch rolled back.
type BatchResult struct {
	Success             bool
	OperationsCompleted int
	OperationsTotal     int
	Results             []Result
	Errors              []string
	RolledBack          bool
	TransactionID       string
}

// BatchEdit runs every operation sequentially, grouped by file as the
// original does, and rolls every file back to its pre-batch content if
// any operation fails or verifyCommand exits non-zero. Grounded on
// facade.py's batch_edit: capture every affected file's original
// content up front, so rollback restores the state as of the start of
// the batch rather than chaining each operation's own backup.
func (m *Mutator) BatchEdit(ctx context.Context, ops []Operation, verifyCommand string, preview bool) BatchResult {
	affected := map[string]string{}
	for _, op := range ops {
		if _, seen := affected[op.FilePath]; seen {
			continue
		}
		content, err := os.ReadFile(op.FilePath)
		if err != nil {
			continue
		}
		affected[op.FilePath] = string(content)
	}

	var fileOrder []string
	byFile := map[string][]Operation{}
	for _, op := range ops {
		if _, seen := byFile[op.FilePath]; !seen {
			fileOrder = append(fileOrder, op.FilePath)
		}
		byFile[op.FilePath] = append(byFile[op.FilePath], op)
	}
	grouped := make([]Operation, 0, len(ops))
	for _, path := range fileOrder {
		grouped = append(grouped, byFile[path]...)
	}

	var results []Result
	completed := 0
	var allErrors []string

	for _, op := range grouped {
		op.Options.DryRun = preview
		var res Result
		switch op.Kind {
		case "edit":
			res = m.EditSymbol(ctx, op.FilePath, op.SymbolName, op.NewCode, op.Options)
		case "insert":
			res = m.InsertSymbol(ctx, op.FilePath, op.ByteOffset, op.NewCode, op.Options)
		case "delete":
			res = m.DeleteSymbol(ctx, op.FilePath, op.SymbolName, op.Options)
		default:
			res = failure(op.Kind, op.FilePath, op.SymbolName, fmt.Sprintf("unknown operation: %s", op.Kind))
		}
		results = append(results, res)

		if !res.Success {
			allErrors = append(allErrors, fmt.Sprintf("operation failed: %s on %s in %s", op.Kind, op.SymbolName, op.FilePath))
			return m.rollbackBatch(affected, results, completed, len(ops), allErrors)
		}
		completed++
	}

	if !preview && verifyCommand != "" {
		if err := runVerify(ctx, verifyCommand); err != nil {
			allErrors = append(allErrors, fmt.Sprintf("verification failed: %v", err))
			return m.rollbackBatch(affected, results, completed, len(ops), allErrors)
		}
	}

	var txnID string
	if !preview && len(affected) > 0 {
		files := make([]string, 0, len(affected))
		patches := make([]ReversePatch, 0, len(affected))
		for path, content := range affected {
			files = append(files, path)
			patches = append(patches, ReversePatch{FilePath: path, OriginalContent: content})
		}
		id, err := m.Undo.RecordTransaction("batch", files, patches, map[string]string{
			"operations_count": fmt.Sprintf("%d", len(ops)),
			"verify_command":    verifyCommand,
		})
		if err != nil {
			m.Log.Warn("failed to record batch undo transaction", zap.Error(err))
		}
		txnID = id
	}

	return BatchResult{
		Success:             true,
		OperationsCompleted: completed,
		OperationsTotal:     len(ops),
		Results:             results,
		TransactionID:       txnID,
	}
}

func (m *Mutator) rollbackBatch(affected map[string]string, results []Result, completed, total int, errs []string) BatchResult {
	rolledBack := true
	for path, content := range affected {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			rolledBack = false
			m.Log.Error("batch rollback failed", zap.String("file", path), zap.Error(err))
		}
	}
	return BatchResult{
		Success:             false,
		OperationsCompleted: completed,
		OperationsTotal:     total,
		Results:             results,
		Errors:              errs,
		RolledBack:          rolledBack,
	}
}
