package store

import (
	"context"
	"database/sql"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// The queries in this file back the resolution pipeline (internal/resolve,
// C5), which operates over the whole store rather than one file at a time.

// AllImportLinks returns every import_links row, resolved or not; the
// import resolver re-derives definition_file/definition_symbol for all of
// them on each run so reruns after incremental updates stay correct.
func (s *Store) AllImportLinks(ctx context.Context) ([]model.ImportLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT importer_file, imported_module, imported_symbols, import_line,
		       COALESCE(definition_file, ''), COALESCE(definition_symbol, '')
		FROM import_links
	`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_import_links", err)
	}
	defer rows.Close()

	var out []model.ImportLink
	for rows.Next() {
		var l model.ImportLink
		var symbols string
		if err := rows.Scan(&l.ImporterFile, &l.ImportedModule, &symbols, &l.ImportLine, &l.DefinitionFile, &l.DefinitionSymbol); err != nil {
			return nil, cerrors.NewStoreError("scan_import_link", err)
		}
		l.ImportedSymbols = splitParams(symbols)
		out = append(out, l)
	}
	return out, rows.Err()
}

// AllSymbolReferences returns every resolved symbol_references row,
// backing the blueprint cycle detector's whole-codebase call/inheritance
// graph construction (it cannot scope by file the way QueryReferencesFrom
// does, since a cycle may span files).
func (s *Store) AllSymbolReferences(ctx context.Context) ([]model.SymbolReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_file, source_line, source_symbol, reference_type,
		       COALESCE(target_file, ''), target_symbol, COALESCE(target_type, ''), confidence, COALESCE(resolution_method, '')
		FROM symbol_references
	`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_symbol_references", err)
	}
	defer rows.Close()
	return scanReferences(rows)
}

// UpdateImportLinkDefinition fills in the resolved target for one import,
// keyed by the importer file + the module string the parser captured.
func (s *Store) UpdateImportLinkDefinition(ctx context.Context, importerFile, importedModule, defFile, defSymbol string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_links SET definition_file = ?, definition_symbol = ?
		WHERE importer_file = ? AND imported_module = ?
	`, nullableString(defFile), nullableString(defSymbol), importerFile, importedModule)
	if err != nil {
		return cerrors.NewStoreError("update_import_link_definition", err)
	}
	return nil
}

// AllMethodCalls returns every method_calls row for the type/method
// resolution pass.
func (s *Store) AllMethodCalls(ctx context.Context) ([]model.MethodCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT caller_file, line, receiver, method, COALESCE(receiver_type, '') FROM method_calls
	`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_method_calls", err)
	}
	defer rows.Close()

	var out []model.MethodCall
	for rows.Next() {
		var mc model.MethodCall
		if err := rows.Scan(&mc.CallerFile, &mc.Line, &mc.Receiver, &mc.Method, &mc.ReceiverType); err != nil {
			return nil, cerrors.NewStoreError("scan_method_call", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// AllTypeInfos returns every type_infos row for the type tracker pass.
func (s *Store) AllTypeInfos(ctx context.Context) ([]model.TypeInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, COALESCE(type_annotation, ''), COALESCE(inferred_type, ''), file_path, line FROM type_infos
	`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_type_infos", err)
	}
	defer rows.Close()

	var out []model.TypeInfo
	for rows.Next() {
		var ti model.TypeInfo
		if err := rows.Scan(&ti.Name, &ti.TypeAnnotation, &ti.InferredType, &ti.FilePath, &ti.Line); err != nil {
			return nil, cerrors.NewStoreError("scan_type_info", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

// SymbolsByName returns every symbol sharing name, across all files and
// types — the candidate set the import/type resolvers disambiguate from.
func (s *Store) SymbolsByName(ctx context.Context, name string) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols WHERE name = ? ORDER BY file_path, start_line
	`, name)
	if err != nil {
		return nil, cerrors.NewStoreError("symbols_by_name", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// SymbolsByParentClass returns every member (method/field) declared with
// parent_class = class, used to resolve a method_call once its receiver's
// class is known.
func (s *Store) SymbolsByParentClass(ctx context.Context, class string) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols WHERE parent_class = ? ORDER BY file_path, start_line
	`, class)
	if err != nil {
		return nil, cerrors.NewStoreError("symbols_by_parent_class", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// AllFiles returns every indexed file path, used by the import resolver's
// module-path-to-file heuristic.
func (s *Store) AllFiles(ctx context.Context) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, abs_path, size, last_modified FROM files`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_files", err)
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		var lastModified int64
		if err := rows.Scan(&f.Path, &f.AbsPath, &f.Size, &lastModified); err != nil {
			return nil, cerrors.NewStoreError("scan_file", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ClearSymbolReferences drops every resolved reference so a resolution
// rerun doesn't accumulate duplicates; the resolution passes recompute the full
// relation each time rather than patching it incrementally.
func (s *Store) ClearSymbolReferences(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM symbol_references`)
	if err != nil {
		return cerrors.NewStoreError("clear_symbol_references", err)
	}
	return nil
}

// WriteSymbolReferences writes refs outside a caller-owned transaction,
// for the resolution pipeline which runs after ingestion has committed.
func (s *Store) WriteSymbolReferences(ctx context.Context, refs []model.SymbolReference) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		return WriteSymbolReferencesBatch(tx, refs)
	})
}

func splitParams(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
