// Package store implements the durable index of spec.md §4.3 (C3): a
// relational store (SQLite, via modernc.org/sqlite's pure-Go driver) plus
// a companion vector store sharing the same directory. Grounded on
// josephgoksu-TaskWing's internal/memory.SQLiteStore for the
// database/sql usage idiom (sql.Open("sqlite", path), PRAGMA setup,
// initSchema run once at open, transactional writes) — the teacher
// itself has no SQL layer, so this is the one component this module
// leans on a different pack repo for rather than the teacher.
package store

import (
	"context"
	"database/sql"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// Store is the relational half of C3. VectorStore (vector_store.go) is
// opened separately and shares the same directory.
type Store struct {
	db  *sql.DB
	dir string
}

// Open creates or opens cerberus.db under dir, applying the schema.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "cerberus.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, cerrors.NewStoreError("open", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, cerrors.NewStoreError("pragma", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, cerrors.NewStoreError("pragma", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, cerrors.NewStoreError("init_schema", err)
	}

	return &Store{db: db, dir: dir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Transaction runs fn inside a single SQLite transaction; fn's returned
// error rolls the transaction back, matching §4.3's invariant that a
// file's symbols are never visible without the file itself.
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return cerrors.NewStoreError("commit", err)
	}
	return nil
}

// WriteFile upserts a single file row, keyed by path.
func WriteFile(tx *sql.Tx, f model.File) error {
	_, err := tx.Exec(`
		INSERT INTO files (path, abs_path, size, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET abs_path=excluded.abs_path, size=excluded.size, last_modified=excluded.last_modified
	`, f.Path, f.AbsPath, f.Size, f.LastModified.UnixNano())
	if err != nil {
		return cerrors.NewStoreError("write_file", err)
	}
	return nil
}

// WriteSymbolsBatch inserts every symbol for one parse record. Existing
// rows for the symbol's file are not cleared here — callers needing
// replace-on-reparse semantics call DeleteFileRows first (C6's job).
func WriteSymbolsBatch(tx *sql.Tx, symbols []model.Symbol) error {
	stmt, err := tx.Prepare(`
		INSERT INTO symbols (name, type, file_path, start_line, end_line, start_byte, end_byte, signature, return_type, parameters, parent_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cerrors.NewStoreError("write_symbols_batch", err)
	}
	defer stmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO symbols_fts (name, signature, file_path, start_line) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return cerrors.NewStoreError("write_symbols_batch", err)
	}
	defer ftsStmt.Close()

	for _, sym := range symbols {
		var params *string
		if len(sym.Parameters) > 0 {
			joined := joinParams(sym.Parameters)
			params = &joined
		}
		if _, err := stmt.Exec(sym.Name, string(sym.Type), sym.FilePath, sym.StartLine, sym.EndLine,
			sym.StartByte, sym.EndByte, nullableString(sym.Signature), nullableString(sym.ReturnType), params, nullableString(sym.ParentClass)); err != nil {
			return cerrors.NewStoreError("write_symbols_batch", err)
		}
		if _, err := ftsStmt.Exec(sym.Name, sym.Signature, sym.FilePath, sym.StartLine); err != nil {
			return cerrors.NewStoreError("write_symbols_batch", err)
		}
	}
	return nil
}

func WriteImportsBatch(tx *sql.Tx, imports []model.Import) error {
	stmt, err := tx.Prepare(`INSERT INTO imports (module, file_path, line) VALUES (?, ?, ?)`)
	if err != nil {
		return cerrors.NewStoreError("write_imports_batch", err)
	}
	defer stmt.Close()
	for _, imp := range imports {
		if _, err := stmt.Exec(imp.Module, imp.FilePath, imp.Line); err != nil {
			return cerrors.NewStoreError("write_imports_batch", err)
		}
	}
	return nil
}

func WriteCallsBatch(tx *sql.Tx, calls []model.Call) error {
	stmt, err := tx.Prepare(`INSERT INTO calls (caller_file, callee, line) VALUES (?, ?, ?)`)
	if err != nil {
		return cerrors.NewStoreError("write_calls_batch", err)
	}
	defer stmt.Close()
	for _, c := range calls {
		if _, err := stmt.Exec(c.CallerFile, c.Callee, c.Line); err != nil {
			return cerrors.NewStoreError("write_calls_batch", err)
		}
	}
	return nil
}

func WriteTypeInfosBatch(tx *sql.Tx, infos []model.TypeInfo) error {
	stmt, err := tx.Prepare(`
		INSERT INTO type_infos (name, type_annotation, inferred_type, file_path, line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cerrors.NewStoreError("write_type_infos_batch", err)
	}
	defer stmt.Close()
	for _, ti := range infos {
		if _, err := stmt.Exec(ti.Name, nullableString(ti.TypeAnnotation), nullableString(ti.InferredType), ti.FilePath, ti.Line); err != nil {
			return cerrors.NewStoreError("write_type_infos_batch", err)
		}
	}
	return nil
}

func WriteImportLinksBatch(tx *sql.Tx, links []model.ImportLink) error {
	stmt, err := tx.Prepare(`
		INSERT INTO import_links (importer_file, imported_module, imported_symbols, import_line, definition_file, definition_symbol)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cerrors.NewStoreError("write_import_links_batch", err)
	}
	defer stmt.Close()
	for _, l := range links {
		if _, err := stmt.Exec(l.ImporterFile, l.ImportedModule, joinParams(l.ImportedSymbols), l.ImportLine,
			nullableString(l.DefinitionFile), nullableString(l.DefinitionSymbol)); err != nil {
			return cerrors.NewStoreError("write_import_links_batch", err)
		}
	}
	return nil
}

func WriteMethodCallsBatch(tx *sql.Tx, calls []model.MethodCall) error {
	stmt, err := tx.Prepare(`
		INSERT INTO method_calls (caller_file, line, receiver, method, receiver_type)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cerrors.NewStoreError("write_method_calls_batch", err)
	}
	defer stmt.Close()
	for _, mc := range calls {
		if _, err := stmt.Exec(mc.CallerFile, mc.Line, mc.Receiver, mc.Method, nullableString(mc.ReceiverType)); err != nil {
			return cerrors.NewStoreError("write_method_calls_batch", err)
		}
	}
	return nil
}

func WriteSymbolReferencesBatch(tx *sql.Tx, refs []model.SymbolReference) error {
	stmt, err := tx.Prepare(`
		INSERT INTO symbol_references (source_file, source_line, source_symbol, reference_type, target_file, target_symbol, target_type, confidence, resolution_method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cerrors.NewStoreError("write_symbol_references_batch", err)
	}
	defer stmt.Close()
	for _, r := range refs {
		if _, err := stmt.Exec(r.SourceFile, r.SourceLine, r.SourceSymbol, string(r.ReferenceType),
			nullableString(r.TargetFile), r.TargetSymbol, nullableString(r.TargetType), r.Confidence, nullableString(r.ResolutionMethod)); err != nil {
			return cerrors.NewStoreError("write_symbol_references_batch", err)
		}
	}
	return nil
}

func WriteEmbeddingMetadata(tx *sql.Tx, meta model.EmbeddingMetadata) error {
	_, err := tx.Exec(`
		INSERT INTO embeddings_metadata (symbol_id, vector_store_id, name, file_path, model)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET vector_store_id=excluded.vector_store_id, model=excluded.model
	`, meta.SymbolID, meta.VectorStoreID, meta.Name, meta.FilePath, meta.Model)
	if err != nil {
		return cerrors.NewStoreError("write_embedding_metadata", err)
	}
	return nil
}

// DeleteFileRows removes every row keyed by file_path across the entity
// tables, used by C6 before re-inserting a modified file's parse record
// and by file deletion.
func DeleteFileRows(tx *sql.Tx, path string) error {
	stmts := []string{
		`DELETE FROM files WHERE path = ?`,
		`DELETE FROM symbols WHERE file_path = ?`,
		`DELETE FROM symbols_fts WHERE file_path = ?`,
		`DELETE FROM imports WHERE file_path = ?`,
		`DELETE FROM calls WHERE caller_file = ?`,
		`DELETE FROM type_infos WHERE file_path = ?`,
		`DELETE FROM import_links WHERE importer_file = ?`,
		`DELETE FROM method_calls WHERE caller_file = ?`,
		`DELETE FROM symbol_references WHERE source_file = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, path); err != nil {
			return cerrors.NewStoreError("delete_file_rows", err)
		}
	}
	return nil
}

// --- metadata ---

func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	if err != nil {
		return cerrors.NewStoreError("set_metadata", err)
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, cerrors.NewStoreError("get_metadata", err)
	}
	return value, true, nil
}

// --- symbol queries ---

// QuerySymbolsByFile returns every symbol row for path, ordered by
// position, matching the order a blueprint tree needs.
func (s *Store) QuerySymbolsByFile(ctx context.Context, path string) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols WHERE file_path = ? ORDER BY start_line
	`, path)
	if err != nil {
		return nil, cerrors.NewStoreError("query_symbols_by_file", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// FindSymbol locates the unique symbol matching name (and, if non-empty,
// type/parentClass), per C9's locate step. Returns NotFoundError when
// zero rows match; ambiguity (>1 row) returns the first in file order —
// callers that need strict uniqueness should pass parentClass to narrow.
func (s *Store) FindSymbol(ctx context.Context, name, symType, parentClass string) (model.Symbol, error) {
	query := `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols WHERE name = ?`
	args := []any{name}
	if symType != "" {
		query += ` AND type = ?`
		args = append(args, symType)
	}
	if parentClass != "" {
		query += ` AND parent_class = ?`
		args = append(args, parentClass)
	}
	query += ` ORDER BY file_path, start_line LIMIT 1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Symbol{}, cerrors.NewStoreError("find_symbol", err)
	}
	defer rows.Close()

	symbols, err := scanSymbols(rows)
	if err != nil {
		return model.Symbol{}, err
	}
	if len(symbols) == 0 {
		return model.Symbol{}, cerrors.NewNotFoundError("symbol", name)
	}
	return symbols[0], nil
}

func scanSymbols(rows *sql.Rows) ([]model.Symbol, error) {
	var out []model.Symbol
	for rows.Next() {
		var sym model.Symbol
		var symType string
		if err := rows.Scan(&sym.Name, &symType, &sym.FilePath, &sym.StartLine, &sym.EndLine,
			&sym.StartByte, &sym.EndByte, &sym.Signature, &sym.ReturnType, &sym.ParentClass); err != nil {
			return nil, cerrors.NewStoreError("scan_symbol", err)
		}
		sym.Type = model.SymbolType(symType)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// QueryReferencesFrom / QueryReferencesTo back both the blueprint
// dependency overlay and the mutation engine's reference guard.
func (s *Store) QueryReferencesTo(ctx context.Context, targetSymbol string) ([]model.SymbolReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_file, source_line, source_symbol, reference_type,
		       COALESCE(target_file, ''), target_symbol, COALESCE(target_type, ''), confidence, COALESCE(resolution_method, '')
		FROM symbol_references WHERE target_symbol = ?
	`, targetSymbol)
	if err != nil {
		return nil, cerrors.NewStoreError("query_references_to", err)
	}
	defer rows.Close()
	return scanReferences(rows)
}

func (s *Store) QueryReferencesFrom(ctx context.Context, sourceSymbol string) ([]model.SymbolReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_file, source_line, source_symbol, reference_type,
		       COALESCE(target_file, ''), target_symbol, COALESCE(target_type, ''), confidence, COALESCE(resolution_method, '')
		FROM symbol_references WHERE source_symbol = ?
	`, sourceSymbol)
	if err != nil {
		return nil, cerrors.NewStoreError("query_references_from", err)
	}
	defer rows.Close()
	return scanReferences(rows)
}

func scanReferences(rows *sql.Rows) ([]model.SymbolReference, error) {
	var out []model.SymbolReference
	for rows.Next() {
		var r model.SymbolReference
		var refType string
		if err := rows.Scan(&r.SourceFile, &r.SourceLine, &r.SourceSymbol, &refType,
			&r.TargetFile, &r.TargetSymbol, &r.TargetType, &r.Confidence, &r.ResolutionMethod); err != nil {
			return nil, cerrors.NewStoreError("scan_reference", err)
		}
		r.ReferenceType = model.ReferenceType(refType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes index size for index_stats / GET /status.
type Stats struct {
	FileCount      int
	SymbolCount    int
	ReferenceCount int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&st.FileCount); err != nil {
		return st, cerrors.NewStoreError("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&st.SymbolCount); err != nil {
		return st, cerrors.NewStoreError("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol_references`).Scan(&st.ReferenceCount); err != nil {
		return st, cerrors.NewStoreError("stats", err)
	}
	return st, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinParams(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
