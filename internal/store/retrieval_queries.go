package store

import (
	"context"
	"database/sql"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// AllSymbols returns every indexed symbol, the corpus the BM25 index
// (C7) is built over.
func (s *Store) AllSymbols(ctx context.Context) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols ORDER BY file_path, start_line
	`)
	if err != nil {
		return nil, cerrors.NewStoreError("all_symbols", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// SymbolByFileAndName resolves the embedding-metadata (file_path, name)
// pair a vector match reports back to the full symbol row, since the
// vector store itself only carries a numeric symbol id.
func (s *Store) SymbolByFileAndName(ctx context.Context, filePath, name string) (model.Symbol, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, file_path, start_line, end_line, start_byte, end_byte,
		       COALESCE(signature, ''), COALESCE(return_type, ''), COALESCE(parent_class, '')
		FROM symbols WHERE file_path = ? AND name = ? ORDER BY start_line LIMIT 1
	`, filePath, name)
	if err != nil {
		return model.Symbol{}, false, cerrors.NewStoreError("symbol_by_file_and_name", err)
	}
	defer rows.Close()

	symbols, err := scanSymbols(rows)
	if err != nil {
		return model.Symbol{}, false, err
	}
	if len(symbols) == 0 {
		return model.Symbol{}, false, nil
	}
	return symbols[0], true, nil
}

// EmbeddingMetadataBySymbolID looks up the (name, file_path) an embedded
// vector belongs to, keyed by the synthetic symbol id the vector store
// returns from a nearest-neighbor search.
func (s *Store) EmbeddingMetadataBySymbolID(ctx context.Context, symbolID int64) (model.EmbeddingMetadata, bool, error) {
	var meta model.EmbeddingMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol_id, vector_store_id, name, file_path, model
		FROM embeddings_metadata WHERE symbol_id = ?
	`, symbolID).Scan(&meta.SymbolID, &meta.VectorStoreID, &meta.Name, &meta.FilePath, &meta.Model)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.EmbeddingMetadata{}, false, nil
		}
		return model.EmbeddingMetadata{}, false, cerrors.NewStoreError("embedding_metadata_by_symbol_id", err)
	}
	return meta, true, nil
}
