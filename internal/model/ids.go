// Package model defines the entities of the Cerberus index: files, symbols,
// imports, calls, type bindings, and the resolved cross-references between
// them. These are plain data types shared by every other package; none of
// them touch the store or the filesystem directly.
package model

import "fmt"

// FileID identifies a row in the files table. Stable within a single
// process lifetime; not persisted across rescans of the same path.
type FileID uint32

// SymbolID identifies a row in the symbols table.
type SymbolID uint64

// StableSymbolKey returns the deterministic cross-process identifier used
// by the retriever for dedup and by the vector store for addressing:
// "{file_path}:{name}:{start_line}".
func StableSymbolKey(filePath, name string, startLine int) string {
	return fmt.Sprintf("%s:%s:%d", filePath, name, startLine)
}
