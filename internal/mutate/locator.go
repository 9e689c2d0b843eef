// Package mutate implements the AST-precise mutation engine of spec.md
// §4.9 (C9): locate a symbol, guard it against external references,
// format the replacement, splice bytes under an optimistic lock with a
// mandatory backup, validate the result, and record both a diff-ledger
// row and an undo transaction. Grounded on the original implementation's
// cerberus.mutation package (locator.py, guard.py, editor.py, ledger.py,
// undo.py), reworked around the shared internal/store and
// internal/parser packages instead of a second SQLite file and
// tree-sitter parser pool.
package mutate

import (
	"context"
	"fmt"
	"os"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/store"
)

// lineTolerance is the locator's slack between the index's (possibly
// stale) start_line and the freshly re-parsed node's line, matching the
// original's `abs(node_line - expected_line) <= 1`.
const lineTolerance = 1

// Location pins a symbol to an exact, freshly-verified byte range in the
// file currently on disk, ready for editor.go to splice.
type Location struct {
	FilePath    string
	SymbolName  string
	SymbolType  model.SymbolType
	ParentClass string
	StartByte   int
	EndByte     int
	StartLine   int
	EndLine     int
	IndentLevel int
	Source      []byte // full file content at locate time
}

// Locate finds symbolName in the store, re-reads and re-parses its file,
// and matches a currently-live AST node against the store's (possibly
// stale) start_line within lineTolerance lines. It never trusts the
// store's byte ranges directly — those may predate edits the index
// hasn't caught up with yet — only the line number as a search anchor.
func Locate(ctx context.Context, s *store.Store, reg *parser.Registry, symbolName string, symType model.SymbolType, parentClass string) (Location, error) {
	indexed, err := s.FindSymbol(ctx, symbolName, string(symType), parentClass)
	if err != nil {
		return Location{}, err
	}

	source, err := os.ReadFile(indexed.FilePath)
	if err != nil {
		return Location{}, cerrors.NewNotFoundError("file", indexed.FilePath)
	}

	rec := reg.Parse(indexed.FilePath, source)
	if rec.Diagnostic != nil {
		return Location{}, rec.Diagnostic
	}

	match, ok := findNearestMatch(rec.Symbols, symbolName, symType, parentClass, indexed.StartLine)
	if !ok {
		return Location{}, cerrors.NewNotFoundError("symbol", symbolName)
	}

	return Location{
		FilePath:    indexed.FilePath,
		SymbolName:  match.Name,
		SymbolType:  match.Type,
		ParentClass: match.ParentClass,
		StartByte:   match.StartByte,
		EndByte:     match.EndByte,
		StartLine:   match.StartLine,
		EndLine:     match.EndLine,
		IndentLevel: indentLevelAt(source, match.StartByte),
		Source:      source,
	}, nil
}

// findNearestMatch mirrors locator.py's _find_symbol_node: filter
// candidates by name/type/parent, then pick the one whose start_line is
// within lineTolerance of expectedLine, breaking ties by proximity.
func findNearestMatch(candidates []model.Symbol, name string, symType model.SymbolType, parentClass string, expectedLine int) (model.Symbol, bool) {
	best := model.Symbol{}
	bestDist := -1
	for _, c := range candidates {
		if c.Name != name {
			continue
		}
		if symType != "" && c.Type != symType {
			continue
		}
		if parentClass != "" && c.ParentClass != parentClass {
			continue
		}
		dist := c.StartLine - expectedLine
		if dist < 0 {
			dist = -dist
		}
		if dist > lineTolerance {
			continue
		}
		if bestDist == -1 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best, bestDist != -1
}

// indentLevelAt counts the indent units (4-space equivalent) preceding
// byteOffset's line, matching locator.py's `len(leading_whitespace) // 4`.
func indentLevelAt(source []byte, byteOffset int) int {
	lineStart := byteOffset
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	width := 0
	for i := lineStart; i < len(source) && (source[i] == ' ' || source[i] == '\t'); i++ {
		if source[i] == '\t' {
			width += 4
		} else {
			width++
		}
	}
	return width / 4
}

// describe is a small helper for error messages across the package.
func describe(loc Location) string {
	return fmt.Sprintf("%s in %s", loc.SymbolName, loc.FilePath)
}
