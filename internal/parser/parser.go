// Package parser implements the per-language tree-sitter adapters of
// spec.md §4.1 (C1). Parsers are pure functions over (path, source): they
// never touch the index store. parse() failures are never fatal — they
// produce an empty record plus a diagnostic, per §4.1 and the ParseError
// kind in internal/cerrors.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// ParseRecord is everything C1 extracts from one file: symbols (with
// byte-offset ranges for C9's mutation engine), imports, calls,
// method-calls, type-infos, and import-links.
type ParseRecord struct {
	FilePath    string
	Symbols     []model.Symbol
	Imports     []model.Import
	ImportLinks []model.ImportLink
	Calls       []model.Call
	MethodCalls []model.MethodCall
	TypeInfos   []model.TypeInfo
	Diagnostic  error // non-nil when the file could not be read or parsed; the record is then otherwise empty
}

// Adapter is the interface every language implementation satisfies.
// Grounded on the teacher's symbollinker.SymbolExtractor interface.
type Adapter interface {
	Language() string
	Extensions() []string
	Parse(path string, source []byte) (ParseRecord, error)

	// Validate re-parses source and reports whether it is syntactically
	// well-formed, for C9's post-edit syntax check (spec.md §4.9 step 11).
	// Grounded on the rootNode.HasError() idiom the pack's own ingestion
	// parsers use (vjache-cie/pkg/ingestion/parser_go.go,
	// kraklabs-cie/pkg/ingestion/parser_typescript.go): a single boolean
	// covering both ERROR nodes and missing-token nodes, plus a line/column
	// diagnostic per offending node.
	Validate(source []byte) (bool, []string)
}

// Registry dispatches by file extension to the right Adapter.
type Registry struct {
	byExt map[string]Adapter
}

// NewRegistry builds the default registry covering every language the
// teacher's grammar set supports.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Adapter)}
	for _, a := range []Adapter{
		newGoAdapter(),
		newPythonAdapter(),
		newJSAdapter("javascript", []string{".js", ".jsx", ".mjs", ".cjs"}, false),
		newJSAdapter("typescript", []string{".ts", ".tsx"}, true),
		newGenericAdapter("java", []string{".java"}, javaLanguage()),
		newGenericAdapter("php", []string{".php"}, phpLanguage()),
		newGenericAdapter("rust", []string{".rs"}, rustLanguage()),
		newGenericAdapter("c_sharp", []string{".cs"}, csharpLanguage()),
		newGenericAdapter("cpp", []string{".cc", ".cpp", ".cxx", ".hpp", ".h", ".hh"}, cppLanguage()),
		newGenericAdapter("zig", []string{".zig"}, zigLanguage()),
	} {
		for _, ext := range a.Extensions() {
			r.byExt[ext] = a
		}
	}
	return r
}

// For dispatches by extension; a nil Adapter means the file's language is
// unsupported and the caller should skip it silently (not a ParseError —
// there's nothing to diagnose, it's simply out of scope).
func (r *Registry) For(path string) Adapter {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// Parse dispatches to the right adapter and wraps adapter failures in a
// cerrors.ParseError, matching §4.1/§7: parse failures are recovered
// locally by returning an empty record with a diagnostic, never fatal.
func (r *Registry) Parse(path string, source []byte) ParseRecord {
	adapter := r.For(path)
	if adapter == nil {
		return ParseRecord{FilePath: path}
	}
	rec, err := adapter.Parse(path, source)
	if err != nil {
		return ParseRecord{FilePath: path, Diagnostic: cerrors.NewParseError(path, err)}
	}
	rec.FilePath = path
	return rec
}

// byteSlice returns the raw source text for a tree-sitter node.
func byteSlice(content []byte, n *sitter.Node) string {
	return string(content[n.StartByte():n.EndByte()])
}

// lineOf converts a zero-based tree-sitter row into Cerberus's 1-based
// line numbering, matching the rest of the data model.
func lineOf(n *sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func endLineOf(n *sitter.Node) int {
	return int(n.EndPosition().Row) + 1
}

// validateWithParser runs a fresh parse under the given tree-sitter
// language and collects one diagnostic per ERROR/missing node. A nil
// parser (ABI mismatch, per newParser) is treated as "nothing to check"
// rather than a validation failure — the caller has no way to confirm
// syntax either way.
func validateWithParser(lang *sitter.Language, source []byte) (bool, []string) {
	p := newParser(lang)
	if p == nil {
		return true, nil
	}
	defer p.Close()

	tree := p.Parse(source, nil)
	if tree == nil {
		return true, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return true, nil
	}

	var diagnostics []string
	collectSyntaxErrors(root, &diagnostics)
	if len(diagnostics) == 0 {
		diagnostics = append(diagnostics, "syntax error: malformed source")
	}
	return false, diagnostics
}

func collectSyntaxErrors(n *sitter.Node, out *[]string) {
	if n.IsError() || n.IsMissing() {
		pos := n.StartPosition()
		*out = append(*out, fmt.Sprintf("syntax error at line %d, column %d", pos.Row+1, pos.Column+1))
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		collectSyntaxErrors(n.Child(i), out)
	}
}
