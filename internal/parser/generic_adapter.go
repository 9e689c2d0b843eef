package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/proxikal/cerberus/internal/model"
)

// genericAdapter covers the languages the teacher never had a dedicated
// symbollinker extractor for (java, php, rust, c_sharp, cpp, zig). Rather
// than hand-writing six more bespoke walkers, it classifies each grammar's
// node kinds into four structural roles — container (class/struct/impl),
// callable (function/method), import, and call-site — via a per-language
// kindSet, then runs one generic recursive walk shared across all of them.
// This mirrors the fallback-to-query-matching idiom the teacher uses for
// languages outside its own curated extractor set.
type genericAdapter struct {
	name string
	exts []string
	lang *sitter.Language
	kinds kindSet
}

type kindSet struct {
	containers map[string]model.SymbolType
	callables  map[string]bool
	imports    map[string]bool
	calls      map[string]bool
}

func newGenericAdapter(name string, exts []string, lang *sitter.Language) Adapter {
	return &genericAdapter{name: name, exts: exts, lang: lang, kinds: kindSetFor(name)}
}

func kindSetFor(name string) kindSet {
	switch name {
	case "java":
		return kindSet{
			containers: map[string]model.SymbolType{
				"class_declaration": model.SymbolClass, "interface_declaration": model.SymbolInterface,
				"enum_declaration": model.SymbolEnum, "record_declaration": model.SymbolClass,
			},
			callables: map[string]bool{"method_declaration": true, "constructor_declaration": true},
			imports:   map[string]bool{"import_declaration": true},
			calls:     map[string]bool{"method_invocation": true},
		}
	case "php":
		return kindSet{
			containers: map[string]model.SymbolType{
				"class_declaration": model.SymbolClass, "interface_declaration": model.SymbolInterface,
				"enum_declaration": model.SymbolEnum, "trait_declaration": model.SymbolClass,
			},
			callables: map[string]bool{"method_declaration": true, "function_definition": true},
			imports:   map[string]bool{"namespace_use_declaration": true},
			calls:     map[string]bool{"function_call_expression": true, "member_call_expression": true},
		}
	case "rust":
		return kindSet{
			containers: map[string]model.SymbolType{
				"struct_item": model.SymbolStruct, "enum_item": model.SymbolEnum,
				"trait_item": model.SymbolInterface, "impl_item": model.SymbolClass,
			},
			callables: map[string]bool{"function_item": true},
			imports:   map[string]bool{"use_declaration": true},
			calls:     map[string]bool{"call_expression": true},
		}
	case "c_sharp":
		return kindSet{
			containers: map[string]model.SymbolType{
				"class_declaration": model.SymbolClass, "interface_declaration": model.SymbolInterface,
				"struct_declaration": model.SymbolStruct, "enum_declaration": model.SymbolEnum,
			},
			callables: map[string]bool{"method_declaration": true, "constructor_declaration": true},
			imports:   map[string]bool{"using_directive": true},
			calls:     map[string]bool{"invocation_expression": true},
		}
	case "cpp":
		return kindSet{
			containers: map[string]model.SymbolType{
				"class_specifier": model.SymbolClass, "struct_specifier": model.SymbolStruct,
				"enum_specifier": model.SymbolEnum,
			},
			callables: map[string]bool{"function_definition": true},
			imports:   map[string]bool{"preproc_include": true},
			calls:     map[string]bool{"call_expression": true},
		}
	case "zig":
		return kindSet{
			containers: map[string]model.SymbolType{"container_decl": model.SymbolStruct},
			callables:  map[string]bool{"function_decl": true, "fn_proto": true},
			imports:    map[string]bool{"builtin_call": true},
			calls:      map[string]bool{"call_expression": true},
		}
	default:
		return kindSet{}
	}
}

func (a *genericAdapter) Language() string     { return a.name }
func (a *genericAdapter) Extensions() []string { return a.exts }

func (a *genericAdapter) Parse(path string, source []byte) (ParseRecord, error) {
	rec := ParseRecord{FilePath: path}
	if a.lang == nil {
		return rec, nil
	}
	p := newParser(a.lang)
	if p == nil {
		return rec, nil
	}
	defer p.Close()

	tree := p.Parse(source, nil)
	if tree == nil {
		return rec, nil
	}
	defer tree.Close()

	ctx := &genericExtractCtx{path: path, src: source, rec: &rec, kinds: a.kinds}
	ctx.walk(tree.RootNode(), "")
	return rec, nil
}

type genericExtractCtx struct {
	path  string
	src   []byte
	rec   *ParseRecord
	kinds kindSet
}

func (c *genericExtractCtx) text(n *sitter.Node) string { return byteSlice(c.src, n) }

// walk descends the whole tree carrying the innermost enclosing
// container's name as parentClass context, emitting a Symbol for every
// container and callable it sees and a Call for every call node that has
// a function field, regardless of depth — a coarser pass than the per-language
// extractors but sufficient for blueprint/reference overlays.
func (c *genericExtractCtx) walk(n *sitter.Node, parentClass string) {
	if n == nil {
		return
	}
	kind := n.Kind()

	if symType, ok := c.kinds.containers[kind]; ok {
		name := c.nameOf(n)
		if name != "" {
			c.rec.Symbols = append(c.rec.Symbols, model.Symbol{
				Name: name, Type: symType, FilePath: c.path,
				StartLine: lineOf(n), EndLine: endLineOf(n),
				StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
				ParentClass: parentClass,
			})
			parentClass = name
		}
	}

	if c.kinds.callables[kind] {
		name := c.nameOf(n)
		if name != "" {
			symType := model.SymbolFunction
			if parentClass != "" {
				symType = model.SymbolMethod
			}
			sym := model.Symbol{
				Name: name, Type: symType, FilePath: c.path,
				StartLine: lineOf(n), EndLine: endLineOf(n),
				StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
				ParentClass: parentClass,
			}
			if params := n.ChildByFieldName("parameters"); params != nil {
				sym.Signature = name + c.text(params)
			}
			c.rec.Symbols = append(c.rec.Symbols, sym)
		}
	}

	if c.kinds.imports[kind] {
		c.rec.Imports = append(c.rec.Imports, model.Import{Module: c.text(n), FilePath: c.path, Line: lineOf(n)})
	}

	if c.kinds.calls[kind] {
		if fn := n.ChildByFieldName("function"); fn != nil {
			c.rec.Calls = append(c.rec.Calls, model.Call{CallerFile: c.path, Callee: c.text(fn), Line: lineOf(n)})
		}
	}

	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c.walk(n.Child(i), parentClass)
	}
}

// nameOf tries the grammar's "name" field first, falling back to the
// first identifier-ish child, since field names vary slightly across
// the six grammars this adapter covers (e.g. rust's impl_item has no
// "name" field at all — it names a type, not an identifier).
func (c *genericExtractCtx) nameOf(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return c.text(name)
	}
	if typeNode := n.ChildByFieldName("type"); typeNode != nil {
		return c.text(typeNode)
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "type_identifier", "name":
			return c.text(child)
		}
	}
	return ""
}

func (a *genericAdapter) Validate(source []byte) (bool, []string) {
	return validateWithParser(a.lang, source)
}
