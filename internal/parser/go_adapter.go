package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/proxikal/cerberus/internal/model"
)

// goAdapter extracts Go symbols, imports and calls. Grounded on the
// teacher's internal/symbollinker/go_extractor.go: a recursive walk over
// node.Kind() that pushes/pops a parent-class context for methods, plus a
// dedicated import-spec walker that unpacks import groups, aliases and
// blank/dot imports.
type goAdapter struct {
	lang *sitter.Language
}

func newGoAdapter() Adapter {
	return &goAdapter{lang: goLanguage()}
}

func (a *goAdapter) Language() string     { return "go" }
func (a *goAdapter) Extensions() []string { return []string{".go"} }

func (a *goAdapter) Parse(path string, source []byte) (ParseRecord, error) {
	rec := ParseRecord{FilePath: path}
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

	root := tree.RootNode()
	ctx := &goExtractCtx{path: path, src: source, rec: &rec}
	ctx.walkImports(root)
	ctx.walkTop(root)
	return rec, nil
}

type goExtractCtx struct {
	path string
	src  []byte
	rec  *ParseRecord
}

func (c *goExtractCtx) text(n *sitter.Node) string { return byteSlice(c.src, n) }

// walkImports extracts every import_spec under the file's import
// declarations, including grouped imports and aliases/blank/dot imports.
func (c *goExtractCtx) walkImports(root *sitter.Node) {
	for _, decl := range childrenByType(root, "import_declaration") {
		walk(decl, func(n *sitter.Node) bool {
			if n.Kind() != "import_spec" {
				return true
			}
			pathNode := childByType(n, "interpreted_string_literal")
			if pathNode == nil {
				return false
			}
			modPath := strings.Trim(c.text(pathNode), `"`)
			c.rec.Imports = append(c.rec.Imports, model.Import{
				Module:   modPath,
				FilePath: c.path,
				Line:     lineOf(n),
			})
			c.rec.ImportLinks = append(c.rec.ImportLinks, model.ImportLink{
				ImporterFile:   c.path,
				ImportedModule: modPath,
				ImportLine:     lineOf(n),
			})
			return false
		})
	}
}

// walkTop extracts top-level functions, methods, type declarations and
// top-level var/const declarations, and recurses into function bodies
// purely to collect call expressions (never re-emitting nested symbols,
// matching the teacher's scope-tracked walk).
func (c *goExtractCtx) walkTop(root *sitter.Node) {
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "function_declaration":
			c.extractFunction(n, "")
		case "method_declaration":
			c.extractMethod(n)
		case "type_declaration":
			c.extractTypeDecl(n)
		case "var_declaration", "const_declaration":
			c.extractVarConst(n)
		}
	}
}

func (c *goExtractCtx) extractFunction(n *sitter.Node, parentClass string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	sym := model.Symbol{
		Name:        name,
		Type:        model.SymbolFunction,
		FilePath:    c.path,
		StartLine:   lineOf(n),
		EndLine:     endLineOf(n),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		Signature:   c.signatureOf(n),
		ParentClass: parentClass,
	}
	if ret := n.ChildByFieldName("result"); ret != nil {
		sym.ReturnType = c.text(ret)
	}
	c.rec.Symbols = append(c.rec.Symbols, sym)
	if body := n.ChildByFieldName("body"); body != nil {
		c.extractCalls(body, name)
	}
}

func (c *goExtractCtx) extractMethod(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	receiver := n.ChildByFieldName("receiver")
	recvType := ""
	if receiver != nil {
		recvType = extractReceiverType(c.text(receiver))
	}
	name := c.text(nameNode)
	sym := model.Symbol{
		Name:        name,
		Type:        model.SymbolMethod,
		FilePath:    c.path,
		StartLine:   lineOf(n),
		EndLine:     endLineOf(n),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		Signature:   c.signatureOf(n),
		ParentClass: recvType,
	}
	if ret := n.ChildByFieldName("result"); ret != nil {
		sym.ReturnType = c.text(ret)
	}
	c.rec.Symbols = append(c.rec.Symbols, sym)
	if body := n.ChildByFieldName("body"); body != nil {
		c.extractCalls(body, name)
	}
}

// extractReceiverType pulls the bare type name out of a receiver's raw
// text, e.g. "(r *Registry)" -> "Registry", "(s Store)" -> "Store".
func extractReceiverType(raw string) string {
	raw = strings.Trim(raw, "()")
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	t := fields[len(fields)-1]
	return strings.TrimPrefix(t, "*")
}

func (c *goExtractCtx) extractTypeDecl(n *sitter.Node) {
	for _, spec := range childrenByType(n, "type_spec") {
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := c.text(nameNode)
		symType := model.SymbolStruct
		typeNode := spec.ChildByFieldName("type")
		if typeNode != nil {
			switch typeNode.Kind() {
			case "interface_type":
				symType = model.SymbolInterface
			case "struct_type":
				symType = model.SymbolStruct
			default:
				symType = model.SymbolVariable
			}
		}
		c.rec.Symbols = append(c.rec.Symbols, model.Symbol{
			Name:      name,
			Type:      symType,
			FilePath:  c.path,
			StartLine: lineOf(spec),
			EndLine:   endLineOf(spec),
			StartByte: int(spec.StartByte()),
			EndByte:   int(spec.EndByte()),
			Signature: c.text(spec),
		})
	}
}

func (c *goExtractCtx) extractVarConst(n *sitter.Node) {
	for _, spec := range childrenByType(n, "var_spec") {
		c.extractNamesFromSpec(spec)
	}
	for _, spec := range childrenByType(n, "const_spec") {
		c.extractNamesFromSpec(spec)
	}
}

func (c *goExtractCtx) extractNamesFromSpec(spec *sitter.Node) {
	for _, id := range childrenByType(spec, "identifier") {
		name := c.text(id)
		if name == "_" {
			continue
		}
		sym := model.Symbol{
			Name:      name,
			Type:      model.SymbolVariable,
			FilePath:  c.path,
			StartLine: lineOf(spec),
			EndLine:   endLineOf(spec),
			StartByte: int(spec.StartByte()),
			EndByte:   int(spec.EndByte()),
		}
		if tnode := spec.ChildByFieldName("type"); tnode != nil {
			sym.Signature = c.text(tnode)
			c.rec.TypeInfos = append(c.rec.TypeInfos, model.TypeInfo{
				Name:           name,
				TypeAnnotation: c.text(tnode),
				FilePath:       c.path,
				Line:           lineOf(spec),
			})
		}
		c.rec.Symbols = append(c.rec.Symbols, sym)
	}
}

// extractCalls walks a function/method body for call_expression and
// selector-based method-call sites, recording both plain calls (for the
// call graph) and receiver.method calls (for inheritance/MRO resolution
// in C5).
func (c *goExtractCtx) extractCalls(body *sitter.Node, callerSymbol string) {
	walk(body, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Kind() {
		case "identifier":
			c.rec.Calls = append(c.rec.Calls, model.Call{
				CallerFile: c.path,
				Callee:     c.text(fn),
				Line:       lineOf(n),
			})
		case "selector_expression":
			operand := fn.ChildByFieldName("operand")
			field := fn.ChildByFieldName("field")
			if operand == nil || field == nil {
				return true
			}
			c.rec.MethodCalls = append(c.rec.MethodCalls, model.MethodCall{
				CallerFile: c.path,
				Line:       lineOf(n),
				Receiver:   c.text(operand),
				Method:     c.text(field),
			})
		}
		return true
	})
}

func (c *goExtractCtx) signatureOf(n *sitter.Node) string {
	nameNode := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	if nameNode == nil || params == nil {
		return c.text(n)
	}
	sig := c.text(nameNode) + c.text(params)
	if ret := n.ChildByFieldName("result"); ret != nil {
		sig += " " + c.text(ret)
	}
	return sig
}

func (a *goAdapter) Validate(source []byte) (bool, []string) {
	return validateWithParser(a.lang, source)
}
