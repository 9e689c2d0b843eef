package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/proxikal/cerberus/internal/model"
)

// jsAdapter covers both JavaScript and TypeScript: the TS grammar is a
// superset of the JS grammar's node kinds for the constructs this adapter
// extracts (functions, classes, imports, calls), so one extractor serves
// both, switching only the underlying *sitter.Language and, for TS files,
// additionally picking up type_annotation nodes.
type jsAdapter struct {
	name string
	exts []string
	lang *sitter.Language
	isTS bool
}

func newJSAdapter(name string, exts []string, forTS bool) Adapter {
	lang := javascriptLanguage()
	if forTS {
		lang = typescriptLanguage()
	}
	return &jsAdapter{name: name, exts: exts, lang: lang, isTS: forTS}
}

func (a *jsAdapter) Language() string     { return a.name }
func (a *jsAdapter) Extensions() []string { return a.exts }

func (a *jsAdapter) Parse(path string, source []byte) (ParseRecord, error) {
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

	ctx := &jsExtractCtx{path: path, src: source, rec: &rec, isTS: a.isTS}
	ctx.walkProgram(tree.RootNode())
	return rec, nil
}

type jsExtractCtx struct {
	path string
	src  []byte
	rec  *ParseRecord
	isTS bool
}

func (c *jsExtractCtx) text(n *sitter.Node) string { return byteSlice(c.src, n) }

func (c *jsExtractCtx) walkProgram(root *sitter.Node) {
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		c.walkStatement(n)
	}
}

// walkStatement handles both top-level and `export`-wrapped declarations,
// since TS/JS modules routinely write `export function f() {}` /
// `export class C {}` / `export default class {}`.
func (c *jsExtractCtx) walkStatement(n *sitter.Node) {
	switch n.Kind() {
	case "import_statement":
		c.extractImport(n)
	case "function_declaration":
		c.extractFunction(n, "")
	case "class_declaration":
		c.extractClass(n)
	case "lexical_declaration", "variable_declaration":
		c.extractVar(n)
	case "export_statement":
		inner := n.Child(n.ChildCount() - 1)
		if inner != nil {
			c.walkStatement(inner)
		}
	}
}

func (c *jsExtractCtx) extractImport(n *sitter.Node) {
	sourceNode := n.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	module := trimQuotes(c.text(sourceNode))
	var symbols []string
	if clause := childByType(n, "import_clause"); clause != nil {
		walk(clause, func(m *sitter.Node) bool {
			if m.Kind() == "identifier" {
				symbols = append(symbols, c.text(m))
			}
			return true
		})
	}
	c.rec.Imports = append(c.rec.Imports, model.Import{Module: module, FilePath: c.path, Line: lineOf(n)})
	c.rec.ImportLinks = append(c.rec.ImportLinks, model.ImportLink{
		ImporterFile: c.path, ImportedModule: module, ImportedSymbols: symbols, ImportLine: lineOf(n),
	})
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func (c *jsExtractCtx) extractFunction(n *sitter.Node, parentClass string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	symType := model.SymbolFunction
	if parentClass != "" {
		symType = model.SymbolMethod
	}
	sym := model.Symbol{
		Name:        name,
		Type:        symType,
		FilePath:    c.path,
		StartLine:   lineOf(n),
		EndLine:     endLineOf(n),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		ParentClass: parentClass,
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		sym.Signature = name + c.text(params)
	}
	if c.isTS {
		if ret := n.ChildByFieldName("return_type"); ret != nil {
			sym.ReturnType = c.text(ret)
		}
	}
	c.rec.Symbols = append(c.rec.Symbols, sym)
	if body := n.ChildByFieldName("body"); body != nil {
		c.extractCalls(body)
	}
}

func (c *jsExtractCtx) extractClass(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	className := c.text(nameNode)
	c.rec.Symbols = append(c.rec.Symbols, model.Symbol{
		Name:      className,
		Type:      model.SymbolClass,
		FilePath:  c.path,
		StartLine: lineOf(n),
		EndLine:   endLineOf(n),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	})

	if heritage := childByType(n, "class_heritage"); heritage != nil {
		walk(heritage, func(m *sitter.Node) bool {
			if m.Kind() == "identifier" {
				c.rec.MethodCalls = append(c.rec.MethodCalls, model.MethodCall{
					CallerFile: c.path, Line: lineOf(heritage), Receiver: className, Method: "extends:" + c.text(m),
				})
			}
			return true
		})
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for _, member := range childrenByType(body, "method_definition") {
		c.extractFunction(member, className)
	}
}

func (c *jsExtractCtx) extractVar(n *sitter.Node) {
	for _, decl := range childrenByType(n, "variable_declarator") {
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression") {
			name := c.text(nameNode)
			sym := model.Symbol{
				Name:      name,
				Type:      model.SymbolFunction,
				FilePath:  c.path,
				StartLine: lineOf(n),
				EndLine:   endLineOf(n),
				StartByte: int(n.StartByte()),
				EndByte:   int(n.EndByte()),
			}
			if params := value.ChildByFieldName("parameters"); params != nil {
				sym.Signature = name + c.text(params)
			}
			c.rec.Symbols = append(c.rec.Symbols, sym)
			if body := value.ChildByFieldName("body"); body != nil {
				c.extractCalls(body)
			}
			continue
		}
		c.rec.Symbols = append(c.rec.Symbols, model.Symbol{
			Name:      c.text(nameNode),
			Type:      model.SymbolVariable,
			FilePath:  c.path,
			StartLine: lineOf(n),
			EndLine:   endLineOf(n),
			StartByte: int(n.StartByte()),
			EndByte:   int(n.EndByte()),
		})
	}
}

func (c *jsExtractCtx) extractCalls(body *sitter.Node) {
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
			c.rec.Calls = append(c.rec.Calls, model.Call{CallerFile: c.path, Callee: c.text(fn), Line: lineOf(n)})
		case "member_expression":
			object := fn.ChildByFieldName("object")
			property := fn.ChildByFieldName("property")
			if object == nil || property == nil {
				return true
			}
			c.rec.MethodCalls = append(c.rec.MethodCalls, model.MethodCall{
				CallerFile: c.path, Line: lineOf(n), Receiver: c.text(object), Method: c.text(property),
			})
		}
		return true
	})
}

func (a *jsAdapter) Validate(source []byte) (bool, []string) {
	return validateWithParser(a.lang, source)
}
