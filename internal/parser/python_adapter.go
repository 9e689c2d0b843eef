package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/proxikal/cerberus/internal/model"
)

// pythonAdapter mirrors goAdapter's shape but walks Python's grammar:
// class_definition nests function_definition as methods, import_statement
// and import_from_statement cover plain/aliased/from-imports.
type pythonAdapter struct {
	lang *sitter.Language
}

func newPythonAdapter() Adapter {
	return &pythonAdapter{lang: pythonLanguage()}
}

func (a *pythonAdapter) Language() string     { return "python" }
func (a *pythonAdapter) Extensions() []string { return []string{".py", ".pyi"} }

func (a *pythonAdapter) Parse(path string, source []byte) (ParseRecord, error) {
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

	ctx := &pyExtractCtx{path: path, src: source, rec: &rec}
	ctx.walkModule(tree.RootNode())
	return rec, nil
}

type pyExtractCtx struct {
	path string
	src  []byte
	rec  *ParseRecord
}

func (c *pyExtractCtx) text(n *sitter.Node) string { return byteSlice(c.src, n) }

func (c *pyExtractCtx) walkModule(root *sitter.Node) {
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "import_statement", "import_from_statement":
			c.extractImport(n)
		case "function_definition":
			c.extractFunction(n, "")
		case "class_definition":
			c.extractClass(n)
		case "expression_statement":
			c.extractModuleAssignment(n)
		}
	}
}

func (c *pyExtractCtx) extractImport(n *sitter.Node) {
	if n.Kind() == "import_from_statement" {
		moduleNode := n.ChildByFieldName("module_name")
		module := ""
		if moduleNode != nil {
			module = c.text(moduleNode)
		}
		var symbols []string
		for _, name := range childrenByType(n, "dotted_name") {
			if moduleNode != nil && name.StartByte() == moduleNode.StartByte() {
				continue
			}
			symbols = append(symbols, c.text(name))
		}
		for _, alias := range childrenByType(n, "aliased_import") {
			if nameNode := alias.ChildByFieldName("name"); nameNode != nil {
				symbols = append(symbols, c.text(nameNode))
			}
		}
		c.rec.Imports = append(c.rec.Imports, model.Import{Module: module, FilePath: c.path, Line: lineOf(n)})
		c.rec.ImportLinks = append(c.rec.ImportLinks, model.ImportLink{
			ImporterFile: c.path, ImportedModule: module, ImportedSymbols: symbols, ImportLine: lineOf(n),
		})
		return
	}
	for _, name := range childrenByType(n, "dotted_name") {
		module := c.text(name)
		c.rec.Imports = append(c.rec.Imports, model.Import{Module: module, FilePath: c.path, Line: lineOf(n)})
		c.rec.ImportLinks = append(c.rec.ImportLinks, model.ImportLink{
			ImporterFile: c.path, ImportedModule: module, ImportLine: lineOf(n),
		})
	}
	for _, alias := range childrenByType(n, "aliased_import") {
		if nameNode := alias.ChildByFieldName("name"); nameNode != nil {
			module := c.text(nameNode)
			c.rec.Imports = append(c.rec.Imports, model.Import{Module: module, FilePath: c.path, Line: lineOf(n)})
			c.rec.ImportLinks = append(c.rec.ImportLinks, model.ImportLink{
				ImporterFile: c.path, ImportedModule: module, ImportLine: lineOf(n),
			})
		}
	}
}

func (c *pyExtractCtx) extractFunction(n *sitter.Node, parentClass string) {
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
		c.extractParamTypes(params, name)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		sym.ReturnType = c.text(ret)
	}
	c.rec.Symbols = append(c.rec.Symbols, sym)
	if body := n.ChildByFieldName("body"); body != nil {
		c.extractCalls(body, name)
	}
}

func (c *pyExtractCtx) extractParamTypes(params *sitter.Node, ownerName string) {
	for _, p := range childrenByType(params, "typed_parameter") {
		id := childByType(p, "identifier")
		tnode := p.ChildByFieldName("type")
		if id == nil || tnode == nil {
			continue
		}
		c.rec.TypeInfos = append(c.rec.TypeInfos, model.TypeInfo{
			Name:           c.text(id),
			TypeAnnotation: c.text(tnode),
			FilePath:       c.path,
			Line:           lineOf(p),
		})
	}
}

func (c *pyExtractCtx) extractClass(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	className := c.text(nameNode)
	sym := model.Symbol{
		Name:      className,
		Type:      model.SymbolClass,
		FilePath:  c.path,
		StartLine: lineOf(n),
		EndLine:   endLineOf(n),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	}
	c.rec.Symbols = append(c.rec.Symbols, sym)

	if argList := n.ChildByFieldName("superclasses"); argList != nil {
		for _, base := range childrenByType(argList, "identifier") {
			c.rec.MethodCalls = append(c.rec.MethodCalls, model.MethodCall{
				CallerFile: c.path,
				Line:       lineOf(argList),
				Receiver:   className,
				Method:     "__bases__:" + c.text(base),
			})
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	bodyCount := body.ChildCount()
	for i := uint(0); i < bodyCount; i++ {
		member := body.Child(i)
		if member != nil && member.Kind() == "function_definition" {
			c.extractFunction(member, className)
		}
	}
}

func (c *pyExtractCtx) extractModuleAssignment(n *sitter.Node) {
	assign := childByType(n, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	c.rec.Symbols = append(c.rec.Symbols, model.Symbol{
		Name:      c.text(left),
		Type:      model.SymbolVariable,
		FilePath:  c.path,
		StartLine: lineOf(n),
		EndLine:   endLineOf(n),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	})
}

func (c *pyExtractCtx) extractCalls(body *sitter.Node, callerSymbol string) {
	walk(body, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Kind() {
		case "identifier":
			c.rec.Calls = append(c.rec.Calls, model.Call{CallerFile: c.path, Callee: c.text(fn), Line: lineOf(n)})
		case "attribute":
			object := fn.ChildByFieldName("object")
			attr := fn.ChildByFieldName("attribute")
			if object == nil || attr == nil {
				return true
			}
			c.rec.MethodCalls = append(c.rec.MethodCalls, model.MethodCall{
				CallerFile: c.path, Line: lineOf(n), Receiver: c.text(object), Method: c.text(attr),
			})
		}
		return true
	})
}

func (a *pythonAdapter) Validate(source []byte) (bool, []string) {
	return validateWithParser(a.lang, source)
}
