package blueprint

import "github.com/proxikal/cerberus/internal/model"

// BuildHierarchy groups a flat symbol list into a tree: every symbol
// without a ParentClass becomes a top-level node, and every symbol with
// one is nested under the matching class/struct/interface node's
// Children. Grounded on facade.py's _build_hierarchy — a method whose
// ParentClass names a class never seen in this symbol set (e.g. a
// partial/failed parse) is simply dropped, matching the original's
// methods_by_class map never being consulted for unknown classes.
func BuildHierarchy(symbols []model.Symbol) []*Node {
	var topLevel []model.Symbol
	methodsByClass := make(map[string][]model.Symbol)

	for _, sym := range symbols {
		if sym.ParentClass != "" {
			methodsByClass[sym.ParentClass] = append(methodsByClass[sym.ParentClass], sym)
		} else {
			topLevel = append(topLevel, sym)
		}
	}

	nodes := make([]*Node, 0, len(topLevel))
	for _, sym := range topLevel {
		node := &Node{Symbol: sym}
		if isContainerType(sym.Type) {
			for _, method := range methodsByClass[sym.Name] {
				node.Children = append(node.Children, &Node{Symbol: method})
			}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func isContainerType(t model.SymbolType) bool {
	switch t {
	case model.SymbolClass, model.SymbolStruct, model.SymbolInterface:
		return true
	default:
		return false
	}
}
