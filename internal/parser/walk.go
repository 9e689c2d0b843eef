package parser

import sitter "github.com/tree-sitter/go-tree-sitter"

// childByType returns the first direct child of node whose Kind() equals
// kind, or nil. Grounded on the teacher's FindChildByType helper used
// throughout internal/symbollinker's per-language extractors.
func childByType(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// childrenByType returns every direct child matching kind.
func childrenByType(node *sitter.Node, kind string) []*sitter.Node {
	var out []*sitter.Node
	if node == nil {
		return out
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			out = append(out, child)
		}
	}
	return out
}

// walk calls visit on node and every descendant, depth-first. visit
// returns false to stop descending into that node's children (used to
// avoid re-entering a nested function/class body from the outer walk).
func walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		walk(node.Child(i), visit)
	}
}
