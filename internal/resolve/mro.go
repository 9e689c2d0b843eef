package resolve

import (
	"context"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// DefaultMaxDepth bounds the MRO and call-graph walks when a caller
// doesn't specify one.
const DefaultMaxDepth = 12

// MRO computes the method resolution order for class/interface/struct
// symbol name start: itself first, then each ancestor reached by
// following reference_type=inherits edges depth-first, cycle-guarded.
// On-demand per §4.5.4, not materialized by RunAll.
func MRO(ctx context.Context, s *store.Store, start string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	visited := map[string]bool{start: true}
	order := []string{start}

	var walk func(class string, depth int) error
	walk = func(class string, depth int) error {
		if depth >= maxDepth {
			return nil
		}
		refs, err := s.QueryReferencesFrom(ctx, class)
		if err != nil {
			return err
		}
		for _, r := range refs {
			if r.ReferenceType != model.RefInherits || r.TargetSymbol == "" {
				continue
			}
			if visited[r.TargetSymbol] {
				continue // cycle guard
			}
			visited[r.TargetSymbol] = true
			order = append(order, r.TargetSymbol)
			if err := walk(r.TargetSymbol, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(start, 0); err != nil {
		return nil, err
	}
	return order, nil
}

// ResolveMethodOnChain finds a method by name on class, preferring a
// direct definition over one inherited via the MRO chain, per §4.5's
// tie-break rule.
func ResolveMethodOnChain(ctx context.Context, s *store.Store, class, method string, maxDepth int) (model.Symbol, bool, error) {
	chain, err := MRO(ctx, s, class, maxDepth)
	if err != nil {
		return model.Symbol{}, false, err
	}
	for _, c := range chain {
		members, err := s.SymbolsByParentClass(ctx, c)
		if err != nil {
			return model.Symbol{}, false, err
		}
		for _, m := range members {
			if m.Name == method {
				return m, true, nil
			}
		}
	}
	return model.Symbol{}, false, nil
}

// noiseWords are call targets common enough across languages that
// following them into the call graph produces no useful signal.
var noiseWords = map[string]bool{
	"len": true, "print": true, "println": true, "string": true, "int": true,
	"append": true, "make": true, "new": true, "str": true, "repr": true,
	"log": true, "panic": true, "recover": true, "error": true,
}

// CallGraphNode is one frame of a forward/reverse call-graph walk.
type CallGraphNode struct {
	Symbol string
	File   string
	Depth  int
}

// CallGraph walks forward (callee) or reverse (caller) from start over
// the resolved method_call rows of symbol_references, pruned by
// noiseWords, bounded by maxDepth/maxNodes/maxEdges. Plain calls rows and
// unresolved method calls are not followed, and no receiver-type filter
// is applied beyond what the type+method pass resolved. Returns the
// visited nodes and whether the walk was truncated by a bound.
func CallGraph(ctx context.Context, s *store.Store, start string, reverse bool, maxDepth, maxNodes, maxEdges int) ([]CallGraphNode, bool, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxNodes <= 0 {
		maxNodes = 500
	}
	if maxEdges <= 0 {
		maxEdges = 2000
	}

	visited := map[string]bool{start: true}
	nodes := []CallGraphNode{{Symbol: start, Depth: 0}}
	queue := []CallGraphNode{{Symbol: start, Depth: 0}}
	edges := 0
	truncated := false

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Depth >= maxDepth {
			continue
		}

		var refs []model.SymbolReference
		var err error
		if reverse {
			refs, err = s.QueryReferencesTo(ctx, cur.Symbol)
		} else {
			refs, err = s.QueryReferencesFrom(ctx, cur.Symbol)
		}
		if err != nil {
			return nil, false, err
		}

		for _, r := range refs {
			if r.ReferenceType != model.RefMethodCall {
				continue
			}
			next := r.TargetSymbol
			if reverse {
				next = r.SourceSymbol
			}
			if next == "" || noiseWords[strings.ToLower(next)] {
				continue
			}
			edges++
			if edges > maxEdges {
				truncated = true
				break
			}
			if visited[next] {
				continue
			}
			if len(nodes) >= maxNodes {
				truncated = true
				break
			}
			visited[next] = true
			node := CallGraphNode{Symbol: next, File: r.TargetFile, Depth: cur.Depth + 1}
			if reverse {
				node.File = r.SourceFile
			}
			nodes = append(nodes, node)
			queue = append(queue, node)
		}
		if truncated {
			break
		}
	}
	return nodes, truncated, nil
}

// InferType resolves the type of (variable, file) as of line, trying in
// order: an explicit annotation at or before line, an instance_of
// reference at or before line, then an import-resolved type — per
// §4.5.4's cross-file type inference order.
func InferType(ctx context.Context, s *store.Store, variable, file string, line int) (string, string, error) {
	infos, err := s.AllTypeInfos(ctx)
	if err != nil {
		return "", "", err
	}
	best := -1
	bestType := ""
	for _, ti := range infos {
		if ti.FilePath != file || ti.Name != variable || ti.TypeAnnotation == "" {
			continue
		}
		if ti.Line <= line && ti.Line > best {
			best = ti.Line
			bestType = ti.TypeAnnotation
		}
	}
	if bestType != "" {
		return bestType, "type_annotation", nil
	}

	refs, err := s.QueryReferencesFrom(ctx, variable)
	if err != nil {
		return "", "", err
	}
	bestLine := -1
	for _, r := range refs {
		if r.ReferenceType != model.RefInstanceOf || r.SourceFile != file || r.SourceLine > line {
			continue
		}
		if r.SourceLine > bestLine {
			bestLine = r.SourceLine
			bestType = r.TargetSymbol
		}
	}
	if bestType != "" {
		return bestType, "instance_of", nil
	}

	links, err := s.AllImportLinks(ctx)
	if err != nil {
		return "", "", err
	}
	for _, l := range links {
		if l.ImporterFile != file || l.DefinitionSymbol == "" {
			continue
		}
		for _, sym := range strings.Split(l.DefinitionSymbol, ",") {
			if sym == variable {
				return sym, "import_resolved", nil
			}
		}
	}
	return "", "", nil
}
