package blueprint

import (
	"context"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// cycleKind mirrors cycle_detector.py's CycleType constants.
type cycleKind string

const (
	cycleImport      cycleKind = "import_cycle"
	cycleCall        cycleKind = "call_cycle"
	cycleInheritance cycleKind = "inheritance_cycle"
)

// cycle is one detected circular dependency.
type cycle struct {
	Kind cycleKind
	Path []string
}

type cycleDetector struct {
	store *store.Store
}

func newCycleDetector(s *store.Store) *cycleDetector {
	return &cycleDetector{store: s}
}

// Detect builds the import, call, and inheritance graphs for the whole
// project and returns every cycle found in them; filePath does not
// narrow the result.
// Grounded on cycle_detector.py's three _detect_*_cycles methods, each a
// DFS with a recursion-stack membership check; adapted to Cerberus's
// actual model.ReferenceType constants (RefMethodCall, RefInherits) and
// to import_links for file-level import edges, since there is no
// generic "function_call"/"inherits_from" reference type here the way
// the original's dependencies table has.
func (d *cycleDetector) Detect(ctx context.Context, filePath string) ([]cycle, error) {
	links, err := d.store.AllImportLinks(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := d.store.AllSymbolReferences(ctx)
	if err != nil {
		return nil, err
	}

	importGraph := make(map[string][]string)
	for _, l := range links {
		if l.DefinitionFile == "" || l.DefinitionFile == l.ImporterFile {
			continue
		}
		importGraph[l.ImporterFile] = append(importGraph[l.ImporterFile], l.DefinitionFile)
	}

	callGraph := make(map[string][]string)
	inheritGraph := make(map[string][]string)
	for _, r := range refs {
		if r.TargetSymbol == "" {
			continue
		}
		switch r.ReferenceType {
		case model.RefMethodCall:
			callGraph[r.SourceSymbol] = append(callGraph[r.SourceSymbol], r.TargetSymbol)
		case model.RefInherits:
			inheritGraph[r.SourceSymbol] = append(inheritGraph[r.SourceSymbol], r.TargetSymbol)
		}
	}

	var cycles []cycle
	cycles = append(cycles, findCycles(importGraph, cycleImport)...)
	cycles = append(cycles, findCycles(callGraph, cycleCall)...)
	cycles = append(cycles, findCycles(inheritGraph, cycleInheritance)...)

	return cycles, nil
}

// findCycles runs a DFS with an explicit recursion stack over graph,
// reporting a cycle as soon as a back-edge into the current stack is
// found, matching cycle_detector.py's dfs closures exactly (recursion
// stack membership, not just global visited, is what proves a cycle
// rather than a shared descendant).
func findCycles(graph map[string][]string, kind cycleKind) []cycle {
	visited := make(map[string]bool)
	var cycles []cycle

	var stack []string
	onStack := make(map[string]bool)

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		stack = append(stack, node)
		onStack[node] = true

		for _, neighbor := range graph[node] {
			if onStack[neighbor] {
				start := indexOf(stack, neighbor)
				path := append([]string{}, stack[start:]...)
				cycles = append(cycles, cycle{Kind: kind, Path: path})
			} else if !visited[neighbor] {
				dfs(neighbor)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[node] = false
	}

	for node := range graph {
		if !visited[node] {
			dfs(node)
		}
	}
	return cycles
}

func indexOf(s []string, v string) int {
	for i, item := range s {
		if item == v {
			return i
		}
	}
	return 0
}

// symbolsInCycles returns the set of symbol/file names appearing in any
// cycle's path, used to flag individual nodes as InCycle when rendering
// the overlay for filePath.
func symbolsInCycles(filePath string, cycles []cycle) map[string]bool {
	in := make(map[string]bool)
	for _, c := range cycles {
		for _, member := range c.Path {
			in[member] = true
		}
	}
	return in
}
