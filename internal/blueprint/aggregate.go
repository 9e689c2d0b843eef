package blueprint

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// generateAggregated walks every file under req.FilePath (honoring
// AggregateMaxDepth), builds one top-level file Node per file with its
// symbol hierarchy nested as children, and — when ShowDeps is set —
// tracks which other files reference each symbol. Falls back to a fresh
// single-file generation (no cache, diff annotation or hydration) when
// req.FilePath isn't actually a directory, matching
// facade.py._generate_aggregated's fallback.
func (g *Generator) generateAggregated(ctx context.Context, req Request) (*Blueprint, error) {
	if !isDir(req.FilePath) {
		req.Aggregate = false
		bp, err := g.generateFresh(ctx, req, req.FilePath)
		return bp, err
	}

	packagePath, err := filepath.Abs(req.FilePath)
	if err != nil {
		return nil, cerrors.NewStoreError("blueprint_aggregate_path", err)
	}

	files, err := g.packageFiles(ctx, packagePath, req.AggregateMaxDepth)
	if err != nil {
		return nil, err
	}

	var allNodes []*Node
	totalSymbols := 0
	crossFileRefs := make(map[string][]string)

	for _, file := range files {
		symbols, err := g.Store.QuerySymbolsByFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if len(symbols) == 0 {
			continue
		}

		children := BuildHierarchy(symbols)
		endLine := 0
		for _, s := range symbols {
			if s.EndLine > endLine {
				endLine = s.EndLine
			}
		}

		fileNode := &Node{
			Symbol:   fileNodeSymbol(file, endLine),
			Children: children,
		}
		allNodes = append(allNodes, fileNode)
		totalSymbols += countSymbols(children) + 1

		if req.ShowDeps {
			for _, sym := range symbols {
				refs, err := g.Store.QueryReferencesTo(ctx, sym.Name)
				if err != nil {
					return nil, err
				}
				for _, r := range refs {
					if r.SourceFile != "" && r.SourceFile != file {
						crossFileRefs[sym.Name] = append(crossFileRefs[sym.Name], r.SourceFile)
					}
				}
			}
		}
	}

	sort.Slice(allNodes, func(i, j int) bool { return allNodes[i].Symbol.FilePath < allNodes[j].Symbol.FilePath })

	bp := &Blueprint{
		FilePath:     packagePath,
		Nodes:        allNodes,
		TotalSymbols: totalSymbols,
		TotalFiles:   len(allNodes),
		GeneratedAt:  time.Now(),
	}
	if req.ShowDeps {
		bp.CrossFileRefs = crossFileRefs
	}
	return bp, nil
}

// packageFiles returns every distinct file path under packagePath,
// optionally bounded to maxDepth directory levels below it (0 = no
// bound; a file directly in packagePath is depth 0, matching
// aggregator.py's _get_package_files depth semantics).
func (g *Generator) packageFiles(ctx context.Context, packagePath string, maxDepth int) ([]string, error) {
	files, err := g.Store.AllFiles(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, f := range files {
		abs := f.AbsPath
		if abs == "" {
			abs = f.Path
		}
		if !strings.HasPrefix(abs, packagePath) {
			continue
		}
		if maxDepth > 0 {
			rel, err := filepath.Rel(packagePath, abs)
			if err != nil {
				continue
			}
			depth := strings.Count(rel, string(filepath.Separator))
			if depth > maxDepth {
				continue
			}
		}
		matched = append(matched, abs)
	}
	sort.Strings(matched)
	return matched, nil
}

// fileNodeSymbol builds a synthetic container symbol representing a
// whole file in the aggregated tree — it has no indexed Type of its own
// (the aggregator's file-level node is a grouping construct, not a
// parsed symbol), matching aggregator.py's BlueprintNode(type="file").
func fileNodeSymbol(path string, endLine int) model.Symbol {
	return model.Symbol{Name: filepath.Base(path), FilePath: path, StartLine: 1, EndLine: endLine}
}
