package blueprint

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/proxikal/cerberus/internal/store"
)

const (
	hydrationMinReferences   = 3
	hydrationMaxTokens       = 2000
	hydrationTokensPerSymbol = 40
	hydrationMaxFiles        = 5
)

type hydrationAnalyzer struct {
	store       *store.Store
	projectRoot string
	tokenBudget int
}

func newHydrationAnalyzer(s *store.Store, projectRoot string, tokenBudget int) *hydrationAnalyzer {
	if tokenBudget <= 0 {
		tokenBudget = hydrationMaxTokens
	}
	return &hydrationAnalyzer{store: s, projectRoot: projectRoot, tokenBudget: tokenBudget}
}

// Apply counts cross-file dependency references in bp, picks the
// internal files referenced at least hydrationMinReferences times, and
// attaches a minimal (show_deps=false) blueprint of each under a token
// budget. Grounded on hydration_analyzer.py's analyze_for_hydration:
// count references, filter to internal files over the threshold, sort
// by reference count descending, greedily add while under budget.
func (h *hydrationAnalyzer) Apply(ctx context.Context, bp *Blueprint, g *Generator) {
	refCounts := h.countFileReferences(bp)
	if len(refCounts) == 0 {
		return
	}

	type candidate struct {
		file  string
		count int
	}
	var candidates []candidate
	for file, count := range refCounts {
		if count >= hydrationMinReferences && h.isInternal(file) {
			candidates = append(candidates, candidate{file, count})
		}
	}
	if len(candidates) == 0 {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].file < candidates[j].file
	})
	if len(candidates) > hydrationMaxFiles {
		candidates = candidates[:hydrationMaxFiles]
	}

	budget := h.tokenBudget
	spent := 0
	for _, c := range candidates {
		mini, err := g.generateFresh(ctx, Request{FilePath: c.file}, c.file)
		if err != nil || mini == nil {
			continue
		}
		cost := mini.TotalSymbols * hydrationTokensPerSymbol
		if spent+cost > budget {
			break
		}
		spent += cost
		bp.HydratedFiles = append(bp.HydratedFiles, HydratedFile{
			FilePath:       c.file,
			ReferenceCount: c.count,
			Blueprint:      mini,
		})
	}
}

// countFileReferences walks every node's dependency overlay and tallies
// how many times each distinct external target_file is referenced,
// excluding self-references to bp's own file.
func (h *hydrationAnalyzer) countFileReferences(bp *Blueprint) map[string]int {
	counts := make(map[string]int)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.Overlay.Dependencies {
			if dep.TargetFile != "" && dep.TargetFile != bp.FilePath {
				counts[dep.TargetFile]++
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, n := range bp.Nodes {
		walk(n)
	}
	return counts
}

func (h *hydrationAnalyzer) isInternal(file string) bool {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(h.projectRoot, file)
	}
	rel, err := filepath.Rel(h.projectRoot, abs)
	return err == nil && !strings.HasPrefix(rel, "..")
}
