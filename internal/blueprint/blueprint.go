// Package blueprint implements the blueprint core of spec.md §4.8 (C8):
// given {file_path, flags}, produces a hierarchical tree of a file's
// top-level symbols with methods nested under their class, optionally
// enriched with dependency, complexity, churn, coverage, stability,
// cycle-membership, and diff overlays, cached in the store keyed by
// mtime+flags. Grounded on original_source/src/cerberus/blueprint's
// facade.py for the orchestration shape (cache check, overlay
// application order, diff annotation, auto-hydration), reimplemented
// without its ASCII tree renderer and CLI formatter — spec.md's
// non-goals carve those out as an external front-end's job.
package blueprint

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// Node is one symbol in the blueprint tree. Methods are nested under
// their class/struct's Children; every other top-level symbol has none.
type Node struct {
	Symbol   model.Symbol `json:"symbol"`
	Overlay  Overlay      `json:"overlay"`
	Children []*Node      `json:"children,omitempty"`
}

// Overlay carries every enrichment a Node may have, one field per
// overlay kind. A nil/zero field means that overlay wasn't requested or
// produced no data, mirroring schemas.py's SymbolOverlay with all-optional
// fields.
type Overlay struct {
	Dependencies []DependencyInfo `json:"dependencies,omitempty"`
	Complexity   *ComplexityMetrics `json:"complexity,omitempty"`
	Churn        *ChurnMetrics      `json:"churn,omitempty"`
	Coverage     *CoverageMetrics   `json:"coverage,omitempty"`
	Stability    *StabilityScore    `json:"stability,omitempty"`
	InCycle      bool               `json:"in_cycle,omitempty"`
	CycleInfo    string             `json:"cycle_info,omitempty"`
	// DiffStatus is "added" or "modified" when diff annotation is
	// requested; empty means unchanged or not requested.
	// Kept as its own field rather than reusing CycleInfo the way the
	// original does ("reuse since rarely both used") — Go has no reason
	// to share a field just to save one struct member.
	DiffStatus string `json:"diff_status,omitempty"`
}

// Blueprint is the complete result for one file, or — when produced by
// --aggregate — for a whole package directory, in which case Nodes holds
// one synthetic file-container node per file and TotalFiles/CrossFileRefs
// are populated alongside it.
type Blueprint struct {
	FilePath      string              `json:"file_path"`
	Nodes         []*Node             `json:"nodes"`
	TotalSymbols  int                 `json:"total_symbols"`
	Cached        bool                `json:"cached"`
	GeneratedAt   time.Time           `json:"generated_at"`
	HydratedFiles []HydratedFile      `json:"hydrated_files,omitempty"`
	TotalFiles    int                 `json:"total_files,omitempty"`
	CrossFileRefs map[string][]string `json:"cross_file_refs,omitempty"`
}

// HydratedFile is one auto-hydrated dependency attached by the hydration
// overlay (§4.8's auto-hydration, hydrate.go).
type HydratedFile struct {
	FilePath       string     `json:"file_path"`
	ReferenceCount int        `json:"reference_count"`
	Blueprint      *Blueprint `json:"blueprint"`
}

// countSymbols recursively counts nodes including nested children,
// matching Blueprint.count_symbols in the original.
func countSymbols(nodes []*Node) int {
	count := len(nodes)
	for _, n := range nodes {
		count += countSymbols(n.Children)
	}
	return count
}

// Request is the set of flags a caller passes to Generate, one field per
// CLI flag spec.md §6 names (`--deps`, `--meta`, `--churn`, `--coverage`,
// `--stability`, `--cycles`, `--hydrate`, `--diff`, `--aggregate`).
type Request struct {
	FilePath          string
	ShowDeps          bool
	ShowMeta          bool
	ShowChurn         bool
	ShowCoverage      bool
	ShowStability     bool
	ShowCycles        bool
	ShowHydrate       bool
	DiffRef           string
	Aggregate         bool
	AggregateMaxDepth int
	FastMode          bool
	UseCache          bool
}

// Generator orchestrates tree building, overlay application, caching,
// diff annotation, and hydration for one project. One Generator is built
// per open index; Git may be nil when the project root isn't a git
// working tree, which silently disables the churn/diff overlays.
type Generator struct {
	Store       *store.Store
	Git         *gitutil.Provider
	Cache       *Cache
	Cfg         config.Blueprint
	ProjectRoot string

	dependencies *dependencyOverlay
	complexity   *complexityAnalyzer
	churn        *churnAnalyzer
	coverage     *coverageAnalyzer
	cycles       *cycleDetector
	diffs        *diffAnalyzer
	hydration    *hydrationAnalyzer
}

// New builds a Generator. git may be nil (no churn/diff overlays);
// cache may be nil (every request is generated fresh).
func New(s *store.Store, git *gitutil.Provider, cache *Cache, cfg config.Blueprint, projectRoot string) *Generator {
	return &Generator{
		Store:       s,
		Git:         git,
		Cache:       cache,
		Cfg:         cfg,
		ProjectRoot: projectRoot,

		dependencies: newDependencyOverlay(s, projectRoot),
		complexity:   newComplexityAnalyzer(),
		churn:        newChurnAnalyzer(git),
		coverage:     newCoverageAnalyzer(cfg.CoverageJSONPath, projectRoot),
		cycles:       newCycleDetector(s),
		diffs:        newDiffAnalyzer(s, git),
		hydration:    newHydrationAnalyzer(s, projectRoot, cfg.HydrationBudgetTokens),
	}
}

// Generate produces a Blueprint (or delegates to the aggregator for a
// directory path) per request's flags, per facade.py's BlueprintGenerator.generate.
func (g *Generator) Generate(ctx context.Context, req Request) (*Blueprint, error) {
	if req.Aggregate || isDir(req.FilePath) {
		req.Aggregate = true
		return g.generateAggregated(ctx, req)
	}

	absPath, err := filepath.Abs(req.FilePath)
	if err != nil {
		return nil, cerrors.NewStoreError("blueprint_abs_path", err)
	}

	flags := cacheFlags{
		Deps:      req.ShowDeps,
		Meta:      req.ShowMeta,
		Fast:      req.FastMode,
		Churn:     req.ShowChurn,
		Coverage:  req.ShowCoverage,
		Stability: req.ShowStability,
		Cycles:    req.ShowCycles,
		Diff:      req.DiffRef != "",
		Hydrate:   req.ShowHydrate,
	}

	useCache := req.UseCache && !req.FastMode && req.DiffRef == ""
	if useCache && g.Cache != nil {
		if bp, ok, err := g.Cache.Get(ctx, absPath, flags); err != nil {
			return nil, err
		} else if ok {
			return bp, nil
		}
	}

	bp, err := g.generateFresh(ctx, req, absPath)
	if err != nil {
		return nil, err
	}

	if req.DiffRef != "" {
		g.diffs.Annotate(ctx, bp, req.DiffRef)
	}

	if req.ShowHydrate && req.ShowDeps {
		g.hydration.Apply(ctx, bp, g)
	}

	if useCache && g.Cache != nil {
		if err := g.Cache.Set(ctx, absPath, flags, bp); err != nil {
			return nil, err
		}
	}

	return bp, nil
}

func (g *Generator) generateFresh(ctx context.Context, req Request, absPath string) (*Blueprint, error) {
	symbols, err := g.Store.QuerySymbolsByFile(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		// The store may key rows by a path relative to the project root
		// rather than absolute; retry before giving up, matching
		// facade.py._query_symbols's multi-path fallback.
		if rel, relErr := filepath.Rel(g.ProjectRoot, absPath); relErr == nil {
			symbols, err = g.Store.QuerySymbolsByFile(ctx, rel)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(symbols) == 0 {
		return &Blueprint{FilePath: absPath, GeneratedAt: time.Now()}, nil
	}

	nodes := BuildHierarchy(symbols)

	anyOverlay := req.ShowDeps || req.ShowMeta || req.ShowChurn || req.ShowCoverage || req.ShowStability || req.ShowCycles
	if anyOverlay {
		if err := g.applyOverlays(ctx, nodes, symbols, absPath, req); err != nil {
			return nil, err
		}
	}

	bp := &Blueprint{FilePath: absPath, Nodes: nodes, GeneratedAt: time.Now()}
	bp.TotalSymbols = countSymbols(bp.Nodes)
	return bp, nil
}

func (g *Generator) applyOverlays(ctx context.Context, nodes []*Node, symbols []model.Symbol, filePath string, req Request) error {
	g.churn.cache = make(map[string][]gitutil.BlameLine)

	byName := make(map[string]model.Symbol, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s
	}

	var inCycle map[string]bool
	if req.ShowCycles {
		cycles, err := g.cycles.Detect(ctx, filePath)
		if err != nil {
			return err
		}
		inCycle = symbolsInCycles(filePath, cycles)
	}

	var walk func(n *Node) error
	walk = func(n *Node) error {
		sym, ok := byName[n.Symbol.Name]
		if !ok {
			sym = n.Symbol
		}

		if req.ShowDeps && !req.FastMode {
			deps, err := g.dependencies.Get(ctx, sym)
			if err != nil {
				return err
			}
			n.Overlay.Dependencies = deps
		}

		if req.ShowMeta && !req.FastMode {
			n.Overlay.Complexity = g.complexity.Analyze(sym)
		}

		if req.ShowChurn && !req.FastMode {
			n.Overlay.Churn = g.churn.Analyze(ctx, sym)
		}

		if req.ShowCoverage && !req.FastMode {
			n.Overlay.Coverage = g.coverage.Analyze(sym)
		}

		if req.ShowCycles && inCycle[n.Symbol.Name] {
			n.Overlay.InCycle = true
			n.Overlay.CycleInfo = "part of circular dependency"
		}

		if req.ShowStability && !req.FastMode {
			complexity := n.Overlay.Complexity
			if complexity == nil && req.ShowMeta {
				complexity = g.complexity.Analyze(sym)
			}
			churn := n.Overlay.Churn
			if churn == nil && req.ShowChurn {
				churn = g.churn.Analyze(ctx, sym)
			}
			coverage := n.Overlay.Coverage
			if coverage == nil && req.ShowCoverage {
				coverage = g.coverage.Analyze(sym)
			}
			if stability := CalculateStability(complexity, churn, coverage, n.Overlay.Dependencies, g.Cfg.StabilityWeights); stability != nil {
				n.Overlay.Stability = stability
			}
		}

		for _, child := range n.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range nodes {
		if err := walk(n); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
