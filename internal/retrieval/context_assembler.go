package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// tokensPerLineEstimate mirrors internal/blueprint/hydrate.go's
// hydrationTokensPerSymbol-style approximation: ~4 characters per token,
// applied per line rather than per symbol since a symbol body's own
// token cost (not just its neighbors') counts against the budget here.
const tokensPerLineEstimate = 10

// defaultContextBudgetTokens is used when the caller supplies no budget.
const defaultContextBudgetTokens = 2000

// AssembledContext is the single-symbol analog of a blueprint (§4.8): the
// target symbol's own body plus its direct SymbolReference neighbors'
// signatures, bounded by a token budget, for RPC clients that want
// minimal-but-sufficient context rather than a whole file or blueprint.
type AssembledContext struct {
	Symbol      string              `json:"symbol"`
	FilePath    string              `json:"file_path"`
	Body        string              `json:"body"`
	Neighbors   []NeighborSignature `json:"neighbors"`
	TotalTokens int                 `json:"total_tokens"`
	Truncated   bool                `json:"truncated"`
}

// NeighborSignature is one direct reference's signature — never its full
// body, keeping neighbor entries cheap relative to the target's own code.
type NeighborSignature struct {
	Name          string `json:"name"`
	FilePath      string `json:"file_path"`
	Signature     string `json:"signature"`
	ReferenceType string `json:"reference_type"`
}

// AssembleContext implements SPEC_FULL.md §C's context assembler and the
// `assemble_context` RPC method: given a symbol name, read its body from
// disk and attach the signatures of everything it directly references
// and everything that directly references it, greedily adding neighbors
// while under tokenBudget (<=0 uses defaultContextBudgetTokens).
// Grounded on original_source/src/cerberus/resolution/context_assembler.py's
// ContextAssembler.assemble_context, simplified from its MRO-walking
// base-class skeletonization (already covered by blueprint hydration,
// §4.8) down to the direct symbol_references neighborhood the spec calls
// for.
func AssembleContext(ctx context.Context, s *store.Store, symbolName, filePath string, tokenBudget int) (AssembledContext, error) {
	if tokenBudget <= 0 {
		tokenBudget = defaultContextBudgetTokens
	}

	target, err := resolveTargetSymbol(ctx, s, symbolName, filePath)
	if err != nil {
		return AssembledContext{}, err
	}

	body, err := readSymbolBody(target)
	if err != nil {
		return AssembledContext{}, err
	}

	out := AssembledContext{
		Symbol:   target.Name,
		FilePath: target.FilePath,
		Body:     body,
	}
	used := estimateTokens(body)

	neighbors, err := collectNeighbors(ctx, s, target.Name)
	if err != nil {
		return AssembledContext{}, err
	}

	for _, n := range neighbors {
		cost := estimateTokens(n.Signature)
		if used+cost > tokenBudget {
			out.Truncated = true
			continue
		}
		out.Neighbors = append(out.Neighbors, n)
		used += cost
	}
	out.TotalTokens = used
	return out, nil
}

// resolveTargetSymbol mirrors _get_symbol's file_path-disambiguation:
// an exact file_path match is unambiguous; otherwise the first match in
// (file_path, start_line) order is used — the store's own deterministic
// tie-break, rather than the original's cwd/path-depth scoring heuristic.
func resolveTargetSymbol(ctx context.Context, s *store.Store, symbolName, filePath string) (model.Symbol, error) {
	matches, err := s.SymbolsByName(ctx, symbolName)
	if err != nil {
		return model.Symbol{}, err
	}
	if len(matches) == 0 {
		return s.FindSymbol(ctx, symbolName, "", "") // surfaces the NotFoundError
	}
	for _, m := range matches {
		if filePath != "" && m.FilePath == filePath {
			return m, nil
		}
	}
	return matches[0], nil
}

func readSymbolBody(sym model.Symbol) (string, error) {
	content, err := os.ReadFile(sym.FilePath)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(content), "\n")
	start := sym.StartLine - 1
	end := sym.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(lines[start:end], "\n"), nil
}

// collectNeighbors gathers every symbol directly referenced by, or
// referencing, symbolName, deduplicated and sorted by name for
// deterministic output.
func collectNeighbors(ctx context.Context, s *store.Store, symbolName string) ([]NeighborSignature, error) {
	outgoing, err := s.QueryReferencesFrom(ctx, symbolName)
	if err != nil {
		return nil, err
	}
	incoming, err := s.QueryReferencesTo(ctx, symbolName)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var names []struct {
		name string
		rt   string
	}
	for _, r := range outgoing {
		if !seen[r.TargetSymbol] {
			seen[r.TargetSymbol] = true
			names = append(names, struct {
				name string
				rt   string
			}{r.TargetSymbol, string(r.ReferenceType)})
		}
	}
	for _, r := range incoming {
		if !seen[r.SourceSymbol] {
			seen[r.SourceSymbol] = true
			names = append(names, struct {
				name string
				rt   string
			}{r.SourceSymbol, string(r.ReferenceType)})
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i].name < names[j].name })

	var out []NeighborSignature
	for _, n := range names {
		matches, err := s.SymbolsByName(ctx, n.name)
		if err != nil || len(matches) == 0 {
			continue
		}
		sym := matches[0]
		sig := sym.Signature
		if sig == "" {
			sig = fmt.Sprintf("%s %s", sym.Type, sym.Name)
		}
		out = append(out, NeighborSignature{
			Name:          sym.Name,
			FilePath:      sym.FilePath,
			Signature:     sig,
			ReferenceType: n.rt,
		})
	}
	return out, nil
}

func estimateTokens(text string) int {
	lines := strings.Count(text, "\n") + 1
	return lines * tokensPerLineEstimate
}
