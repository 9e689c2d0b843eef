// Package resolve implements the resolution pipeline of spec.md §4.5
// (C5): three successive passes purely over the store, run once after a
// build or incremental update completes, plus on-demand MRO, call-graph
// and type-inference queries (mro.go). Grounded on the teacher's
// internal/symbollinker resolver interfaces (go_resolver.go's
// "resolve imports, then types, then inheritance" staging) — reworked
// here from an in-memory graph walk into store-backed SQL passes, since
// this module's authority for resolved state is the relational store,
// not an in-process symbol table.
package resolve

import (
	"context"
	"fmt"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// RunAll runs the three stored passes in the order §4.4 mandates:
// imports -> types+methods -> inheritance. MRO/call-graph/type-inference
// are on-demand queries (mro.go) and are not run here.
func RunAll(ctx context.Context, s *store.Store) error {
	if err := ResolveImports(ctx, s); err != nil {
		return err
	}

	typeRefs, err := ResolveTypesAndMethods(ctx, s)
	if err != nil {
		return err
	}
	inheritRefs, err := ResolveInheritance(ctx, s)
	if err != nil {
		return err
	}

	refs := dedupeReferences(append(typeRefs, inheritRefs...))

	// Every pass recomputes its references from scratch, so the relation
	// is cleared once up front and rewritten in full.
	if err := s.ClearSymbolReferences(ctx); err != nil {
		return err
	}
	return s.WriteSymbolReferences(ctx, refs)
}

// dedupeReferences implements §4.5's tie-break rule: when two resolved
// references share the same source site, reference type and target
// symbol (e.g. a
// method resolved both by an explicit annotation and by inference), the
// highest-confidence one wins; ties break on the lexicographically
// smaller target_file.
func dedupeReferences(refs []model.SymbolReference) []model.SymbolReference {
	groups := make(map[string][]model.SymbolReference, len(refs))
	var order []string
	for _, r := range refs {
		key := fmt.Sprintf("%s|%d|%s|%s|%s", r.SourceFile, r.SourceLine, r.SourceSymbol, r.ReferenceType, r.TargetSymbol)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]model.SymbolReference, 0, len(order))
	for _, key := range order {
		out = append(out, tieBreak(groups[key]))
	}
	return out
}

// tieBreak picks the winner among candidate targets for the same
// reference: highest confidence wins, ties broken by lexicographically
// smaller target_file.
func tieBreak(candidates []model.SymbolReference) model.SymbolReference {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
			continue
		}
		if c.Confidence == best.Confidence && c.TargetFile < best.TargetFile {
			best = c
		}
	}
	return best
}
