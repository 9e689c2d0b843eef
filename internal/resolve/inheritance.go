package resolve

import (
	"context"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// baseClassMarkers are the prefixes the parser adapters (go_adapter.go
// has no use for these; python_adapter.go and js_adapter.go do) encode a
// base-class relationship as, piggybacking on the method_calls table
// rather than adding a dedicated column for what is structurally a rare
// record.
const (
	pythonBaseMarker = "__bases__:"
	jsExtendsMarker  = "extends:"
)

// ResolveInheritance is the third pass: turn the base-class markers the
// class adapters recorded into symbol_references of type "inherits".
// Grounded on the teacher's ScopeManager class-hierarchy walk, adapted
// here to read the markers synchronously from the store instead of
// carrying a live parse tree into the resolution stage. Returns the
// resolved references rather than writing them, so RunAll can dedupe
// across passes before committing.
func ResolveInheritance(ctx context.Context, s *store.Store) ([]model.SymbolReference, error) {
	calls, err := s.AllMethodCalls(ctx)
	if err != nil {
		return nil, err
	}
	links, err := s.AllImportLinks(ctx)
	if err != nil {
		return nil, err
	}

	var refs []model.SymbolReference
	for _, mc := range calls {
		var base string
		switch {
		case strings.HasPrefix(mc.Method, pythonBaseMarker):
			base = strings.TrimPrefix(mc.Method, pythonBaseMarker)
		case strings.HasPrefix(mc.Method, jsExtendsMarker):
			base = strings.TrimPrefix(mc.Method, jsExtendsMarker)
		default:
			continue
		}
		if base == "" || base == "object" {
			continue
		}

		candidates, err := s.SymbolsByName(ctx, base)
		if err != nil {
			return nil, err
		}
		var target *model.Symbol
		for _, c := range candidates {
			switch c.Type {
			case model.SymbolClass, model.SymbolInterface, model.SymbolStruct:
				cc := c
				target = &cc
			}
			if target != nil {
				break
			}
		}
		if target == nil {
			continue
		}

		// §4.5.3's resolution order: same file (1.0) -> import table (0.95)
		// -> same package directory (0.7) -> unresolved (skip, external).
		var confidence float64
		switch {
		case target.FilePath == mc.CallerFile:
			confidence = model.ConfidenceInheritSameFile
		case resolvedByImport(links, mc.CallerFile, target.FilePath):
			confidence = model.ConfidenceInheritImported
		case samePackageDir(target.FilePath, mc.CallerFile):
			confidence = model.ConfidenceInheritSamePackage
		default:
			continue
		}

		refs = append(refs, model.SymbolReference{
			SourceFile:       mc.CallerFile,
			SourceLine:       mc.Line,
			SourceSymbol:     mc.Receiver,
			ReferenceType:    model.RefInherits,
			TargetFile:       target.FilePath,
			TargetSymbol:     target.Name,
			TargetType:       string(target.Type),
			Confidence:       confidence,
			ResolutionMethod: "inheritance_marker",
		})
	}

	return refs, nil
}

func resolvedByImport(links []model.ImportLink, importerFile, defFile string) bool {
	for _, l := range links {
		if l.ImporterFile == importerFile && l.DefinitionFile == defFile {
			return true
		}
	}
	return false
}

func samePackageDir(a, b string) bool {
	return dirOf(a) == dirOf(b)
}

func dirOf(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}
