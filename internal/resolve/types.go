package resolve

import (
	"context"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// varType is the type tracker's resolved type for one (file, variable)
// binding, with enough provenance to pick the right confidence tier.
type varType struct {
	typeName   string
	annotated  bool // true if this came from an explicit annotation, false if inferred
}

// ResolveTypesAndMethods is the second pass: build a per-file variable ->
// type map from type_infos, then use it to resolve every method_calls row
// to the symbol it actually invokes. Grounded on the teacher's
// go_extractor.go receiver-type tracking, generalized from Go's single
// static-receiver model to the annotated-or-inferred bindings Python/JS/TS
// need. Returns the resolved references rather than writing them, so
// RunAll can dedupe across passes before committing.
func ResolveTypesAndMethods(ctx context.Context, s *store.Store) ([]model.SymbolReference, error) {
	infos, err := s.AllTypeInfos(ctx)
	if err != nil {
		return nil, err
	}

	types := make(map[string]map[string]varType) // file -> variable -> type
	for _, ti := range infos {
		byVar, ok := types[ti.FilePath]
		if !ok {
			byVar = make(map[string]varType)
			types[ti.FilePath] = byVar
		}
		if ti.TypeAnnotation != "" {
			byVar[ti.Name] = varType{typeName: stripGeneric(ti.TypeAnnotation), annotated: true}
		} else if ti.InferredType != "" {
			if _, exists := byVar[ti.Name]; !exists {
				byVar[ti.Name] = varType{typeName: constructorTarget(ti.InferredType), annotated: false}
			}
		}
	}

	var refs []model.SymbolReference

	// Emit type_annotation / instance_of references straight from the
	// type map, when the bound type names a known container symbol.
	for file, byVar := range types {
		for name, vt := range byVar {
			container, err := findContainer(ctx, s, vt.typeName)
			if err != nil {
				return nil, err
			}
			if container == nil {
				continue
			}
			refType := model.RefTypeAnnotation
			confidence := model.ConfidenceTypeAnnotation
			if !vt.annotated {
				refType = model.RefInstanceOf
				confidence = model.ConfidenceClassInstantiation
			}
			refs = append(refs, model.SymbolReference{
				SourceFile:       file,
				SourceSymbol:     name,
				ReferenceType:    refType,
				TargetFile:       container.FilePath,
				TargetSymbol:     container.Name,
				TargetType:       string(container.Type),
				Confidence:       confidence,
				ResolutionMethod: "type_tracker",
			})
		}
	}

	calls, err := s.AllMethodCalls(ctx)
	if err != nil {
		return nil, err
	}
	for _, mc := range calls {
		if strings.HasPrefix(mc.Method, "__bases__:") || strings.HasPrefix(mc.Method, "extends:") {
			continue // inheritance markers, handled by ResolveInheritance
		}

		receiverType := mc.ReceiverType
		confidence := model.ConfidenceHeuristic
		if receiverType == "" {
			if byVar, ok := types[mc.CallerFile]; ok {
				if vt, ok := byVar[mc.Receiver]; ok {
					receiverType = vt.typeName
					if vt.annotated {
						confidence = model.ConfidenceTypeAnnotation
					} else {
						confidence = model.ConfidenceParameterInference
					}
				}
			}
		} else {
			confidence = model.ConfidenceTypeAnnotation
		}
		if receiverType == "" {
			continue
		}

		members, err := s.SymbolsByParentClass(ctx, receiverType)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.Name != mc.Method {
				continue
			}
			refs = append(refs, model.SymbolReference{
				SourceFile:       mc.CallerFile,
				SourceLine:       mc.Line,
				SourceSymbol:     mc.Receiver,
				ReferenceType:    model.RefMethodCall,
				TargetFile:       m.FilePath,
				TargetSymbol:     m.Name,
				TargetType:       string(m.Type),
				Confidence:       confidence,
				ResolutionMethod: "type_tracker",
			})
			break
		}
	}

	return refs, nil
}

// findContainer looks up typeName among class/struct/interface/enum
// symbols; returns nil (not an error) when nothing matches, since most
// type names (builtins, stdlib types) never will.
func findContainer(ctx context.Context, s *store.Store, typeName string) (*model.Symbol, error) {
	if typeName == "" {
		return nil, nil
	}
	candidates, err := s.SymbolsByName(ctx, typeName)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		switch c.Type {
		case model.SymbolClass, model.SymbolStruct, model.SymbolInterface, model.SymbolEnum:
			cc := c
			return &cc, nil
		}
	}
	return nil, nil
}

// stripGeneric drops a trailing generic/array/pointer decoration so
// "List[Foo]", "*Foo", "Foo[]" all key against the bare type name "Foo".
func stripGeneric(t string) string {
	t = strings.TrimPrefix(t, "*")
	t = strings.TrimSuffix(t, "[]")
	if idx := strings.IndexAny(t, "[<"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

// constructorTarget pulls the class name out of an inferred "new Foo(...)"
// or "Foo(...)" construction expression.
func constructorTarget(inferred string) string {
	inferred = strings.TrimPrefix(inferred, "new ")
	inferred = strings.TrimSpace(inferred)
	if idx := strings.Index(inferred, "("); idx >= 0 {
		inferred = inferred[:idx]
	}
	return stripGeneric(inferred)
}
