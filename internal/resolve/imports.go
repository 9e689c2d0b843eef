package resolve

import (
	"context"
	"path"
	"strings"

	"github.com/proxikal/cerberus/internal/store"
)

// source extensions the path heuristic tries when a module string has
// none of its own (Go import paths and Python dotted modules never carry
// one; JS/TS relative imports sometimes omit it too).
var candidateExtensions = []string{".go", ".py", ".js", ".jsx", ".ts", ".tsx"}

// ResolveImports is the first pass: for every import_links row, find the
// file that defines the imported module, and within it the imported
// symbols. Grounded on the teacher's go_resolver.go import-resolution
// step, generalized here from Go-only module paths to the relative and
// dotted forms Python/JS/TS also use.
func ResolveImports(ctx context.Context, s *store.Store) error {
	links, err := s.AllImportLinks(ctx)
	if err != nil {
		return err
	}
	files, err := s.AllFiles(ctx)
	if err != nil {
		return err
	}
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f.Path] = true
	}

	for _, link := range links {
		defFile := resolveModuleToFile(link.ImporterFile, link.ImportedModule, fileSet)

		var defSymbol string
		if defFile != "" && len(link.ImportedSymbols) > 0 {
			var resolved []string
			for _, want := range link.ImportedSymbols {
				want = strings.TrimSpace(want)
				if want == "" || want == "*" {
					continue
				}
				candidates, err := s.SymbolsByName(ctx, want)
				if err != nil {
					return err
				}
				for _, c := range candidates {
					if c.FilePath == defFile {
						resolved = append(resolved, c.Name)
						break
					}
				}
			}
			defSymbol = strings.Join(resolved, ",")
		}

		if defFile == "" && len(link.ImportedSymbols) == 1 {
			// Heuristic fallback (§3's "heuristic" confidence tier): if the
			// imported name is unique across the whole store, trust it.
			want := strings.TrimSpace(link.ImportedSymbols[0])
			if want != "" && want != "*" {
				candidates, err := s.SymbolsByName(ctx, want)
				if err != nil {
					return err
				}
				if len(candidates) == 1 {
					defFile = candidates[0].FilePath
					defSymbol = candidates[0].Name
				}
			}
		}

		if defFile == "" && defSymbol == "" {
			continue
		}
		if err := s.UpdateImportLinkDefinition(ctx, link.ImporterFile, link.ImportedModule, defFile, defSymbol); err != nil {
			return err
		}
	}
	return nil
}

// resolveModuleToFile turns an import's module string into one of the
// store's known file paths, or "" if no candidate matches. Handles three
// shapes: relative paths (./x, ../x), dotted module paths (a.b.c), and
// bare package names (resolved against any file whose base name matches).
func resolveModuleToFile(importerFile, module string, fileSet map[string]bool) string {
	if module == "" {
		return ""
	}

	if strings.HasPrefix(module, ".") {
		base := path.Dir(importerFile)
		joined := path.Clean(path.Join(base, module))
		if hit := matchWithExtensions(joined, fileSet); hit != "" {
			return hit
		}
		// directory-style import: package/__init__ or index file.
		for _, name := range []string{"__init__", "index", "mod"} {
			if hit := matchWithExtensions(path.Join(joined, name), fileSet); hit != "" {
				return hit
			}
		}
		return ""
	}

	dotted := strings.ReplaceAll(module, ".", "/")
	if hit := matchWithExtensions(dotted, fileSet); hit != "" {
		return hit
	}

	// Bare package path (Go-style or node_modules-style): match on the
	// final path segment against every known file's base name.
	last := dotted
	if idx := strings.LastIndex(dotted, "/"); idx >= 0 {
		last = dotted[idx+1:]
	}
	var onlyMatch string
	matches := 0
	for f := range fileSet {
		base := path.Base(f)
		base = strings.TrimSuffix(base, path.Ext(base))
		if base == last {
			onlyMatch = f
			matches++
		}
	}
	if matches == 1 {
		return onlyMatch
	}
	return ""
}

func matchWithExtensions(p string, fileSet map[string]bool) string {
	if fileSet[p] {
		return p
	}
	for _, ext := range candidateExtensions {
		if fileSet[p+ext] {
			return p + ext
		}
	}
	return ""
}
