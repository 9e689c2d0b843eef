package blueprint

import (
	"context"
	"path/filepath"

	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/store"
)

type diffAnalyzer struct {
	store    *store.Store
	git      *gitutil.Provider
	registry *parser.Registry
}

func newDiffAnalyzer(s *store.Store, git *gitutil.Provider) *diffAnalyzer {
	return &diffAnalyzer{store: s, git: git, registry: parser.NewRegistry()}
}

// symbolKey matches diff_analyzer.py's (name, type, parent_class) dict
// key — signature and line number are compared, not part of identity.
type symbolKey struct {
	name        string
	symbolType  model.SymbolType
	parentClass string
}

// Annotate walks bp's nodes and sets each one's DiffStatus to
// added/modified by comparing bp's current symbols against the
// symbol set parsed from ref. Nodes present only at ref (removed
// symbols) have no corresponding current Node to annotate, matching
// facade.py's behavior of only ever annotating nodes that exist in the
// current tree — a removed symbol is informational only and doesn't
// appear in bp.Nodes. Unresolvable ref content (no Git provider, file
// didn't exist at ref) silently leaves every DiffStatus empty.
func (d *diffAnalyzer) Annotate(ctx context.Context, bp *Blueprint, ref string) {
	if d.git == nil {
		return
	}

	rel := bp.FilePath
	if d.git.Root() != "" {
		if r, err := filepath.Rel(d.git.Root(), bp.FilePath); err == nil {
			rel = r
		}
	}

	content, err := d.git.Show(ctx, ref, rel)
	if err != nil {
		return
	}

	oldRecord := d.registry.Parse(bp.FilePath, []byte(content))
	oldSymbols := make(map[symbolKey]model.Symbol, len(oldRecord.Symbols))
	for _, s := range oldRecord.Symbols {
		oldSymbols[keyOf(s)] = s
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		key := keyOf(n.Symbol)
		old, existed := oldSymbols[key]
		switch {
		case !existed:
			n.Overlay.DiffStatus = "added"
		case old.Signature != n.Symbol.Signature:
			n.Overlay.DiffStatus = "modified"
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, n := range bp.Nodes {
		walk(n)
	}
}

func keyOf(s model.Symbol) symbolKey {
	return symbolKey{name: s.Name, symbolType: s.Type, parentClass: s.ParentClass}
}
