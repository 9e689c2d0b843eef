package blueprint

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// DependencyInfo is one outgoing reference from a symbol, classified as
// internal/external/stdlib. Grounded on schemas.py's DependencyInfo and
// dependency_overlay.py/dependency_classifier.py.
type DependencyInfo struct {
	Target           string  `json:"target"`
	TargetFile       string  `json:"target_file,omitempty"`
	Confidence       float64 `json:"confidence"`
	ResolutionMethod string  `json:"resolution_method,omitempty"`
	ReferenceType    string  `json:"reference_type"`
	DependencyType   string  `json:"dependency_type"` // "internal", "external", "stdlib"
}

type dependencyOverlay struct {
	store       *store.Store
	projectRoot string
}

func newDependencyOverlay(s *store.Store, projectRoot string) *dependencyOverlay {
	return &dependencyOverlay{store: s, projectRoot: projectRoot}
}

// Get returns sym's outgoing references, highest confidence first (ties
// broken by target symbol name), each tagged with a dependency_type.
// Grounded on dependency_overlay.py's get_dependencies.
func (o *dependencyOverlay) Get(ctx context.Context, sym model.Symbol) ([]DependencyInfo, error) {
	refs, err := o.store.QueryReferencesFrom(ctx, sym.Name)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	deps := make([]DependencyInfo, 0, len(refs))
	for _, r := range refs {
		deps = append(deps, DependencyInfo{
			Target:           r.TargetSymbol,
			TargetFile:       r.TargetFile,
			Confidence:       r.Confidence,
			ResolutionMethod: r.ResolutionMethod,
			ReferenceType:    string(r.ReferenceType),
			DependencyType:   o.classify(r.TargetFile, r.TargetSymbol),
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Confidence != deps[j].Confidence {
			return deps[i].Confidence > deps[j].Confidence
		}
		return deps[i].Target < deps[j].Target
	})
	return deps, nil
}

// classify mirrors dependency_classifier.py: a known target file inside
// the project root is internal, one outside it (vendor dir or GOPATH
// module cache) is external. With no target file, fall back to a
// heuristic on the symbol/import-path shape: a target whose prefix
// before the last dot is a known stdlib package name (e.g.
// "fmt.Println"), or a bare identifier with no dot or slash, is
// classified stdlib; anything else is external.
func (o *dependencyOverlay) classify(targetFile, targetSymbol string) string {
	if targetFile != "" {
		return o.classifyByFile(targetFile)
	}
	return classifyBySymbol(targetSymbol)
}

func (o *dependencyOverlay) classifyByFile(targetFile string) string {
	abs := targetFile
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(o.projectRoot, targetFile)
	}
	for _, indicator := range thirdPartyIndicators {
		if strings.Contains(abs, indicator) {
			return "external"
		}
	}
	rel, err := filepath.Rel(o.projectRoot, abs)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return "internal"
	}
	return "external"
}

// thirdPartyIndicators are path substrings marking a dependency as
// vendored/third-party rather than part of this project — the Go
// analog of dependency_classifier.py's site-packages/node_modules list.
var thirdPartyIndicators = []string{
	string(filepath.Separator) + "vendor" + string(filepath.Separator),
	string(filepath.Separator) + "node_modules" + string(filepath.Separator),
	string(filepath.Separator) + "pkg" + string(filepath.Separator) + "mod" + string(filepath.Separator),
	string(filepath.Separator) + ".venv" + string(filepath.Separator),
	string(filepath.Separator) + "site-packages" + string(filepath.Separator),
}

func classifyBySymbol(targetSymbol string) string {
	if targetSymbol == "" {
		return "external"
	}
	name := targetSymbol
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}
	if stdlibPackages[name] {
		return "stdlib"
	}
	if !strings.Contains(targetSymbol, ".") && !strings.Contains(targetSymbol, "/") {
		return "stdlib"
	}
	return "external"
}

// stdlibPackages lists the Go standard library's top-level import
// names — enough to classify the common case without a network call or
// a GOROOT scan, matching the spirit of dependency_classifier.py's
// hardcoded interpreter-stdlib set.
var stdlibPackages = map[string]bool{
	"fmt": true, "os": true, "io": true, "strings": true, "strconv": true,
	"time": true, "context": true, "errors": true, "sort": true, "sync": true,
	"bytes": true, "bufio": true, "net": true, "http": true, "json": true,
	"regexp": true, "path": true, "filepath": true, "unicode": true,
	"math": true, "reflect": true, "encoding": true, "crypto": true,
	"database": true, "testing": true, "log": true, "runtime": true,
	"container": true, "text": true, "hash": true, "compress": true,
}
