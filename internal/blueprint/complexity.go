package blueprint

import (
	"os"
	"regexp"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
)

// ComplexityMetrics is a symbol's regex-based complexity analysis — no
// AST involved, just branch-keyword counting, per spec.md §4.8. Grounded
// on complexity_analyzer.py's exact thresholds and pattern set.
type ComplexityMetrics struct {
	Lines      int    `json:"lines"`
	Complexity int    `json:"complexity"`
	Branches   int    `json:"branches"`
	Nesting    int    `json:"nesting"`
	Level      string `json:"level"` // "Low", "Medium", "High"
}

// branchPattern matches every branch-introducing keyword the original
// counts across its supported languages: if/elif/else, for/while, a
// try/except pair, boolean and/or, a ternary `? :`, and switch-style
// case labels.
var branchPattern = regexp.MustCompile(`\bif\s+|\belif\s+|\belse\s*:|\bfor\s+|\bwhile\s+|\bexcept\s+|\btry\s*:|\band\b|\bor\b|\?.*:|\bcase\s+`)

type complexityAnalyzer struct{}

func newComplexityAnalyzer() *complexityAnalyzer { return &complexityAnalyzer{} }

// Analyze reads sym's source text straight off disk and counts
// branches/lines/nesting over that byte range. A read failure (file
// moved/deleted since indexing) produces a zero-value Low result rather
// than propagating an error — complexity is a best-effort overlay.
func (a *complexityAnalyzer) Analyze(sym model.Symbol) *ComplexityMetrics {
	src, err := readSymbolSource(sym)
	if err != nil {
		return &ComplexityMetrics{Level: "Low"}
	}

	lines := strings.Split(src, "\n")
	branches := len(branchPattern.FindAllString(src, -1))
	lineCount := countCodeLines(lines)
	nesting := maxNesting(lines)
	complexity := branches + 1

	return &ComplexityMetrics{
		Lines:      lineCount,
		Complexity: complexity,
		Branches:   branches,
		Nesting:    nesting,
		Level:      complexityLevel(complexity, lineCount),
	}
}

// complexityLevel applies schemas.py's ComplexityMetrics.calculate_level
// thresholds: High at complexity>=20 or lines>=150, Medium at
// complexity>=10 or lines>=50, Low otherwise.
func complexityLevel(complexity, lines int) string {
	switch {
	case complexity >= 20 || lines >= 150:
		return "High"
	case complexity >= 10 || lines >= 50:
		return "Medium"
	default:
		return "Low"
	}
}

// countCodeLines skips blank lines and lines that are only a `#` or
// `//` comment, matching complexity_analyzer.py's _count_lines.
func countCodeLines(lines []string) int {
	count := 0
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		count++
	}
	return count
}

// maxNesting estimates nesting depth from indentation relative to the
// first non-empty line's base indent, assuming 4-space indent units —
// the same heuristic complexity_analyzer.py uses (it has no parser
// available to it either, since this overlay is deliberately not
// AST-based).
func maxNesting(lines []string) int {
	baseIndent := -1
	maxDepth := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := leadingWhitespace(l)
		if baseIndent < 0 {
			baseIndent = indent
			continue
		}
		relative := indent - baseIndent
		if relative < 0 {
			relative = 0
		}
		depth := relative / 4
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func leadingWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4 // tabs count as one indent unit, matching a 4-space convention
		} else {
			break
		}
	}
	return n
}

// readSymbolSource reads the exact byte range a symbol spans. Shared by
// every overlay that needs the raw text (complexity here; retrieval's
// BM25 indexer has its own copy since it lives in a different package
// with no shared dependency on this one).
func readSymbolSource(sym model.Symbol) (string, error) {
	content, err := os.ReadFile(sym.FilePath)
	if err != nil {
		return "", err
	}
	if sym.StartByte < 0 || sym.EndByte > len(content) || sym.StartByte > sym.EndByte {
		return "", os.ErrInvalid
	}
	return string(content[sym.StartByte:sym.EndByte]), nil
}
