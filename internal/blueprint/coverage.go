package blueprint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/proxikal/cerberus/internal/model"
)

// CoverageMetrics is a symbol's test coverage, grounded on
// coverage_analyzer.py and schemas.py's CoverageMetrics.
type CoverageMetrics struct {
	Percent        float64  `json:"percent"`
	CoveredLines   int      `json:"covered_lines"`
	TotalLines     int      `json:"total_lines"`
	TestFiles      []string `json:"test_files,omitempty"`
	AssertionCount int      `json:"assertion_count"`
}

// coverageFileData is one file's entry in a coverage.json report, per
// SPEC_FULL.md's documented schema: {files: {<path>: {executed_lines,
// missing_lines, summary: {percent_covered}}}}.
type coverageFileData struct {
	ExecutedLines []int `json:"executed_lines"`
	MissingLines  []int `json:"missing_lines"`
	Summary       struct {
		PercentCovered float64 `json:"percent_covered"`
	} `json:"summary"`
}

type coverageReport struct {
	Files map[string]coverageFileData `json:"files"`
}

type coverageAnalyzer struct {
	projectRoot string
	data        map[string]coverageFileData
}

// newCoverageAnalyzer auto-detects a coverage.json file the same way
// coverage_analyzer.py does (explicit path, else a short list of common
// locations relative to projectRoot), loading it eagerly. A missing or
// unparseable report simply disables this overlay — Analyze returns nil
// for every symbol rather than erroring.
func newCoverageAnalyzer(coverageJSONPath, projectRoot string) *coverageAnalyzer {
	a := &coverageAnalyzer{projectRoot: projectRoot}

	path := coverageJSONPath
	if path == "" {
		for _, candidate := range []string{"coverage.json", ".coverage.json", "htmlcov/coverage.json", "coverage/coverage.json"} {
			full := filepath.Join(projectRoot, candidate)
			if _, err := os.Stat(full); err == nil {
				path = full
				break
			}
		}
	}
	if path == "" {
		return a
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return a
	}
	var report coverageReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return a
	}
	a.data = report.Files
	return a
}

// Analyze computes coverage for sym's line range the way
// coverage_analyzer.py.analyze does: intersect the symbol's line range
// with the union of executed+missing lines, then take the executed
// fraction of that intersection. A symbol with no tracked lines at all
// is reported 100% covered (nothing executable to miss).
func (a *coverageAnalyzer) Analyze(sym model.Symbol) *CoverageMetrics {
	if a.data == nil {
		return nil
	}
	file, ok := a.findFileCoverage(sym.FilePath)
	if !ok {
		return nil
	}

	executed := toLineSet(file.ExecutedLines)
	missing := toLineSet(file.MissingLines)

	tracked := 0
	covered := 0
	for line := sym.StartLine; line <= sym.EndLine; line++ {
		if executed[line] || missing[line] {
			tracked++
			if executed[line] {
				covered++
			}
		}
	}

	if tracked == 0 {
		return &CoverageMetrics{Percent: 100.0, TestFiles: a.findTestFiles(sym)}
	}

	percent := float64(covered) / float64(tracked) * 100.0
	return &CoverageMetrics{
		Percent:      roundTo1(percent),
		CoveredLines: covered,
		TotalLines:   tracked,
		TestFiles:    a.findTestFiles(sym),
	}
}

func toLineSet(lines []int) map[int]bool {
	set := make(map[int]bool, len(lines))
	for _, l := range lines {
		set[l] = true
	}
	return set
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// findFileCoverage matches sym's file against the report's keys,
// handling absolute/relative path variance the way _find_file_coverage
// does: exact match first, then a same-basename-and-trailing-segments
// fallback.
func (a *coverageAnalyzer) findFileCoverage(path string) (coverageFileData, bool) {
	if data, ok := a.data[path]; ok {
		return data, true
	}

	targetParts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	targetBase := filepath.Base(path)

	for covPath, data := range a.data {
		if filepath.Base(covPath) != targetBase {
			continue
		}
		covParts := strings.Split(filepath.Clean(covPath), string(filepath.Separator))
		if suffixMatches(targetParts, covParts, 3) {
			return data, true
		}
	}
	return coverageFileData{}, false
}

func suffixMatches(a, b []string, n int) bool {
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return false
	}
	for i := 1; i <= n; i++ {
		if a[len(a)-i] != b[len(b)-i] {
			return false
		}
	}
	return true
}

// findTestFiles applies a naming heuristic to locate likely test files
// for sym's source file: Go's own convention of a sibling "<name>_test.go"
// in the same package directory, the closest analog to
// coverage_analyzer.py's test_*.py / *_test.py glob search.
func (a *coverageAnalyzer) findTestFiles(sym model.Symbol) []string {
	dir := filepath.Dir(sym.FilePath)
	base := strings.TrimSuffix(filepath.Base(sym.FilePath), filepath.Ext(sym.FilePath))
	candidate := filepath.Join(dir, base+"_test.go")
	if _, err := os.Stat(candidate); err == nil {
		return []string{candidate}
	}
	return nil
}
