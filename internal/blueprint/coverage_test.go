package blueprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
)

func writeCoverageJSON(t *testing.T, root, filePath string, executed, missing []int) {
	t.Helper()
	body := `{"files": {"` + filePath + `": {"executed_lines": [`
	for i, l := range executed {
		if i > 0 {
			body += ","
		}
		body += itoa(l)
	}
	body += `], "missing_lines": [`
	for i, l := range missing {
		if i > 0 {
			body += ","
		}
		body += itoa(l)
	}
	body += `]}}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "coverage.json"), []byte(body), 0o644))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestCoverageAnalyzerComputesPercentOverSymbolRange(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.go")
	writeCoverageJSON(t, root, file, []int{1, 2, 3}, []int{4})

	a := newCoverageAnalyzer("", root)
	metrics := a.Analyze(model.Symbol{FilePath: file, StartLine: 1, EndLine: 4})
	require.NotNil(t, metrics)
	require.Equal(t, 75.0, metrics.Percent)
	require.Equal(t, 3, metrics.CoveredLines)
	require.Equal(t, 4, metrics.TotalLines)
}

func TestCoverageAnalyzerNoTrackedLinesIsFullyCovered(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.go")
	writeCoverageJSON(t, root, file, []int{1}, nil)

	a := newCoverageAnalyzer("", root)
	metrics := a.Analyze(model.Symbol{FilePath: file, StartLine: 100, EndLine: 105})
	require.NotNil(t, metrics)
	require.Equal(t, 100.0, metrics.Percent)
}

func TestCoverageAnalyzerNoDataReturnsNil(t *testing.T) {
	a := newCoverageAnalyzer("", t.TempDir())
	require.Nil(t, a.Analyze(model.Symbol{FilePath: "a.go", StartLine: 1, EndLine: 1}))
}
