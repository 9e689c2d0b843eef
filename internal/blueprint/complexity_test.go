package blueprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
)

func writeTempSource(t *testing.T, content string) model.Symbol {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return model.Symbol{FilePath: path, StartByte: 0, EndByte: len(content)}
}

func TestComplexityAnalyzerCountsBranches(t *testing.T) {
	src := `func Do(x int) int {
	if x > 0 {
		return x
	} else if x < 0 {
		return -x
	}
	for i := 0; i < 10; i++ {
		if i == 5 {
			break
		}
	}
	return 0
}
`
	sym := writeTempSource(t, src)
	a := newComplexityAnalyzer()
	metrics := a.Analyze(sym)

	require.Greater(t, metrics.Branches, 0)
	require.Equal(t, metrics.Branches+1, metrics.Complexity)
}

func TestComplexityLevelThresholds(t *testing.T) {
	require.Equal(t, "Low", complexityLevel(1, 5))
	require.Equal(t, "Medium", complexityLevel(10, 5))
	require.Equal(t, "Medium", complexityLevel(1, 50))
	require.Equal(t, "High", complexityLevel(20, 5))
	require.Equal(t, "High", complexityLevel(1, 150))
}

func TestComplexityAnalyzerMissingFileReturnsLow(t *testing.T) {
	a := newComplexityAnalyzer()
	metrics := a.Analyze(model.Symbol{FilePath: "/nonexistent/file.go"})
	require.Equal(t, "Low", metrics.Level)
}

func TestCountCodeLinesSkipsBlankAndComments(t *testing.T) {
	lines := []string{"", "// comment", "code()", "# also a comment", "more()"}
	require.Equal(t, 2, countCodeLines(lines))
}
