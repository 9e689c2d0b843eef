package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHydrationAnalyzerIsInternalDistinguishesProjectFiles(t *testing.T) {
	h := newHydrationAnalyzer(nil, "/repo", 0)
	require.True(t, h.isInternal("/repo/pkg/widget.go"))
	require.False(t, h.isInternal("/elsewhere/pkg/widget.go"))
}

func TestHydrationAnalyzerCountsDistinctTargetFiles(t *testing.T) {
	h := newHydrationAnalyzer(nil, "/repo", 0)
	bp := &Blueprint{
		FilePath: "/repo/main.go",
		Nodes: []*Node{
			{Overlay: Overlay{Dependencies: []DependencyInfo{
				{TargetFile: "/repo/pkg/widget.go"},
				{TargetFile: "/repo/pkg/widget.go"},
				{TargetFile: "/repo/main.go"}, // self-reference excluded
			}}},
		},
	}
	counts := h.countFileReferences(bp)
	require.Equal(t, 2, counts["/repo/pkg/widget.go"])
	require.NotContains(t, counts, "/repo/main.go")
}
