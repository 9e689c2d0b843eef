package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
)

func TestBuildHierarchyNestsMethodsUnderClass(t *testing.T) {
	symbols := []model.Symbol{
		{Name: "Widget", Type: model.SymbolStruct, StartLine: 1},
		{Name: "Render", Type: model.SymbolMethod, ParentClass: "Widget", StartLine: 3},
		{Name: "Helper", Type: model.SymbolFunction, StartLine: 20},
	}

	nodes := BuildHierarchy(symbols)
	require.Len(t, nodes, 2)

	var widget *Node
	for _, n := range nodes {
		if n.Symbol.Name == "Widget" {
			widget = n
		}
	}
	require.NotNil(t, widget)
	require.Len(t, widget.Children, 1)
	require.Equal(t, "Render", widget.Children[0].Symbol.Name)
}

func TestBuildHierarchyDropsOrphanMethods(t *testing.T) {
	symbols := []model.Symbol{
		{Name: "Orphan", Type: model.SymbolMethod, ParentClass: "Missing", StartLine: 1},
	}
	nodes := BuildHierarchy(symbols)
	require.Empty(t, nodes)
}
