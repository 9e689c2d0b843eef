package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.For("main.go"))
	require.NotNil(t, r.For("script.py"))
	require.NotNil(t, r.For("app.tsx"))
	require.NotNil(t, r.For("lib.rs"))
	require.Nil(t, r.For("README.md"))
}

func TestGoAdapterExtractsSymbolsAndImports(t *testing.T) {
	src := []byte(`package sample

import (
	"fmt"
	str "strings"
)

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	return fmt.Sprintf("hi %s", str.ToUpper(g.Name))
}

func New(name string) *Greeter {
	return &Greeter{Name: name}
}
`)
	r := NewRegistry()
	rec := r.Parse("sample.go", src)
	require.Nil(t, rec.Diagnostic)
	require.Len(t, rec.Imports, 2)

	var names []string
	for _, s := range rec.Symbols {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "Greeter")
	require.Contains(t, names, "Greet")
	require.Contains(t, names, "New")

	for _, s := range rec.Symbols {
		if s.Name == "Greet" {
			require.Equal(t, "Greeter", s.ParentClass)
		}
	}
}

func TestPythonAdapterExtractsClassAndBases(t *testing.T) {
	src := []byte(`import os
from collections import OrderedDict

class Base:
    pass

class Widget(Base):
    def render(self):
        return os.getcwd()
`)
	r := NewRegistry()
	rec := r.Parse("widget.py", src)
	require.Nil(t, rec.Diagnostic)

	var names []string
	for _, s := range rec.Symbols {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "Base")
	require.Contains(t, names, "Widget")
	require.Contains(t, names, "render")
}

func TestJSAdapterExtractsArrowFunctionsAndClasses(t *testing.T) {
	src := []byte(`import { Component } from "framework";

export class Panel extends Component {
  render() {
    return this.renderChildren();
  }
}

const helper = (x) => x + 1;
`)
	r := NewRegistry()
	rec := r.Parse("panel.jsx", src)
	require.Nil(t, rec.Diagnostic)

	var names []string
	for _, s := range rec.Symbols {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "Panel")
	require.Contains(t, names, "render")
	require.Contains(t, names, "helper")
}

func TestUnsupportedExtensionYieldsEmptyRecord(t *testing.T) {
	r := NewRegistry()
	rec := r.Parse("notes.md", []byte("# hello"))
	require.Nil(t, rec.Diagnostic)
	require.Empty(t, rec.Symbols)
}
