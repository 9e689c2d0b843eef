package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Grammar bindings, grounded on the teacher's parser_language_setup.go.
// Each wraps the grammar's raw language pointer in a *sitter.Language.

func goLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_go.Language())
}

func pythonLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

func javascriptLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_javascript.Language())
}

func typescriptLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
}

func javaLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_java.Language())
}

func phpLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_php.LanguagePHP())
}

func rustLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_rust.Language())
}

func csharpLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_csharp.Language())
}

func cppLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_cpp.Language())
}

func zigLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_zig.Language())
}

// newParser returns a *sitter.Parser bound to language, or nil if binding
// fails (mismatched grammar ABI version) — callers treat a nil parser the
// same as an unsupported language: the file is skipped, not fatal.
func newParser(language *sitter.Language) *sitter.Parser {
	p := sitter.NewParser()
	if err := p.SetLanguage(language); err != nil {
		return nil
	}
	return p
}
