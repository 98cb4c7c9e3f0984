package parser

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	pythonOnce sync.Once
	pythonLang *sitter.Language
)

// PythonLanguage returns the process-wide tree-sitter Python grammar.
func PythonLanguage() *sitter.Language {
	pythonOnce.Do(func() {
		pythonLang = sitter.NewLanguage(tree_sitter_python.Language())
	})
	return pythonLang
}
