package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"phpsema/internal/ast"
)

// LanguageExtractor is implemented by each supported grammar. Convert turns
// the children of a parsed root into statements; base is subtracted from
// every byte offset.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	// GetQuery captures the nodes reported as syntax errors.
	GetQuery() string
	Convert(root *sitter.Node, src []byte, base int) []ast.Stmt
}
