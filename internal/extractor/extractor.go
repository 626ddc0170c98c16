// Package extractor parses PHP source with tree-sitter and converts the
// concrete syntax tree into the ast the analysis passes consume.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"phpsema/internal/ast"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrInvalidExpression is returned by ParseExpression for text that is
	// not a single well-formed expression.
	ErrInvalidExpression = errors.New("invalid expression")
)

// Extractor parses source files of one language.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "php":
		langExt = &PHPExtractor{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

func (e *Extractor) Language() string {
	return e.langName
}

// ParseFile reads and parses a single source file.
func (e *Extractor) ParseFile(ctx context.Context, path string) (*ast.File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ParseSource(ctx, path, src)
}

// ParseSource parses src as the content of path. Syntax errors do not fail
// the parse; their ranges are listed in File.Errors and the recognizable
// parts of the tree are still converted.
func (e *Extractor) ParseSource(ctx context.Context, path string, src []byte) (*ast.File, error) {
	tree, err := e.parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	root := tree.RootNode()
	f := ast.NewFile(path, src, e.langExtractor.Convert(root, src, 0))
	if root.HasError() {
		f.Errors, err = e.syntaxErrors(root)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// snippetPrefix opens PHP mode so a bare expression parses as a statement.
const snippetPrefix = "<?php "

// ParseExpression parses text as one expression. Offsets in the result are
// relative to text.
func (e *Extractor) ParseExpression(ctx context.Context, text string) (ast.Expr, error) {
	src := []byte(snippetPrefix + text + ";")
	tree, err := e.parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrInvalidExpression
	}
	stmts := e.langExtractor.Convert(root, src, len(snippetPrefix))
	if len(stmts) != 1 {
		return nil, ErrInvalidExpression
	}
	s, ok := stmts[0].(*ast.ExprStmt)
	if !ok || s.X == nil {
		return nil, ErrInvalidExpression
	}
	return s.X, nil
}

func (e *Extractor) parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	return parser.ParseCtx(ctx, nil, src)
}

func (e *Extractor) syntaxErrors(root *sitter.Node) ([]ast.Range, error) {
	query, err := sitter.NewQuery([]byte(e.langExtractor.GetQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	qc := sitter.NewQueryCursor()
	qc.Exec(query, root)

	var out []ast.Range
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			out = append(out, ast.Range{Start: ast.Pos(c.Node.StartByte()), End: ast.Pos(c.Node.EndByte())})
		}
	}
	return out, nil
}
