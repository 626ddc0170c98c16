// Package expr infers the type of PHP expressions and resolves the
// declarations they refer to.
package expr

import (
	"phpsema/internal/ast"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Result is the outcome of one evaluation. The last declaration is the
// canonical one; all of them were referenced.
type Result struct {
	Decls         []*symbols.Declaration
	Type          *types.Type
	HadUnresolved bool
}

// Decl returns the canonical declaration, or nil.
func (r Result) Decl() *symbols.Declaration {
	if len(r.Decls) == 0 {
		return nil
	}
	return r.Decls[len(r.Decls)-1]
}

// Empty reports whether nothing was inferred.
func (r Result) Empty() bool {
	return r.Type == nil && len(r.Decls) == 0
}

// Ref describes one identifier occurrence the evaluator resolved, or tried
// to. Decls is empty when resolution failed.
type Ref struct {
	Node  ast.Node
	Range ast.Range
	Name  string
	Kind  symbols.Kind
	Decls []*symbols.Declaration
	// ReportNotFound asks the receiver to surface a failed resolution.
	ReportNotFound bool
}

// Hook receives every Ref produced during evaluation.
type Hook func(Ref)

type Option func(*Evaluator)

// WithHook installs a hook called for every resolved or unresolved reference.
func WithHook(h Hook) Option {
	return func(e *Evaluator) { e.hook = h }
}
