package declare

import (
	"path/filepath"

	"phpsema/internal/ast"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
)

// Link wires what Prepass could not: class bodies import the bodies of their
// parents, interfaces and traits, and literal includes import the top scope
// of the included unit when the index holds it. Running Link again recomputes
// the same links.
func Link(ev *expr.Evaluator, u *symbols.Unit) {
	if u.File == nil {
		return
	}
	for _, s := range u.File.Stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.ClassDecl:
				linkClass(ev, u, n)
			case *ast.Include:
				linkInclude(ev.Index(), u, n)
			}
			return true
		})
	}
}

func linkClass(ev *expr.Evaluator, u *symbols.Unit, n *ast.ClassDecl) {
	d := u.DeclOf(n)
	if d == nil || d.Internal == nil {
		return
	}
	scope, pos := d.Context, n.Rng.Start
	d.Bases, d.Parent = nil, ""

	inherit := func(name *ast.Name) string {
		target := last(ev.ResolveName(name, symbols.KindClass, scope, pos))
		if target == nil {
			return symbols.QualifiedKey(symbols.KindClass, scope.Namespace, name.String())
		}
		if target != d && target.Internal != nil {
			d.Internal.AddImport(target.Internal, ast.NoPos)
		}
		return target.Qualified
	}
	for i, name := range n.Extends {
		key := inherit(name)
		d.Bases = append(d.Bases, key)
		if i == 0 && n.Kind == ast.KindClass {
			d.Parent = key
		}
	}
	for _, name := range n.Implements {
		d.Bases = append(d.Bases, inherit(name))
	}
	for _, m := range n.Members {
		if tu, ok := m.(*ast.TraitUse); ok {
			for _, name := range tu.Traits {
				inherit(name)
			}
		}
	}
}

func linkInclude(ix *symbols.Index, u *symbols.Unit, n *ast.Include) {
	d := u.DeclOf(n)
	if d == nil || d.Context == nil {
		return
	}
	if target := ix.Unit(IncludePath(u, d.File)); target != nil && target != u {
		d.Context.AddImport(target.Top, d.Range.Start)
	}
}

// IncludePath resolves an include path relative to the including unit.
func IncludePath(u *symbols.Unit, file string) string {
	if !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(u.Path), file)
	}
	return filepath.Clean(file)
}
