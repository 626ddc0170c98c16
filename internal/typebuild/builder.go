// Package typebuild attaches inferred types to the declarations of a unit.
//
// The builder walks the unit once, after the declaration prepass. Types are
// built with open, visit children, close discipline on an explicit stack:
// functions and closures open a function type that return statements merge
// into, classes reopen the Structure type the prepass created, and
// assignments, static variables, catch clauses and foreach loops open the
// type their variables receive while the Declarer declares them.
package typebuild

import (
	"fmt"

	"phpsema/internal/ast"
	"phpsema/internal/doccomment"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Declarer declares the variables the builder meets, with the type the
// builder has open for them.
type Declarer interface {
	Assign(target ast.Expr, t *types.Type, scope *symbols.Scope, doc string)
	Global(x *ast.Variable, scope *symbols.Scope)
	Static(x *ast.Variable, t *types.Type, scope *symbols.Scope)
	Catch(x *ast.Variable, t *types.Type, scope *symbols.Scope)
	Foreach(key, value ast.Expr, keyType, valueType *types.Type, scope *symbols.Scope)
	Lexical(u *ast.ClosureUse, lex, outer *symbols.Scope)
}

type slot struct {
	t *types.Type
	// fn marks a function slot that return statements merge into; fixed
	// means an @return tag already decided the return type.
	fn    bool
	fixed bool
}

type Builder struct {
	ev    *expr.Evaluator
	unit  *symbols.Unit
	vars  Declarer
	stack []slot
}

func New(ev *expr.Evaluator, u *symbols.Unit, vars Declarer) *Builder {
	return &Builder{ev: ev, unit: u, vars: vars}
}

// Build runs the type pass over the whole unit.
func (b *Builder) Build() {
	if b.unit.File == nil {
		return
	}
	b.stmts(b.unit.File.Stmts, b.unit.Top)
	if len(b.stack) != 0 {
		panic(fmt.Sprintf("typebuild: %d types left open in %s", len(b.stack), b.unit.Path))
	}
}

func (b *Builder) open(s slot) {
	b.stack = append(b.stack, s)
}

// current returns the innermost open type.
func (b *Builder) current() *types.Type {
	if len(b.stack) == 0 {
		panic("typebuild: no type open")
	}
	return b.stack[len(b.stack)-1].t
}

func (b *Builder) close(t *types.Type) {
	n := len(b.stack)
	if n == 0 || b.stack[n-1].t != t {
		panic(fmt.Sprintf("typebuild: closing %s which is not the innermost open type", t))
	}
	b.stack = b.stack[:n-1]
}

// function returns the innermost open function slot, or nil at unit level.
func (b *Builder) function() *slot {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].fn {
			return &b.stack[i]
		}
	}
	return nil
}

func (b *Builder) eval(x ast.Expr, scope *symbols.Scope) *types.Type {
	return b.ev.Evaluate(x, scope, ast.NoPos).Type
}

func (b *Builder) scopeOf(n ast.Node, fallback *symbols.Scope) *symbols.Scope {
	if s := b.unit.ScopeOf(n); s != nil {
		return s
	}
	return fallback
}

func (b *Builder) stmts(list []ast.Stmt, scope *symbols.Scope) {
	for _, s := range list {
		b.stmt(s, scope)
	}
}

func (b *Builder) stmt(s ast.Stmt, scope *symbols.Scope) {
	switch s := s.(type) {
	case nil:
	case *ast.Namespace:
		b.stmts(s.Stmts, b.scopeOf(s, scope))
	case *ast.ClassDecl:
		b.class(s, scope)
	case *ast.FuncDecl:
		b.funcDecl(s, scope)
	case *ast.ConstDecl:
		for _, c := range s.Items {
			b.expr(c.Value, scope, "")
			if d := b.unit.DeclOf(c); d != nil {
				d.Type = b.constType(c.Value, s.Doc, scope)
			}
		}
	case *ast.ExprStmt:
		b.expr(s.X, scope, s.Doc)
	case *ast.Echo:
		b.exprs(s.Exprs, scope)
	case *ast.Unset:
		b.exprs(s.Exprs, scope)
	case *ast.Return:
		b.ret(s, scope)
	case *ast.Block:
		b.stmts(s.Stmts, scope)
	case *ast.If:
		b.expr(s.Cond, scope, "")
		b.stmt(s.Then, scope)
		b.stmt(s.Else, scope)
	case *ast.While:
		b.expr(s.Cond, scope, "")
		b.stmt(s.Body, scope)
	case *ast.For:
		b.exprs(s.Init, scope)
		b.exprs(s.Cond, scope)
		b.exprs(s.Step, scope)
		b.stmt(s.Body, scope)
	case *ast.Switch:
		b.expr(s.Subject, scope, "")
		for _, c := range s.Cases {
			b.expr(c.Cond, scope, "")
			b.stmts(c.Body, scope)
		}
	case *ast.Foreach:
		b.foreach(s, scope)
	case *ast.Try:
		if s.Body != nil {
			b.stmts(s.Body.Stmts, scope)
		}
		for _, c := range s.Catches {
			b.catch(c, scope)
		}
		if s.Finally != nil {
			b.stmts(s.Finally.Stmts, scope)
		}
	case *ast.Global:
		for _, x := range s.Vars {
			b.vars.Global(x, scope)
		}
	case *ast.StaticVar:
		for _, item := range s.Vars {
			b.expr(item.Init, scope, "")
			t := expr.OrMixed(b.eval(item.Init, scope))
			b.open(slot{t: t})
			b.vars.Static(item.Var, b.current(), scope)
			b.close(t)
		}
	}
}

func (b *Builder) exprs(list []ast.Expr, scope *symbols.Scope) {
	for _, x := range list {
		b.expr(x, scope, "")
	}
}

// expr visits the declaring constructs inside an expression: assignments,
// closures and define() calls. doc belongs to the statement around x and
// only applies when x itself is the assignment.
func (b *Builder) expr(x ast.Expr, scope *symbols.Scope, doc string) {
	if x == nil {
		return
	}
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Assign:
			b.expr(n.Right, scope, "")
			if _, plain := n.Left.(*ast.Variable); !plain {
				b.expr(n.Left, scope, "")
			}
			d := ""
			if ast.Node(n) == ast.Node(x) {
				d = doc
			}
			b.assign(n, scope, d)
			return false
		case *ast.Closure:
			b.closure(n, scope)
			return false
		case *ast.Call:
			b.exprs(n.Args, scope)
			b.expr(n.Func, scope, "")
			if d := b.unit.DeclOf(n); d != nil && len(n.Args) > 1 {
				d.Type = expr.OrMixed(b.eval(n.Args[1], scope)).WithConstant()
			}
			return false
		}
		return true
	})
}

// assign opens the right-hand type for the target of a plain assignment.
// Compound assignments declare nothing; by-reference assignments declare
// their target without a type.
func (b *Builder) assign(n *ast.Assign, scope *symbols.Scope, doc string) {
	if n.Op != "=" {
		return
	}
	if n.ByRef {
		b.vars.Assign(n.Left, nil, scope, doc)
		return
	}
	t := expr.OrMixed(b.eval(n.Right, scope))
	b.open(slot{t: t})
	b.vars.Assign(n.Left, b.current(), scope, doc)
	b.close(t)
}

func (b *Builder) constType(value ast.Expr, doc string, scope *symbols.Scope) *types.Type {
	if tag := doccomment.FindTag(doc, "var"); tag != "" {
		return b.ev.ParseType(tag, scope).WithConstant()
	}
	return expr.OrMixed(b.eval(value, scope)).WithConstant()
}

func (b *Builder) ret(s *ast.Return, scope *symbols.Scope) {
	if s.X == nil {
		return
	}
	b.expr(s.X, scope, "")
	fn := b.function()
	if fn == nil || fn.fixed {
		return
	}
	t := expr.OrMixed(b.eval(s.X, scope))
	fn.t.SetReturn(types.MergeReturn(fn.t.Return(), t))
}
