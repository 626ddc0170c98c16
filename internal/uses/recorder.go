// Package uses records which declaration every identifier of a unit refers
// to, and reports deprecated and unresolved references as hints.
package uses

import (
	"fmt"
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
	"phpsema/internal/doccomment"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
)

type Option func(*Recorder)

// ReportUnresolved controls the "Declaration not found" hints.
func ReportUnresolved(on bool) Option {
	return func(r *Recorder) { r.reportUnresolved = on }
}

// ReportDeprecated controls the "Usage of ... is deprecated." hints.
func ReportDeprecated(on bool) Option {
	return func(r *Recorder) { r.reportDeprecated = on }
}

// Recorder is the use pass of one unit. It runs after the type pass.
type Recorder struct {
	unit *symbols.Unit
	ev   *expr.Evaluator

	reportUnresolved bool
	reportDeprecated bool
}

func New(ix *symbols.Index, u *symbols.Unit, opts ...Option) *Recorder {
	r := &Recorder{unit: u, reportUnresolved: true, reportDeprecated: true}
	for _, opt := range opts {
		opt(r)
	}
	r.ev = expr.New(ix, expr.WithHook(r.record))
	return r
}

// Record walks the unit and records its uses, replacing earlier ones. The
// prelude unit is never walked.
func (r *Recorder) Record() {
	if r.unit.Prelude {
		panic("uses: the prelude unit must not be use-recorded")
	}
	r.unit.ResetUses()
	r.unit.ResetDiagnostics(diagnostic.SeverityHint)
	if r.unit.File == nil {
		return
	}
	r.stmts(r.unit.File.Stmts, r.unit.Top)
}

// record is the evaluator hook. Declaring occurrences are skipped.
func (r *Recorder) record(ref expr.Ref) {
	if len(ref.Decls) == 0 {
		r.unit.AddUse(symbols.Use{Range: ref.Range, Name: ref.Name, Kind: ref.Kind})
		if ref.ReportNotFound && r.reportUnresolved {
			r.unit.Report(diagnostic.SeverityHint, ref.Range, fmt.Sprintf("Declaration not found: %s", ref.Name))
		}
		return
	}
	for _, d := range ref.Decls {
		if d.Unit == r.unit && d.Range == ref.Range {
			continue
		}
		r.unit.AddUse(symbols.Use{Range: ref.Range, Name: ref.Name, Kind: ref.Kind, Decl: d})
	}
	if d := ref.Decls[len(ref.Decls)-1]; r.reportDeprecated && doccomment.IsDeprecated(d.Doc) {
		if d.Unit != r.unit || d.Range != ref.Range {
			r.unit.Report(diagnostic.SeverityHint, ref.Range, fmt.Sprintf("Usage of %s is deprecated.", d.DisplayName()))
		}
	}
}

func (r *Recorder) use(n ast.Node, name string, kind symbols.Kind, d *symbols.Declaration) {
	var decls []*symbols.Declaration
	if d != nil {
		decls = []*symbols.Declaration{d}
	}
	r.record(expr.Ref{Node: n, Range: n.Span(), Name: name, Kind: kind, Decls: decls})
}

func (r *Recorder) eval(x ast.Expr, scope *symbols.Scope) {
	if x == nil {
		return
	}
	r.ev.Evaluate(x, scope, ast.NoPos)
	r.nested(x, scope)
}

// nested visits what the evaluator leaves alone inside x: closure
// parameters and bodies, and literal include paths, which refer to the
// virtual declaration of the included file.
func (r *Recorder) nested(x ast.Expr, scope *symbols.Scope) {
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Include:
			if d := r.unit.DeclOf(n); d != nil {
				r.unit.AddUse(symbols.Use{Range: n.Path.Span(), Name: d.File, Kind: symbols.KindImport, Decl: d})
			}
		case *ast.Closure:
			r.params(n.Params, scope)
			if n.Body != nil {
				r.stmts(n.Body.Stmts, r.scopeOf(n.Body, scope))
			}
			return false
		}
		return true
	})
}

func (r *Recorder) evalAll(list []ast.Expr, scope *symbols.Scope) {
	for _, x := range list {
		r.eval(x, scope)
	}
}

func (r *Recorder) scopeOf(n ast.Node, fallback *symbols.Scope) *symbols.Scope {
	if s := r.unit.ScopeOf(n); s != nil {
		return s
	}
	return fallback
}

func (r *Recorder) stmts(list []ast.Stmt, scope *symbols.Scope) {
	for _, s := range list {
		r.stmt(s, scope)
	}
}

func (r *Recorder) stmt(s ast.Stmt, scope *symbols.Scope) {
	switch s := s.(type) {
	case nil:
	case *ast.Namespace:
		r.stmts(s.Stmts, r.scopeOf(s, scope))
	case *ast.UseDecl:
		for _, item := range s.Items {
			if item.Name == nil {
				continue
			}
			fq := *item.Name
			fq.FullyQualified = true
			kind := symbols.KindClass
			switch s.Kind {
			case "function":
				kind = symbols.KindFunction
			case "const":
				kind = symbols.KindConstant
			}
			r.ev.Reference(&fq, kind, scope, false)
		}
	case *ast.ClassDecl:
		r.class(s, scope)
	case *ast.FuncDecl:
		r.function(s, scope)
	case *ast.ConstDecl:
		for _, c := range s.Items {
			r.eval(c.Value, scope)
		}
	case *ast.ExprStmt:
		r.eval(s.X, scope)
	case *ast.Echo:
		r.evalAll(s.Exprs, scope)
	case *ast.Unset:
		r.evalAll(s.Exprs, scope)
	case *ast.Return:
		r.eval(s.X, scope)
	case *ast.Block:
		r.stmts(s.Stmts, scope)
	case *ast.If:
		r.eval(s.Cond, scope)
		r.stmt(s.Then, scope)
		r.stmt(s.Else, scope)
	case *ast.While:
		r.eval(s.Cond, scope)
		r.stmt(s.Body, scope)
	case *ast.For:
		r.evalAll(s.Init, scope)
		r.evalAll(s.Cond, scope)
		r.evalAll(s.Step, scope)
		r.stmt(s.Body, scope)
	case *ast.Switch:
		r.eval(s.Subject, scope)
		for _, c := range s.Cases {
			r.eval(c.Cond, scope)
			r.stmts(c.Body, scope)
		}
	case *ast.Foreach:
		// Only some slots are filled for a given form; each is visited on its own.
		r.eval(s.X, scope)
		r.eval(s.Key, scope)
		r.eval(s.Value, scope)
		r.stmt(s.Body, scope)
	case *ast.Try:
		if s.Body != nil {
			r.stmts(s.Body.Stmts, scope)
		}
		for _, c := range s.Catches {
			for _, name := range c.Types {
				r.ev.Reference(name, symbols.KindClass, scope, true)
			}
			if c.Body != nil {
				r.stmts(c.Body.Stmts, scope)
			}
		}
		if s.Finally != nil {
			r.stmts(s.Finally.Stmts, scope)
		}
	case *ast.Global:
		for _, x := range s.Vars {
			var target *symbols.Declaration
			if alias := r.unit.DeclOf(x); alias != nil {
				target = alias.Target
			}
			r.use(x, "$"+x.Name, symbols.KindVariable, target)
		}
	case *ast.StaticVar:
		for _, item := range s.Vars {
			r.eval(item.Init, scope)
		}
	}
}

func (r *Recorder) class(n *ast.ClassDecl, scope *symbols.Scope) {
	d := r.unit.DeclOf(n)
	outer, body := scope, scope
	if d != nil {
		outer = d.Context
		body = d.Internal
	}
	for _, name := range n.Extends {
		r.ev.Reference(name, symbols.KindClass, outer, true)
	}
	for _, name := range n.Implements {
		r.ev.Reference(name, symbols.KindClass, outer, true)
	}
	for _, m := range n.Members {
		switch m := m.(type) {
		case *ast.FuncDecl:
			r.function(m, body)
		case *ast.PropertyDecl:
			r.hint(m.Type, body)
			for _, p := range m.Props {
				r.eval(p.Default, body)
			}
		case *ast.ConstDecl:
			for _, c := range m.Items {
				r.eval(c.Value, body)
			}
		case *ast.TraitUse:
			r.traitUse(m, body)
		}
	}
}

func (r *Recorder) function(n *ast.FuncDecl, scope *symbols.Scope) {
	outer := scope
	if d := r.unit.DeclOf(n); d != nil && d.Context != nil {
		outer = d.Context
	}
	r.params(n.Params, outer)
	if n.Body != nil {
		r.stmts(n.Body.Stmts, r.scopeOf(n.Body, scope))
	}
}

func (r *Recorder) params(list []*ast.Param, scope *symbols.Scope) {
	for _, p := range list {
		r.hint(p.Type, scope)
		r.eval(p.Default, scope)
	}
}

func (r *Recorder) hint(h *ast.TypeHint, scope *symbols.Scope) {
	if h == nil {
		return
	}
	for _, name := range h.Classes {
		r.ev.Reference(name, symbols.KindClass, scope, true)
	}
}

// traitUse records the used traits and the methods named by adaptation
// rules. Method names match case-insensitively. The new name of an alias
// declares rather than refers, so it is not a use.
func (r *Recorder) traitUse(n *ast.TraitUse, scope *symbols.Scope) {
	var traits []*symbols.Declaration
	for _, name := range n.Traits {
		if d := r.ev.Reference(name, symbols.KindClass, scope, true).Decl(); d != nil {
			traits = append(traits, d)
		}
	}
	for _, rule := range n.Rules {
		candidates := traits
		if rule.Trait != nil {
			candidates = nil
			if d := r.ev.Reference(rule.Trait, symbols.KindClass, scope, true).Decl(); d != nil {
				candidates = []*symbols.Declaration{d}
			}
		}
		var method *symbols.Declaration
		if rule.Method != nil {
			method = traitMethod(candidates, rule.Method.Name)
			r.use(rule.Method, rule.Method.Name, symbols.KindFunction, method)
		}
		for _, name := range rule.InsteadOf {
			r.ev.Reference(name, symbols.KindClass, scope, true)
		}
	}
}

func traitMethod(traits []*symbols.Declaration, name string) *symbols.Declaration {
	key := strings.ToLower(name)
	for _, t := range traits {
		if t.Internal == nil {
			continue
		}
		found := t.Internal.FindLocal(key, ast.NoPos, func(d *symbols.Declaration) bool { return d.IsMethod() })
		if len(found) > 0 {
			return found[len(found)-1]
		}
	}
	return nil
}
