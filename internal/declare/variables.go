package declare

import (
	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
	"phpsema/internal/doccomment"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Variables declares variables as the type builder meets them. Each method
// receives the type the builder has open for the declaring construct.
type Variables struct {
	ev   *expr.Evaluator
	unit *symbols.Unit
}

func NewVariables(ev *expr.Evaluator, u *symbols.Unit) *Variables {
	return &Variables{ev: ev, unit: u}
}

// Assign declares or updates the target of an assignment. doc is the doc
// comment of the enclosing statement: @var overrides t and @superglobal
// marks a new top-level variable as a superglobal.
func (v *Variables) Assign(target ast.Expr, t *types.Type, scope *symbols.Scope, doc string) {
	if tag := doccomment.FindTag(doc, "var"); tag != "" {
		t = v.ev.ParseType(tag, scope)
	}
	switch target := target.(type) {
	case *ast.Variable:
		if target.Name == "this" {
			if expr.ThisClass(scope) != nil {
				v.unit.Report(diagnostic.SeverityError, target.Rng, "Cannot re-assign $this.")
			}
			return
		}
		d := v.declare(target, t, scope)
		if doc != "" && d.Context.Kind == symbols.ScopeGlobal && doccomment.HasTag(doc, "superglobal") {
			d.Superglobal = true
			if d.Doc == "" {
				d.Doc = doc
			}
		}
		if tag := doccomment.FindTag(doc, "var"); tag != "" {
			d.Type = t
		}

	case *ast.PropertyFetch:
		v.implicitProperty(target, t, scope)

	case *ast.Array:
		for _, it := range target.Items {
			if it.Value != nil {
				v.Assign(it.Value, types.NewMixed(), scope, "")
			}
		}

	case *ast.Index:
		if x, ok := target.X.(*ast.Variable); ok && x.Name != "this" {
			if v.ev.FindVariable(x.Name, scope, x.Rng.Start) == nil {
				v.declare(x, types.NewArray(), scope)
			}
		}
	}
}

// declare finds the latest visible declaration of the variable in this unit
// and merges t into it, or declares it anew. Variables of namespace-level
// code live in the top scope.
func (v *Variables) declare(x *ast.Variable, t *types.Type, scope *symbols.Scope) *symbols.Declaration {
	if scope.Kind == symbols.ScopeNamespace {
		scope = scope.Top()
	}
	t = expr.OrMixed(t)
	if d := v.ev.FindVariable(x.Name, scope, x.Rng.Start); d != nil && d.Unit == v.unit && !d.Superglobal {
		d.Type = types.MergeAssigned(d.Type, t)
		return d
	}
	d := scope.Declare(&symbols.Declaration{
		Name:  x.Name,
		Kind:  symbols.KindVariable,
		Range: x.Rng,
		Type:  t,
	})
	v.unit.BindDecl(x, d)
	return d
}

// implicitProperty declares a public property for $this->name = ... when the
// class has no member of that name.
func (v *Variables) implicitProperty(p *ast.PropertyFetch, t *types.Type, scope *symbols.Scope) {
	obj, ok := p.Object.(*ast.Variable)
	if !ok || obj.Name != "this" || p.Prop == nil {
		return
	}
	class := expr.ThisClass(scope)
	if class == nil || class.Internal == nil {
		return
	}
	existing := class.Internal.Find(p.Prop.Name, ast.NoPos, true, func(d *symbols.Declaration) bool {
		return d.Kind == symbols.KindVariable && d.Member
	})
	if len(existing) > 0 {
		return
	}
	d := class.Internal.Declare(&symbols.Declaration{
		Name:      p.Prop.Name,
		Kind:      symbols.KindVariable,
		Range:     p.Prop.Rng,
		Type:      expr.OrMixed(t),
		Member:    true,
		Qualified: class.Qualified + "::$" + p.Prop.Name,
	})
	v.unit.BindDecl(p, d)
}

// Global declares a local alias of the global variable x. Outside function
// bodies the statement has no effect.
func (v *Variables) Global(x *ast.Variable, scope *symbols.Scope) {
	if scope.Kind == symbols.ScopeGlobal || scope.Kind == symbols.ScopeNamespace {
		return
	}
	target := last(v.ev.Index().FindGlobal(symbols.KindVariable, x.Name))
	d := &symbols.Declaration{
		Name:   x.Name,
		Kind:   symbols.KindVariable,
		Range:  x.Rng,
		Target: target,
		Type:   types.NewMixed(),
	}
	if target != nil && target.Type != nil {
		d.Type = target.Type
	}
	scope.Declare(d)
	v.unit.BindDecl(x, d)
}

// Static declares a function-static variable with its initializer type.
func (v *Variables) Static(x *ast.Variable, t *types.Type, scope *symbols.Scope) {
	v.declare(x, t, scope)
}

// Catch declares the variable of a catch clause with the caught class type.
func (v *Variables) Catch(x *ast.Variable, t *types.Type, scope *symbols.Scope) {
	if x == nil {
		return
	}
	v.declare(x, t, scope)
}

// Foreach declares the key and value slots of a foreach loop. Slots that
// are not plain variables (list destructuring, properties) go through Assign.
func (v *Variables) Foreach(key, value ast.Expr, keyType, valueType *types.Type, scope *symbols.Scope) {
	if key != nil {
		v.Assign(key, keyType, scope, "")
	}
	if value != nil {
		v.Assign(value, valueType, scope, "")
	}
}

// Lexical declares a closure's captured variable in lex as an alias of the
// nearest variable of that name visible from outer.
func (v *Variables) Lexical(u *ast.ClosureUse, lex, outer *symbols.Scope) {
	if u.Var == nil || lex == nil {
		return
	}
	target := last(outer.Find(u.Var.Name, u.Var.Rng.Start, false, func(d *symbols.Declaration) bool {
		return d.IsInstance() && !d.Member
	}))
	d := &symbols.Declaration{
		Name:   u.Var.Name,
		Kind:   symbols.KindVariable,
		Range:  u.Var.Rng,
		Target: target,
		Type:   types.NewMixed(),
	}
	if target != nil && target.Type != nil {
		d.Type = target.Type
	}
	if u.ByRef {
		d.Type = types.NewReference(types.StripReference(d.Type))
	}
	lex.Declare(d)
	v.unit.BindDecl(u, d)
}
