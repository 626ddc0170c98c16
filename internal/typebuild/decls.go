package typebuild

import (
	"fmt"

	"phpsema/internal/ast"
	"phpsema/internal/doccomment"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

func (b *Builder) class(n *ast.ClassDecl, scope *symbols.Scope) {
	d := b.unit.DeclOf(n)
	if d == nil {
		for _, m := range n.Members {
			if f, ok := m.(*ast.FuncDecl); ok {
				b.funcDecl(f, scope)
			}
		}
		return
	}
	if d.Type.Kind() != types.KindStructure || d.Internal == nil {
		panic(fmt.Sprintf("typebuild: class %s reached the type pass without a structure type", d.Name))
	}
	body := d.Internal
	b.open(slot{t: d.Type})
	for _, m := range n.Members {
		switch m := m.(type) {
		case *ast.FuncDecl:
			b.funcDecl(m, body)
		case *ast.PropertyDecl:
			for _, p := range m.Props {
				b.expr(p.Default, body, "")
				if pd := b.unit.DeclOf(p); pd != nil {
					pd.Type = b.propertyType(m, p, body)
				}
			}
		case *ast.ConstDecl:
			for _, c := range m.Items {
				b.expr(c.Value, body, "")
				if cd := b.unit.DeclOf(c); cd != nil {
					cd.Type = b.constType(c.Value, m.Doc, body)
				}
			}
		}
	}
	b.close(d.Type)
}

// propertyType prefers @var, then a declared type, then the default value.
func (b *Builder) propertyType(m *ast.PropertyDecl, p *ast.PropItem, scope *symbols.Scope) *types.Type {
	if tag := doccomment.FindTag(m.Doc, "var"); tag != "" {
		return b.ev.ParseType(tag, scope)
	}
	if m.Type != nil {
		if t := b.ev.ParamType(&ast.Param{Type: m.Type}, scope, ""); !t.IsMixed() {
			return t
		}
	}
	if p.Default != nil {
		return expr.OrMixed(b.eval(p.Default, scope))
	}
	return types.NewMixed()
}

// funcDecl builds the function type of a function or method. Parameters are
// appended in order; the return type comes from @return when present and
// from the return statements of the body otherwise, void when there are none.
func (b *Builder) funcDecl(n *ast.FuncDecl, scope *symbols.Scope) {
	d := b.unit.DeclOf(n)
	if d == nil {
		return
	}
	outer := scope
	if d.Context != nil {
		outer = d.Context
	}
	fn := types.NewFunction(nil, nil)
	s := slot{t: fn, fn: true}
	if tag := doccomment.FindTag(n.Doc, "return"); tag != "" {
		fn.SetReturn(b.ev.ParseType(tag, outer))
		s.fixed = true
	}
	b.open(s)
	b.params(n.Params, n.Doc, fn, outer)
	if n.Method && d.Context != nil && d.Context.Owner != nil {
		b.promoted(n, fn, d.Context.Owner)
	}
	d.Type = fn
	if n.Body != nil {
		b.stmts(n.Body.Stmts, b.scopeOf(n.Body, scope))
	}
	b.close(fn)
	if fn.Return() == nil {
		fn.SetReturn(types.NewVoid())
	}
}

func (b *Builder) params(list []*ast.Param, doc string, fn *types.Type, scope *symbols.Scope) {
	docs := doccomment.FindAllTags(doc, "param")
	for i, p := range list {
		b.expr(p.Default, scope, "")
		tag := ""
		if i < len(docs) {
			tag = docs[i]
		}
		t := b.ev.ParamType(p, scope, tag)
		if pd := b.unit.DeclOf(p); pd != nil {
			pd.Type = t
		}
		fn.AddArgument(t)
	}
}

// promoted types the properties declared by promoted constructor parameters.
func (b *Builder) promoted(n *ast.FuncDecl, fn *types.Type, class *symbols.Declaration) {
	if class.Internal == nil {
		return
	}
	for i, p := range n.Params {
		if p.Promoted == "" || p.Var == nil || i >= len(fn.Args()) {
			continue
		}
		for _, prop := range class.Internal.FindLocal(p.Var.Name, ast.NoPos, func(d *symbols.Declaration) bool {
			return d.Kind == symbols.KindVariable && d.Member
		}) {
			prop.Type = types.StripReference(fn.Args()[i])
		}
	}
}

// closure builds the function type of a closure and attaches it to the
// closure node. Captured variables are declared first so the body sees them.
func (b *Builder) closure(c *ast.Closure, scope *symbols.Scope) {
	for _, u := range c.Uses {
		b.vars.Lexical(u, b.unit.ScopeOf(u), scope)
	}
	fn := types.NewFunction(nil, nil)
	s := slot{t: fn, fn: true}
	if tag := doccomment.FindTag(c.Doc, "return"); tag != "" {
		fn.SetReturn(b.ev.ParseType(tag, scope))
		s.fixed = true
	}
	b.open(s)
	b.params(c.Params, c.Doc, fn, scope)
	if c.Body != nil {
		b.stmts(c.Body.Stmts, b.scopeOf(c.Body, scope))
	}
	b.close(fn)
	if fn.Return() == nil {
		fn.SetReturn(types.NewVoid())
	}
	b.unit.SetNodeType(c, fn)
}

// foreach gives the value variable the return type of current() when the
// iterated value is an Iterator, mixed otherwise.
func (b *Builder) foreach(n *ast.Foreach, scope *symbols.Scope) {
	b.expr(n.X, scope, "")
	iterated := b.eval(n.X, scope)

	value := types.NewMixed()
	if class := b.iterator(iterated); class != nil {
		current := class.Internal.Find("current", ast.NoPos, true, func(d *symbols.Declaration) bool {
			return d.IsMethod()
		})
		if len(current) > 0 {
			if t := current[len(current)-1].Type; t.Kind() == types.KindFunction && t.Return() != nil {
				value = t.Return()
			}
		}
	}
	key := types.NewMixed()
	if types.StripReference(iterated).Kind() == types.KindIndexed {
		key = types.NewInt()
	}
	b.open(slot{t: value})
	b.vars.Foreach(n.Key, n.Value, key, b.current(), scope)
	b.close(value)
	b.stmt(n.Body, scope)
}

// iterator returns the class named by t when it implements Iterator. A
// class the index does not know yet is looked for among this unit's own
// declarations.
func (b *Builder) iterator(t *types.Type) *symbols.Declaration {
	t = types.StripReference(t)
	if t.Kind() != types.KindStructure {
		return nil
	}
	class := b.ev.ClassOf(t)
	if class == nil {
		for _, d := range b.unit.Declarations() {
			if d.Kind == symbols.KindClass && d.Qualified == t.Key() {
				class = d
			}
		}
	}
	if class == nil || class.Internal == nil {
		return nil
	}
	if class.Qualified != expr.IteratorClass && !b.ev.Index().IsSubclass(class, expr.IteratorClass) {
		return nil
	}
	return class
}

// catch opens the type of the caught classes for the catch variable, then
// visits the handler.
func (b *Builder) catch(c *ast.Catch, scope *symbols.Scope) {
	var caught *types.Type
	for _, name := range c.Types {
		if d := b.ev.ResolveName(name, symbols.KindClass, scope, name.Rng.End); len(d) > 0 && d[len(d)-1].Type != nil {
			caught = types.Union(caught, d[len(d)-1].Type)
		}
	}
	t := expr.OrMixed(caught)
	b.open(slot{t: t})
	b.vars.Catch(c.Var, b.current(), scope)
	b.close(t)
	if c.Body != nil {
		b.stmts(c.Body.Stmts, scope)
	}
}
