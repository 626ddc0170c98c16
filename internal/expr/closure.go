package expr

import (
	"phpsema/internal/ast"
	"phpsema/internal/doccomment"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// ParamType types a parameter. The first rule that applies wins: a class
// type hint that resolves, a builtin type hint keyword, the type of the
// default value, the matching @param tag, and finally mixed. By-reference
// parameters are wrapped in a reference.
func (e *Evaluator) ParamType(p *ast.Param, scope *symbols.Scope, docType string) *types.Type {
	t := e.paramBase(p, scope, docType)
	if p.ByRef {
		return types.NewReference(t)
	}
	return t
}

func (e *Evaluator) paramBase(p *ast.Param, scope *symbols.Scope, docType string) *types.Type {
	if h := p.Type; h != nil {
		for _, c := range h.Classes {
			if d := last(e.ResolveName(c, symbols.KindClass, scope, ast.NoPos)); d != nil {
				return classType(d)
			}
		}
		for _, k := range h.Keywords {
			if k == "callable" {
				return types.NewMixed()
			}
			if t := e.keyword(k, scope); t != nil {
				return t
			}
		}
	}
	if p.Default != nil {
		r := &run{e: e, cursor: ast.NoPos, silent: 1}
		if t := r.eval(p.Default, scope).Type; t != nil {
			return t
		}
	}
	if docType != "" {
		return e.ParseType(docType, scope)
	}
	if p.Variadic {
		return types.NewArray()
	}
	return types.NewMixed()
}

func (r *run) closure(c *ast.Closure, scope *symbols.Scope) *types.Type {
	for _, u := range c.Uses {
		r.lexical(u, scope)
	}
	if u := scope.Unit; u != nil {
		if t := u.NodeType(c); t != nil {
			return t
		}
	}
	return r.e.closureType(c, scope)
}

// lexical records a captured variable against the nearest enclosing
// instance declaration of that name.
func (r *run) lexical(u *ast.ClosureUse, scope *symbols.Scope) {
	if u.Var == nil {
		return
	}
	d := last(scope.Find(u.Var.Name, r.pos(u.Var), false, func(d *symbols.Declaration) bool {
		return d.IsInstance() && !d.Member
	}))
	r.emit(u.Var, "$"+u.Var.Name, symbols.KindVariable, one(d), false)
}

// closureType builds the function type of c from scratch: parameters in
// order, and either the @return tag or the merge of every return statement
// of the body.
func (e *Evaluator) closureType(c *ast.Closure, scope *symbols.Scope) *types.Type {
	body := scope
	if u := scope.Unit; u != nil && c.Body != nil {
		if s := u.ScopeOf(c.Body); s != nil {
			body = s
		}
	}
	docs := doccomment.FindAllTags(c.Doc, "param")
	fn := types.NewFunction(nil, nil)
	for i, p := range c.Params {
		doc := ""
		if i < len(docs) {
			doc = docs[i]
		}
		fn.AddArgument(e.ParamType(p, scope, doc))
	}
	if tag := doccomment.FindTag(c.Doc, "return"); tag != "" {
		fn.SetReturn(e.ParseType(tag, scope))
		return fn
	}
	var ret *types.Type
	r := &run{e: e, cursor: ast.NoPos, silent: 1}
	for _, st := range Returns(c.Body) {
		if st.X == nil {
			continue
		}
		ret = types.MergeReturn(ret, OrMixed(r.eval(st.X, body).Type))
	}
	if ret == nil {
		ret = types.NewVoid()
	}
	fn.SetReturn(ret)
	return fn
}

// Returns collects the return statements of a function body, not
// descending into nested functions, closures or classes.
func Returns(body *ast.Block) []*ast.Return {
	if body == nil {
		return nil
	}
	var out []*ast.Return
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Closure, *ast.FuncDecl, *ast.ClassDecl:
			return false
		case *ast.Return:
			out = append(out, n)
		}
		return true
	})
	return out
}

// OrMixed returns t, or mixed when nothing was inferred.
func OrMixed(t *types.Type) *types.Type {
	if t == nil {
		return types.NewMixed()
	}
	return t
}
