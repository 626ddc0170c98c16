// Package declare builds the declarations and scopes of a unit before types
// are inferred, and declares variables while the type builder runs.
package declare

import (
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Prepass creates the scope tree of u and every declaration that does not
// depend on inferred types: namespaces, aliases, classes with their
// members, functions with their parameters, constants, define() calls,
// includes and closure scopes. Class Structure types are opened here.
// Class hierarchies are wired separately by Link, once every unit that may
// hold a parent class has gone through Prepass.
func Prepass(u *symbols.Unit) {
	if u.File == nil {
		return
	}
	b := &builder{unit: u}
	b.stmts(u.File.Stmts, u.Top)
}

type builder struct {
	unit *symbols.Unit
}

func (b *builder) stmts(list []ast.Stmt, scope *symbols.Scope) {
	for _, s := range list {
		if s != nil {
			ast.Inspect(s, b.visitor(scope))
		}
	}
}

func (b *builder) visitor(scope *symbols.Scope) func(ast.Node) bool {
	return func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Namespace:
			b.namespace(n, scope)
			return false
		case *ast.UseDecl:
			b.aliases(n, scope)
			return false
		case *ast.ClassDecl:
			b.class(n, scope)
			return false
		case *ast.FuncDecl:
			b.function(n, scope, nil)
			return false
		case *ast.ConstDecl:
			for _, c := range n.Items {
				d := global(scope).Declare(&symbols.Declaration{
					Name:      c.Name.Name,
					Kind:      symbols.KindConstant,
					Qualified: symbols.QualifiedKey(symbols.KindConstant, scope.Namespace, c.Name.Name),
					Range:     c.Name.Rng,
					Doc:       n.Doc,
				})
				b.unit.BindDecl(c, d)
			}
		case *ast.Closure:
			b.closure(n, scope)
			return false
		case *ast.Call:
			b.define(n)
		case *ast.Include:
			b.include(n, scope)
		}
		return true
	}
}

// global returns the scope unit-level declarations made inside scope belong
// to: functions and classes declared in a function body are still global.
func global(scope *symbols.Scope) *symbols.Scope {
	for s := scope; s != nil; s = s.Parent {
		if s.Kind == symbols.ScopeGlobal || s.Kind == symbols.ScopeNamespace {
			return s
		}
	}
	return scope.Top()
}

func (b *builder) namespace(n *ast.Namespace, scope *symbols.Scope) {
	top := b.unit.Top
	ns := top.NewChild(symbols.ScopeNamespace, n.Rng)
	ns.Namespace = ""
	if n.Name != nil {
		ns.Namespace = n.Name.String()
		prefix := ""
		for _, part := range n.Name.Parts {
			if prefix != "" {
				prefix += `\`
			}
			prefix += part.Name
			key := strings.ToLower(prefix)
			d := last(top.FindLocal(key, ast.NoPos, symbols.OfKind(symbols.KindNamespace)))
			if d == nil {
				d = top.Declare(&symbols.Declaration{
					Name:      prefix,
					Key:       key,
					Qualified: key,
					Kind:      symbols.KindNamespace,
					Range:     ast.Range{Start: n.Name.Rng.Start, End: part.Rng.End},
				})
				d.Internal = ns
			}
			ns.Owner = d
		}
	}
	b.unit.BindScope(n, ns)
	b.stmts(n.Stmts, ns)
}

func (b *builder) aliases(n *ast.UseDecl, scope *symbols.Scope) {
	kind := symbols.KindClass
	switch n.Kind {
	case "function":
		kind = symbols.KindFunction
	case "const":
		kind = symbols.KindConstant
	}
	for _, item := range n.Items {
		if item.Name == nil || len(item.Name.Parts) == 0 {
			continue
		}
		name, rng := item.Name.Last().Name, item.Name.Last().Rng
		if item.Alias != nil {
			name, rng = item.Alias.Name, item.Alias.Rng
		}
		d := scope.Declare(&symbols.Declaration{
			Name:      name,
			Kind:      symbols.KindAlias,
			Range:     rng,
			AliasOf:   item.Name.String(),
			AliasKind: kind,
		})
		b.unit.BindDecl(item, d)
	}
}

func (b *builder) class(n *ast.ClassDecl, scope *symbols.Scope) {
	if n.Name == nil {
		return
	}
	owner := global(scope)
	display := n.Name.Name
	if owner.Namespace != "" {
		display = owner.Namespace + `\` + display
	}
	d := owner.Declare(&symbols.Declaration{
		Name:      n.Name.Name,
		Kind:      symbols.KindClass,
		ClassKind: n.Kind,
		Qualified: symbols.QualifiedKey(symbols.KindClass, owner.Namespace, n.Name.Name),
		Range:     n.Name.Rng,
		Doc:       n.Doc,
		Abstract:  n.Abstract,
		Final:     n.Final,
	})
	d.Type = types.NewStructure(display)
	body := scope.NewChild(symbols.ScopeClass, n.Rng)
	body.Owner = d
	d.Internal = body
	b.unit.BindScope(n, body)
	b.unit.BindDecl(n, d)

	for _, m := range n.Members {
		switch m := m.(type) {
		case *ast.FuncDecl:
			b.function(m, body, d)
		case *ast.PropertyDecl:
			for _, p := range m.Props {
				pd := body.Declare(b.member(d, &symbols.Declaration{
					Name:       p.Var.Name,
					Kind:       symbols.KindVariable,
					Range:      p.Var.Rng,
					Doc:        m.Doc,
					Static:     m.Static,
					Visibility: symbols.ParseVisibility(m.Visibility),
				}))
				b.unit.BindDecl(p, pd)
				if p.Default != nil {
					ast.Inspect(p.Default, b.visitor(body))
				}
			}
		case *ast.ConstDecl:
			for _, c := range m.Items {
				cd := body.Declare(b.member(d, &symbols.Declaration{
					Name:       c.Name.Name,
					Kind:       symbols.KindConstant,
					Range:      c.Name.Rng,
					Doc:        m.Doc,
					Static:     true,
					Visibility: symbols.ParseVisibility(m.Visibility),
				}))
				b.unit.BindDecl(c, cd)
			}
		}
	}
}

// member marks d as a member of class and derives its qualified key.
func (b *builder) member(class, d *symbols.Declaration) *symbols.Declaration {
	d.Member = true
	key := symbols.KeyFor(d.Kind, d.Name)
	if d.Kind == symbols.KindVariable {
		key = "$" + key
	}
	d.Qualified = class.Qualified + "::" + key
	return d
}

func (b *builder) function(n *ast.FuncDecl, scope *symbols.Scope, class *symbols.Declaration) {
	if n.Name == nil {
		return
	}
	d := &symbols.Declaration{
		Name:       n.Name.Name,
		Kind:       symbols.KindFunction,
		Range:      n.Name.Rng,
		Doc:        n.Doc,
		Static:     n.Static,
		Abstract:   n.Abstract,
		Visibility: symbols.ParseVisibility(n.Visibility),
	}
	if class != nil {
		scope.Declare(b.member(class, d))
	} else {
		owner := global(scope)
		d.Qualified = symbols.QualifiedKey(symbols.KindFunction, owner.Namespace, n.Name.Name)
		owner.Declare(d)
	}
	b.unit.BindDecl(n, d)

	params := b.params(n.Params, scope, n.Name.Rng.End)
	params.Owner = d
	d.Internal = params
	b.unit.BindScope(n, params)

	if class != nil {
		b.promoted(n, class)
	}
	if n.Body != nil {
		body := scope.NewChild(symbols.ScopeOther, n.Body.Rng)
		body.Owner = d
		body.AddImport(params, n.Body.Rng.Start)
		b.unit.BindScope(n.Body, body)
		b.stmts(n.Body.Stmts, body)
	}
}

// params opens a parameter scope and declares every parameter in it.
func (b *builder) params(list []*ast.Param, scope *symbols.Scope, at ast.Pos) *symbols.Scope {
	rng := ast.Range{Start: at, End: at}
	for i, p := range list {
		if i == 0 {
			rng = p.Rng
		}
		rng = rng.Cover(p.Rng)
	}
	s := scope.NewChild(symbols.ScopeFunction, rng)
	for _, p := range list {
		if p.Var == nil {
			continue
		}
		d := s.Declare(&symbols.Declaration{
			Name:      p.Var.Name,
			Kind:      symbols.KindVariable,
			Range:     p.Var.Rng,
			Parameter: true,
		})
		b.unit.BindDecl(p, d)
		if p.Default != nil {
			ast.Inspect(p.Default, b.visitor(scope))
		}
	}
	return s
}

// promoted declares the properties of promoted constructor parameters.
func (b *builder) promoted(n *ast.FuncDecl, class *symbols.Declaration) {
	if !strings.EqualFold(n.Name.Name, "__construct") {
		return
	}
	for _, p := range n.Params {
		if p.Promoted == "" || p.Var == nil {
			continue
		}
		class.Internal.Declare(b.member(class, &symbols.Declaration{
			Name:       p.Var.Name,
			Kind:       symbols.KindVariable,
			Range:      p.Var.Rng,
			Visibility: symbols.ParseVisibility(p.Promoted),
		}))
	}
}

// closure opens the parameter, lexical and body scopes of a closure. The
// lexical variables themselves are declared by the type builder, once the
// variables they capture have types.
func (b *builder) closure(n *ast.Closure, scope *symbols.Scope) {
	at := n.Rng.Start
	params := b.params(n.Params, scope, at)
	b.unit.BindScope(n, params)

	var lexical *symbols.Scope
	if len(n.Uses) > 0 {
		rng := n.Uses[0].Rng
		for _, u := range n.Uses {
			rng = rng.Cover(u.Rng)
		}
		lexical = scope.NewChild(symbols.ScopeOther, rng)
		for _, u := range n.Uses {
			b.unit.BindScope(u, lexical)
		}
	}
	if n.Body == nil {
		return
	}
	body := scope.NewChild(symbols.ScopeOther, n.Body.Rng)
	body.AddImport(params, n.Body.Rng.Start)
	if lexical != nil {
		body.AddImport(lexical, n.Body.Rng.Start)
	}
	b.unit.BindScope(n.Body, body)
	b.stmts(n.Body.Stmts, body)
}

// define declares the constant of a define('NAME', value) call.
func (b *builder) define(n *ast.Call) {
	name, ok := n.Func.(*ast.Name)
	if !ok || !strings.EqualFold(name.String(), "define") || len(n.Args) == 0 {
		return
	}
	lit, ok := n.Args[0].(*ast.Literal)
	if !ok || lit.Kind != ast.LitString {
		return
	}
	value := strings.TrimPrefix(unquote(lit.Value), `\`)
	if value == "" {
		return
	}
	d := b.unit.Top.Declare(&symbols.Declaration{
		Name:      value,
		Kind:      symbols.KindConstant,
		Qualified: symbols.QualifiedKey(symbols.KindConstant, "", value),
		Range:     lit.Rng,
	})
	b.unit.BindDecl(n, d)
}

// include declares the file named by a literal include path.
func (b *builder) include(n *ast.Include, scope *symbols.Scope) {
	lit, ok := n.Path.(*ast.Literal)
	if !ok || lit.Kind != ast.LitString {
		return
	}
	path := unquote(lit.Value)
	if path == "" {
		return
	}
	d := scope.Declare(&symbols.Declaration{
		Name:  path,
		Kind:  symbols.KindImport,
		Range: lit.Rng,
		File:  path,
	})
	b.unit.BindDecl(n, d)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func last(decls []*symbols.Declaration) *symbols.Declaration {
	if len(decls) == 0 {
		return nil
	}
	return decls[len(decls)-1]
}
