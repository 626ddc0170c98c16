// Package asttest builds syntax trees for tests without going through the
// parser. Leaves receive increasing offsets in creation order, and composite
// nodes span their children, so trees built in source order get source-order
// positions.
package asttest

import (
	"strings"

	"phpsema/internal/ast"
)

type Builder struct {
	pos ast.Pos
}

func New() *Builder {
	return &Builder{}
}

// Pos returns the offset the next leaf will get. It is past every node built so far.
func (b *Builder) Pos() ast.Pos {
	return b.pos
}

func (b *Builder) leaf(width int) ast.Range {
	if width < 1 {
		width = 1
	}
	r := ast.Range{Start: b.pos, End: b.pos + ast.Pos(width)}
	b.pos = r.End + 1
	return r
}

func (b *Builder) span(rs ...ast.Range) ast.Range {
	out := ast.Range{Start: ast.NoPos, End: ast.NoPos}
	for _, r := range rs {
		out = out.Cover(r)
	}
	if !out.IsValid() {
		return b.leaf(1)
	}
	return out
}

func rangeOf(n ast.Node) ast.Range {
	if n == nil {
		return ast.Range{Start: ast.NoPos, End: ast.NoPos}
	}
	switch v := n.(type) {
	case *ast.Block:
		if v == nil {
			return ast.Range{Start: ast.NoPos, End: ast.NoPos}
		}
	case *ast.Name:
		if v == nil {
			return ast.Range{Start: ast.NoPos, End: ast.NoPos}
		}
	}
	return n.Span()
}

func ranges[T ast.Node](list []T) []ast.Range {
	out := make([]ast.Range, 0, len(list))
	for _, n := range list {
		out = append(out, rangeOf(n))
	}
	return out
}

func (b *Builder) Ident(name string) *ast.Ident {
	return &ast.Ident{Name: name, Rng: b.leaf(len(name))}
}

// Name parses a backslash-separated name; a leading backslash makes it fully qualified.
func (b *Builder) Name(qualified string) *ast.Name {
	n := &ast.Name{FullyQualified: strings.HasPrefix(qualified, `\`)}
	for _, part := range strings.Split(strings.TrimPrefix(qualified, `\`), `\`) {
		n.Parts = append(n.Parts, b.Ident(part))
	}
	n.Rng = b.span(ranges(n.Parts)...)
	return n
}

// Const is a bare constant reference such as true or PHP_EOL.
func (b *Builder) Const(name string) *ast.Name {
	return b.Name(name)
}

func (b *Builder) Var(name string) *ast.Variable {
	return &ast.Variable{Name: name, Rng: b.leaf(len(name) + 1)}
}

func (b *Builder) Int(v string) *ast.Literal {
	return &ast.Literal{Kind: ast.LitInt, Value: v, Rng: b.leaf(len(v))}
}

func (b *Builder) Float(v string) *ast.Literal {
	return &ast.Literal{Kind: ast.LitFloat, Value: v, Rng: b.leaf(len(v))}
}

// Str takes the literal with its quotes, e.g. `'foo'`.
func (b *Builder) Str(raw string) *ast.Literal {
	return &ast.Literal{Kind: ast.LitString, Value: raw, Rng: b.leaf(len(raw))}
}

func (b *Builder) Interp(parts ...ast.Expr) *ast.Interpolated {
	return &ast.Interpolated{Parts: parts, Rng: b.span(ranges(parts)...)}
}

func (b *Builder) Arr(values ...ast.Expr) *ast.Array {
	a := &ast.Array{}
	for _, v := range values {
		a.Items = append(a.Items, &ast.ArrayItem{Value: v, Rng: v.Span()})
	}
	a.Rng = b.span(ranges(values)...)
	return a
}

func (b *Builder) Assign(l, r ast.Expr) *ast.Assign {
	return b.AssignOp("=", l, r)
}

func (b *Builder) AssignOp(op string, l, r ast.Expr) *ast.Assign {
	return &ast.Assign{Op: op, Left: l, Right: r, Rng: b.span(l.Span(), r.Span())}
}

func (b *Builder) AssignRef(l, r ast.Expr) *ast.Assign {
	a := b.AssignOp("=", l, r)
	a.ByRef = true
	return a
}

func (b *Builder) Bin(op string, l, r ast.Expr) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r, Rng: b.span(l.Span(), r.Span())}
}

func (b *Builder) Unary(op string, x ast.Expr) *ast.Unary {
	return &ast.Unary{Op: op, X: x, Rng: b.span(x.Span())}
}

func (b *Builder) InstanceOf(x ast.Expr, class string) *ast.InstanceOf {
	c := b.Name(class)
	return &ast.InstanceOf{X: x, Class: c, Rng: b.span(x.Span(), c.Rng)}
}

func (b *Builder) Cast(to string, x ast.Expr) *ast.Cast {
	return &ast.Cast{To: to, X: x, Rng: b.span(x.Span())}
}

func (b *Builder) New(class string, args ...ast.Expr) *ast.New {
	c := b.Name(class)
	return &ast.New{Class: c, Args: args, Rng: b.span(append(ranges(args), c.Rng)...)}
}

func (b *Builder) Call(fn string, args ...ast.Expr) *ast.Call {
	f := b.Name(fn)
	return &ast.Call{Func: f, Args: args, Rng: b.span(append(ranges(args), f.Rng)...)}
}

func (b *Builder) CallExpr(fn ast.Expr, args ...ast.Expr) *ast.Call {
	return &ast.Call{Func: fn, Args: args, Rng: b.span(append(ranges(args), fn.Span())...)}
}

func (b *Builder) MCall(obj ast.Expr, method string, args ...ast.Expr) *ast.MethodCall {
	m := b.Ident(method)
	return &ast.MethodCall{Object: obj, Method: m, Args: args, Rng: b.span(append(ranges(args), obj.Span(), m.Rng)...)}
}

func (b *Builder) Prop(obj ast.Expr, prop string) *ast.PropertyFetch {
	p := b.Ident(prop)
	return &ast.PropertyFetch{Object: obj, Prop: p, Rng: b.span(obj.Span(), p.Rng)}
}

func (b *Builder) SCall(class, method string, args ...ast.Expr) *ast.StaticCall {
	c := b.Name(class)
	m := b.Ident(method)
	return &ast.StaticCall{Class: c, Method: m, Args: args, Rng: b.span(append(ranges(args), c.Rng, m.Rng)...)}
}

func (b *Builder) SProp(class, prop string) *ast.StaticProp {
	c := b.Name(class)
	p := b.Ident(prop)
	return &ast.StaticProp{Class: c, Prop: p, Rng: b.span(c.Rng, p.Rng)}
}

func (b *Builder) CConst(class, name string) *ast.ClassConst {
	c := b.Name(class)
	k := b.Ident(name)
	return &ast.ClassConst{Class: c, Const: k, Rng: b.span(c.Rng, k.Rng)}
}

func (b *Builder) Idx(x, i ast.Expr) *ast.Index {
	rs := []ast.Range{x.Span()}
	if i != nil {
		rs = append(rs, i.Span())
	}
	return &ast.Index{X: x, Index: i, Rng: b.span(rs...)}
}

func (b *Builder) Include(kind string, path ast.Expr) *ast.Include {
	return &ast.Include{Kind: kind, Path: path, Rng: b.span(path.Span())}
}

func (b *Builder) Param(name string) *ast.Param {
	v := b.Var(name)
	return &ast.Param{Var: v, Rng: v.Rng}
}

// TypedParam declares a parameter with a class or keyword type hint.
func (b *Builder) TypedParam(hint, name string) *ast.Param {
	h := b.Hint(hint)
	v := b.Var(name)
	return &ast.Param{Var: v, Type: h, Rng: b.span(h.Rng, v.Rng)}
}

func (b *Builder) DefaultParam(name string, def ast.Expr) *ast.Param {
	p := b.Param(name)
	p.Default = def
	p.Rng = b.span(p.Rng, def.Span())
	return p
}

// Hint builds a type hint. Builtin keywords go to Keywords, anything else is a class.
func (b *Builder) Hint(hint string) *ast.TypeHint {
	switch strings.ToLower(hint) {
	case "array", "callable", "iterable", "int", "float", "bool", "string", "mixed", "void", "object", "null", "false", "true":
		return &ast.TypeHint{Keywords: []string{strings.ToLower(hint)}, Rng: b.leaf(len(hint))}
	}
	n := b.Name(hint)
	return &ast.TypeHint{Classes: []*ast.Name{n}, Rng: n.Rng}
}

func (b *Builder) Use(name string, byRef bool) *ast.ClosureUse {
	v := b.Var(name)
	return &ast.ClosureUse{Var: v, ByRef: byRef, Rng: v.Rng}
}

func (b *Builder) Closure(params []*ast.Param, uses []*ast.ClosureUse, body ...ast.Stmt) *ast.Closure {
	blk := b.Block(body...)
	rs := append(ranges(params), ranges(uses)...)
	rs = append(rs, blk.Rng)
	return &ast.Closure{Params: params, Uses: uses, Body: blk, Rng: b.span(rs...)}
}

func (b *Builder) Expr(x ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: x, Rng: b.span(x.Span())}
}

// ExprDoc is an expression statement preceded by a doc comment.
func (b *Builder) ExprDoc(doc string, x ast.Expr) *ast.ExprStmt {
	s := b.Expr(x)
	s.Doc = doc
	return s
}

func (b *Builder) Ret(x ast.Expr) *ast.Return {
	if x == nil {
		return &ast.Return{Rng: b.leaf(6)}
	}
	return &ast.Return{X: x, Rng: b.span(x.Span())}
}

func (b *Builder) Echo(xs ...ast.Expr) *ast.Echo {
	return &ast.Echo{Exprs: xs, Rng: b.span(ranges(xs)...)}
}

func (b *Builder) Block(stmts ...ast.Stmt) *ast.Block {
	open := b.leaf(1)
	rs := append([]ast.Range{open}, ranges(stmts)...)
	rs = append(rs, b.leaf(1))
	return &ast.Block{Stmts: stmts, Rng: b.span(rs...)}
}

func (b *Builder) Func(name string, params []*ast.Param, body ...ast.Stmt) *ast.FuncDecl {
	id := b.Ident(name)
	blk := b.Block(body...)
	rs := append([]ast.Range{id.Rng}, ranges(params)...)
	return &ast.FuncDecl{Name: id, Params: params, Body: blk, Rng: b.span(append(rs, blk.Rng)...)}
}

func (b *Builder) Method(name string, params []*ast.Param, body ...ast.Stmt) *ast.FuncDecl {
	f := b.Func(name, params, body...)
	f.Method = true
	f.Visibility = "public"
	return f
}

// AbstractMethod is a method without a body.
func (b *Builder) AbstractMethod(name string, params []*ast.Param) *ast.FuncDecl {
	id := b.Ident(name)
	rs := append([]ast.Range{id.Rng}, ranges(params)...)
	return &ast.FuncDecl{Name: id, Params: params, Method: true, Abstract: true, Visibility: "public", Rng: b.span(rs...)}
}

func (b *Builder) Class(name string, members ...ast.Stmt) *ast.ClassDecl {
	return b.classLike(ast.KindClass, name, members)
}

func (b *Builder) Interface(name string, members ...ast.Stmt) *ast.ClassDecl {
	return b.classLike(ast.KindInterface, name, members)
}

func (b *Builder) Trait(name string, members ...ast.Stmt) *ast.ClassDecl {
	return b.classLike(ast.KindTrait, name, members)
}

func (b *Builder) classLike(kind ast.ClassKind, name string, members []ast.Stmt) *ast.ClassDecl {
	id := b.Ident(name)
	rs := append([]ast.Range{id.Rng}, ranges(members)...)
	rs = append(rs, b.leaf(1))
	return &ast.ClassDecl{Kind: kind, Name: id, Members: members, Rng: b.span(rs...)}
}

// Extends adds parent names to c, keeping its range covering them.
func (b *Builder) Extends(c *ast.ClassDecl, parents ...string) *ast.ClassDecl {
	for _, p := range parents {
		n := b.Name(p)
		c.Extends = append(c.Extends, n)
		c.Rng = c.Rng.Cover(n.Rng)
	}
	return c
}

func (b *Builder) Implements(c *ast.ClassDecl, ifaces ...string) *ast.ClassDecl {
	for _, p := range ifaces {
		n := b.Name(p)
		c.Implements = append(c.Implements, n)
		c.Rng = c.Rng.Cover(n.Rng)
	}
	return c
}

func (b *Builder) Property(name string, def ast.Expr) *ast.PropertyDecl {
	v := b.Var(name)
	item := &ast.PropItem{Var: v, Default: def, Rng: v.Rng}
	if def != nil {
		item.Rng = b.span(v.Rng, def.Span())
	}
	return &ast.PropertyDecl{Props: []*ast.PropItem{item}, Visibility: "public", Rng: item.Rng}
}

func (b *Builder) ConstDecl(name string, v ast.Expr) *ast.ConstDecl {
	id := b.Ident(name)
	item := &ast.ConstItem{Name: id, Value: v, Rng: b.span(id.Rng, v.Span())}
	return &ast.ConstDecl{Items: []*ast.ConstItem{item}, Rng: item.Rng}
}

func (b *Builder) TraitUse(traits ...string) *ast.TraitUse {
	tu := &ast.TraitUse{}
	for _, t := range traits {
		tu.Traits = append(tu.Traits, b.Name(t))
	}
	tu.Rng = b.span(ranges(tu.Traits)...)
	return tu
}

func (b *Builder) Namespace(name string, stmts ...ast.Stmt) *ast.Namespace {
	n := b.Name(name)
	rs := append([]ast.Range{n.Rng}, ranges(stmts)...)
	rs = append(rs, b.leaf(1))
	return &ast.Namespace{Name: n, Stmts: stmts, Braced: true, Rng: b.span(rs...)}
}

func (b *Builder) UseNS(name, alias string) *ast.UseDecl {
	item := &ast.UseItem{Name: b.Name(name)}
	item.Rng = item.Name.Rng
	if alias != "" {
		item.Alias = b.Ident(alias)
		item.Rng = b.span(item.Rng, item.Alias.Rng)
	}
	return &ast.UseDecl{Items: []*ast.UseItem{item}, Rng: item.Rng}
}

func (b *Builder) Foreach(x, key, value ast.Expr, body ...ast.Stmt) *ast.Foreach {
	rs := []ast.Range{x.Span()}
	if key != nil {
		rs = append(rs, key.Span())
	}
	if value != nil {
		rs = append(rs, value.Span())
	}
	blk := b.Block(body...)
	return &ast.Foreach{X: x, Key: key, Value: value, Body: blk, Rng: b.span(append(rs, blk.Rng)...)}
}

func (b *Builder) Catch(class, variable string, body ...ast.Stmt) *ast.Catch {
	n := b.Name(class)
	v := b.Var(variable)
	blk := b.Block(body...)
	return &ast.Catch{Types: []*ast.Name{n}, Var: v, Body: blk, Rng: b.span(n.Rng, v.Rng, blk.Rng)}
}

func (b *Builder) Try(body []ast.Stmt, catches ...*ast.Catch) *ast.Try {
	blk := b.Block(body...)
	rs := append([]ast.Range{blk.Rng}, ranges(catches)...)
	return &ast.Try{Body: blk, Catches: catches, Rng: b.span(rs...)}
}

func (b *Builder) Global(names ...string) *ast.Global {
	g := &ast.Global{}
	for _, n := range names {
		g.Vars = append(g.Vars, b.Var(n))
	}
	g.Rng = b.span(ranges(g.Vars)...)
	return g
}

func (b *Builder) Static(name string, init ast.Expr) *ast.StaticVar {
	v := b.Var(name)
	item := &ast.StaticItem{Var: v, Init: init, Rng: v.Rng}
	if init != nil {
		item.Rng = b.span(v.Rng, init.Span())
	}
	return &ast.StaticVar{Vars: []*ast.StaticItem{item}, Rng: item.Rng}
}

func (b *Builder) If(cond ast.Expr, then ...ast.Stmt) *ast.If {
	blk := b.Block(then...)
	return &ast.If{Cond: cond, Then: blk, Rng: b.span(cond.Span(), blk.Rng)}
}

// File wraps stmts into a unit whose source is blank text of matching length.
func (b *Builder) File(path string, stmts ...ast.Stmt) *ast.File {
	end := b.leaf(1)
	return ast.NewFile(path, []byte(strings.Repeat(" ", int(end.End))), stmts)
}
