package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpsema/internal/ast"
)

func (c *converter) ident(n *sitter.Node) *ast.Ident {
	return &ast.Ident{Name: strings.TrimPrefix(c.text(n), "$"), Rng: c.rng(n)}
}

// name splits a written name at its backslashes. Every segment gets the
// range it occupies in the source.
func (c *converter) name(n *sitter.Node) *ast.Name {
	text := c.text(n)
	start := c.pos(n.StartByte())
	out := &ast.Name{Rng: c.rng(n)}
	off := 0
	if strings.HasPrefix(text, `\`) {
		out.FullyQualified = true
		off = 1
	}
	for off <= len(text) {
		end := strings.IndexByte(text[off:], '\\')
		if end < 0 {
			end = len(text) - off
		}
		if seg := strings.TrimSpace(text[off : off+end]); seg != "" {
			out.Parts = append(out.Parts, &ast.Ident{
				Name: seg,
				Rng:  ast.Range{Start: start + ast.Pos(off), End: start + ast.Pos(off+end)},
			})
		}
		off += end + 1
	}
	return out
}

func (c *converter) variable(n *sitter.Node) *ast.Variable {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "variable_name":
		return &ast.Variable{Name: strings.TrimPrefix(c.text(n), "$"), Rng: c.rng(n)}
	case "by_ref":
		if kids := namedChildren(n); len(kids) > 0 {
			return c.variable(kids[0])
		}
	}
	return nil
}

// exprList converts expressions, flattening comma sequences.
func (c *converter) exprList(nodes []*sitter.Node) []ast.Expr {
	var out []ast.Expr
	for _, n := range nodes {
		if n.Type() == "sequence_expression" {
			out = append(out, c.exprList(namedChildren(n))...)
			continue
		}
		if x := c.expr(n); x != nil {
			out = append(out, x)
		}
	}
	return out
}

func (c *converter) args(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for _, k := range namedChildren(n) {
		if k.Type() == "argument" {
			kids := namedChildren(k)
			if len(kids) == 0 {
				continue
			}
			k = kids[len(kids)-1]
		}
		if k.Type() == "variadic_unpacking" {
			kids := namedChildren(k)
			if len(kids) == 0 {
				continue
			}
			k = kids[0]
		}
		if x := c.expr(k); x != nil {
			out = append(out, x)
		}
	}
	return out
}

// constructs are the call-like language constructs modeled as Other.
var constructs = map[string]bool{
	"isset": true, "empty": true, "eval": true,
}

func (c *converter) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment":
		return nil
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return c.expr(kids[0])
		}
		return nil
	case "variable_name":
		return c.variable(n)
	case "dynamic_variable_name":
		vv := &ast.VarVar{Rng: c.rng(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			vv.X = c.expr(kids[0])
		}
		return vv
	case "name", "qualified_name", "relative_scope", "boolean", "null":
		return c.name(n)
	case "integer":
		return &ast.Literal{Kind: ast.LitInt, Value: c.text(n), Rng: c.rng(n)}
	case "float":
		return &ast.Literal{Kind: ast.LitFloat, Value: c.text(n), Rng: c.rng(n)}
	case "string", "nowdoc":
		return &ast.Literal{Kind: ast.LitString, Value: c.text(n), Rng: c.rng(n)}
	case "encapsed_string", "heredoc":
		parts := c.interpolated(n)
		if len(parts) == 0 {
			return &ast.Literal{Kind: ast.LitString, Value: c.text(n), Rng: c.rng(n)}
		}
		return &ast.Interpolated{Parts: parts, Rng: c.rng(n)}
	case "array_creation_expression":
		return c.array(n, false)
	case "list_literal":
		return c.array(n, true)
	case "assignment_expression", "reference_assignment_expression":
		return &ast.Assign{
			Op:    "=",
			ByRef: n.Type() == "reference_assignment_expression",
			Left:  c.assignTarget(n.ChildByFieldName("left")),
			Right: c.expr(n.ChildByFieldName("right")),
			Rng:   c.rng(n),
		}
	case "augmented_assignment_expression":
		return &ast.Assign{
			Op:    strings.TrimSuffix(c.operator(n), "="),
			Left:  c.expr(n.ChildByFieldName("left")),
			Right: c.expr(n.ChildByFieldName("right")),
			Rng:   c.rng(n),
		}
	case "binary_expression":
		op := strings.ToLower(c.operator(n))
		left, right := c.expr(n.ChildByFieldName("left")), c.expr(n.ChildByFieldName("right"))
		if op == "instanceof" {
			return &ast.InstanceOf{X: left, Class: right, Rng: c.rng(n)}
		}
		return &ast.Binary{Op: op, Left: left, Right: right, Rng: c.rng(n)}
	case "unary_op_expression", "error_suppression_expression", "update_expression":
		return c.unary(n)
	case "cast_expression":
		to := ""
		if t := n.ChildByFieldName("type"); t != nil {
			to = strings.ToLower(strings.TrimSpace(c.text(t)))
		}
		return &ast.Cast{To: to, X: c.expr(n.ChildByFieldName("value")), Rng: c.rng(n)}
	case "object_creation_expression":
		return c.newExpr(n)
	case "function_call_expression":
		fn := n.ChildByFieldName("function")
		args := c.args(n.ChildByFieldName("arguments"))
		if fn != nil && fn.Type() == "name" && constructs[strings.ToLower(c.text(fn))] {
			return &ast.Other{Kind: strings.ToLower(c.text(fn)), Kids: args, Rng: c.rng(n)}
		}
		callee := c.expr(fn)
		if callee == nil {
			return &ast.Other{Kind: "call", Kids: args, Rng: c.rng(n)}
		}
		return &ast.Call{Func: callee, Args: args, Rng: c.rng(n)}
	case "member_call_expression", "nullsafe_member_call_expression":
		m := &ast.MethodCall{
			Object:   c.expr(n.ChildByFieldName("object")),
			Args:     c.args(n.ChildByFieldName("arguments")),
			NullSafe: n.Type() == "nullsafe_member_call_expression",
			Rng:      c.rng(n),
		}
		m.Method, m.Dynamic = c.memberName(n.ChildByFieldName("name"))
		return m
	case "member_access_expression", "nullsafe_member_access_expression":
		p := &ast.PropertyFetch{
			Object:   c.expr(n.ChildByFieldName("object")),
			NullSafe: n.Type() == "nullsafe_member_access_expression",
			Rng:      c.rng(n),
		}
		p.Prop, p.Dynamic = c.memberName(n.ChildByFieldName("name"))
		return p
	case "scoped_call_expression":
		s := &ast.StaticCall{
			Class: c.expr(n.ChildByFieldName("scope")),
			Args:  c.args(n.ChildByFieldName("arguments")),
			Rng:   c.rng(n),
		}
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "name" {
			s.Method = c.ident(name)
		}
		return s
	case "scoped_property_access_expression":
		s := &ast.StaticProp{Class: c.expr(n.ChildByFieldName("scope")), Rng: c.rng(n)}
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "variable_name" {
			s.Prop = c.ident(name)
		}
		return s
	case "class_constant_access_expression":
		kids := namedChildren(n)
		cc := &ast.ClassConst{Rng: c.rng(n)}
		if len(kids) > 0 {
			cc.Class = c.expr(kids[0])
		}
		if len(kids) > 1 {
			cc.Const = c.ident(kids[len(kids)-1])
		} else if text := c.text(n); strings.HasSuffix(strings.ToLower(text), "::class") {
			// Foo::class, where the keyword is an anonymous token.
			end := c.pos(n.EndByte())
			cc.Const = &ast.Ident{Name: "class", Rng: ast.Range{Start: end - 5, End: end}}
		}
		return cc
	case "subscript_expression":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		ix := &ast.Index{X: c.expr(kids[0]), Rng: c.rng(n)}
		if len(kids) > 1 {
			ix.Index = c.expr(kids[1])
		}
		return ix
	case "anonymous_function_creation_expression", "anonymous_function":
		return c.closure(n)
	case "arrow_function":
		return c.arrow(n)
	case "conditional_expression":
		return &ast.Ternary{
			Cond: c.expr(n.ChildByFieldName("condition")),
			Then: c.expr(n.ChildByFieldName("body")),
			Else: c.expr(n.ChildByFieldName("alternative")),
			Rng:  c.rng(n),
		}
	case "include_expression", "include_once_expression", "require_expression", "require_once_expression":
		inc := &ast.Include{Kind: strings.TrimSuffix(n.Type(), "_expression"), Rng: c.rng(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			inc.Path = c.expr(kids[0])
		}
		return inc
	case "clone_expression":
		cl := &ast.Clone{Rng: c.rng(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			cl.X = c.expr(kids[0])
		}
		return cl
	case "print_intrinsic":
		return &ast.Other{Kind: "print", Kids: c.exprList(namedChildren(n)), Rng: c.rng(n)}
	case "sequence_expression":
		return &ast.Other{Kind: "sequence", Kids: c.exprList(namedChildren(n)), Rng: c.rng(n)}
	}
	return c.other(n)
}

// other keeps an unmodeled construct with the expressions found beneath it,
// so their names are still resolved.
func (c *converter) other(n *sitter.Node) ast.Expr {
	o := &ast.Other{Kind: strings.TrimSuffix(n.Type(), "_expression"), Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		if x := c.expr(k); x != nil {
			o.Kids = append(o.Kids, x)
		}
	}
	return o
}

func (c *converter) interpolated(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "string_value", "string_content", "string", "escape_sequence", "heredoc_start", "heredoc_end", "text":
		case "heredoc_body":
			out = append(out, c.interpolated(k)...)
		default:
			if x := c.expr(k); x != nil {
				out = append(out, x)
			}
		}
	}
	return out
}

// operator returns the operator token of n, from its field when the grammar
// names it and otherwise from the first anonymous child between operands.
func (c *converter) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return c.text(op)
	}
	for _, k := range children(n) {
		if !k.IsNamed() {
			return c.text(k)
		}
	}
	return ""
}

func (c *converter) unary(n *sitter.Node) ast.Expr {
	u := &ast.Unary{Rng: c.rng(n)}
	switch n.Type() {
	case "error_suppression_expression":
		u.Op = "@"
	default:
		u.Op = c.operator(n)
	}
	for _, k := range namedChildren(n) {
		if x := c.expr(k); x != nil {
			u.X = x
			break
		}
	}
	return u
}

func (c *converter) memberName(n *sitter.Node) (*ast.Ident, ast.Expr) {
	if n == nil {
		return nil, nil
	}
	if n.Type() == "name" {
		return c.ident(n), nil
	}
	return nil, c.expr(n)
}

// assignTarget converts the left side of an assignment. A short array on
// the left is a destructuring target.
func (c *converter) assignTarget(n *sitter.Node) ast.Expr {
	if n != nil && n.Type() == "array_creation_expression" {
		return c.array(n, true)
	}
	return c.expr(n)
}

func (c *converter) array(n *sitter.Node, list bool) *ast.Array {
	a := &ast.Array{List: list, Rng: c.rng(n)}
	var key ast.Expr
	for _, k := range children(n) {
		if !k.IsNamed() {
			continue
		}
		switch k.Type() {
		case "array_element_initializer":
			if it := c.arrayItem(k); it != nil {
				a.Items = append(a.Items, it)
			}
			continue
		case "list_literal":
			a.Items = append(a.Items, &ast.ArrayItem{Key: key, Value: c.array(k, true), Rng: c.rng(k)})
			key = nil
			continue
		}
		x := c.expr(k)
		if x == nil {
			continue
		}
		// list(k => $v) has no element wrapper: a value followed by => is a key.
		if next := k.NextSibling(); next != nil && next.Type() == "=>" {
			key = x
			continue
		}
		rng := c.rng(k)
		if key != nil {
			rng = key.Span().Cover(rng)
		}
		a.Items = append(a.Items, &ast.ArrayItem{Key: key, Value: x, Rng: rng})
		key = nil
	}
	return a
}

func (c *converter) arrayItem(n *sitter.Node) *ast.ArrayItem {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	it := &ast.ArrayItem{Rng: c.rng(n)}
	if hasToken(n, "=>") && len(kids) > 1 {
		it.Key = c.expr(kids[0])
		kids = kids[1:]
	}
	v := kids[len(kids)-1]
	switch v.Type() {
	case "by_ref":
		it.Value, it.ByRef = c.target(v)
	case "variadic_unpacking":
		if inner := namedChildren(v); len(inner) > 0 {
			it.Value = c.expr(inner[0])
		}
	case "list_literal":
		it.Value = c.array(v, true)
	default:
		it.Value = c.expr(v)
	}
	if it.Value == nil {
		return nil
	}
	return it
}

func (c *converter) newExpr(n *sitter.Node) ast.Expr {
	x := &ast.New{Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "arguments":
			x.Args = c.args(k)
		case "anonymous_class", "declaration_list", "base_clause", "class_interface_clause", "attribute_list":
		default:
			if x.Class == nil {
				x.Class = c.expr(k)
			}
		}
	}
	if ac := firstOfType(n, "anonymous_class"); ac != nil {
		x.Class = nil
		x.Args = c.args(firstOfType(ac, "arguments"))
	}
	return x
}

func (c *converter) closure(n *sitter.Node) ast.Expr {
	cl := &ast.Closure{Doc: c.closureDoc(n), Rng: c.rng(n)}
	cl.Params = c.params(n.ChildByFieldName("parameters"))
	if body := n.ChildByFieldName("body"); body != nil {
		cl.Body = c.block(body)
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "static_modifier":
			cl.Static = true
		case "reference_modifier":
			cl.ByRefReturn = true
		case "anonymous_function_use_clause":
			for _, v := range namedChildren(k) {
				if u := c.closureUse(v); u != nil {
					cl.Uses = append(cl.Uses, u)
				}
			}
		}
	}
	if hasToken(n, "static") {
		cl.Static = true
	}
	return cl
}

func (c *converter) closureUse(n *sitter.Node) *ast.ClosureUse {
	v := c.variable(n)
	if v == nil {
		return nil
	}
	return &ast.ClosureUse{Var: v, ByRef: n.Type() == "by_ref", Rng: c.rng(n)}
}

// arrow converts fn(...) => expr into a closure whose body returns expr.
func (c *converter) arrow(n *sitter.Node) ast.Expr {
	cl := &ast.Closure{Arrow: true, Doc: c.closureDoc(n), Rng: c.rng(n)}
	cl.Params = c.params(n.ChildByFieldName("parameters"))
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "static_modifier":
			cl.Static = true
		case "reference_modifier":
			cl.ByRefReturn = true
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		ret := &ast.Return{X: c.expr(body), Rng: c.rng(body)}
		cl.Body = &ast.Block{Stmts: []ast.Stmt{ret}, Rng: c.rng(body)}
	}
	return cl
}

// closureDoc is the doc comment of the statement holding the closure.
func (c *converter) closureDoc(n *sitter.Node) string {
	for p := n; p != nil; p = p.Parent() {
		if doc := c.docBefore(p); doc != "" {
			return doc
		}
		if strings.HasSuffix(p.Type(), "_statement") {
			break
		}
	}
	return ""
}
