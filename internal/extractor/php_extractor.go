package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"phpsema/internal/ast"
)

// PHPExtractor implements LanguageExtractor for PHP.
type PHPExtractor struct{}

func (p *PHPExtractor) GetLanguage() *sitter.Language {
	return php.GetLanguage()
}

func (p *PHPExtractor) GetQuery() string {
	return `(ERROR) @error`
}

func (p *PHPExtractor) Convert(root *sitter.Node, src []byte, base int) []ast.Stmt {
	c := &converter{src: src, base: base}
	return c.statements(namedChildren(root))
}

// converter builds ast nodes from one parsed tree. Conversion helpers
// returning interfaces return a nil interface, never a typed nil pointer,
// for nodes they cannot convert.
type converter struct {
	src  []byte
	base int
}

func (c *converter) pos(off uint32) ast.Pos {
	return ast.Pos(int(off) - c.base)
}

func (c *converter) rng(n *sitter.Node) ast.Range {
	return ast.Range{Start: c.pos(n.StartByte()), End: c.pos(n.EndByte())}
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if k := n.NamedChild(i); k != nil && k.Type() != "comment" {
			out = append(out, k)
		}
	}
	return out
}

// children returns every child, anonymous tokens included, except comments.
func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if k := n.Child(i); k != nil && k.Type() != "comment" {
			out = append(out, k)
		}
	}
	return out
}

func hasToken(n *sitter.Node, token string) bool {
	for _, k := range children(n) {
		if !k.IsNamed() && k.Type() == token {
			return true
		}
	}
	return false
}

func firstOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, k := range namedChildren(n) {
		for _, t := range types {
			if k.Type() == t {
				return k
			}
		}
	}
	return nil
}

// docBefore returns the doc comment directly preceding n.
func (c *converter) docBefore(n *sitter.Node) string {
	prev := n.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	if text := c.text(prev); strings.HasPrefix(text, "/**") {
		return text
	}
	return ""
}

// statements converts a statement list. A doc comment attaches to the
// statement that follows it, and the statements after an unbraced namespace
// declaration are folded into it.
func (c *converter) statements(nodes []*sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	var ns *ast.Namespace
	for _, k := range nodes {
		s := c.stmt(k, c.docBefore(k))
		if s == nil {
			continue
		}
		if n, ok := s.(*ast.Namespace); ok {
			ns = nil
			if !n.Braced {
				ns = n
			}
			out = append(out, n)
			continue
		}
		if ns != nil {
			ns.Stmts = append(ns.Stmts, s)
			ns.Rng = ns.Rng.Cover(s.Span())
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *converter) block(n *sitter.Node) *ast.Block {
	if n == nil {
		return nil
	}
	if n.Type() == "compound_statement" || n.Type() == "colon_block" {
		return &ast.Block{Stmts: c.statements(namedChildren(n)), Rng: c.rng(n)}
	}
	b := &ast.Block{Rng: c.rng(n)}
	if s := c.stmt(n, ""); s != nil {
		b.Stmts = []ast.Stmt{s}
	}
	return b
}

// body converts the body of a control statement. A lone semicolon gives nil.
func (c *converter) body(n *sitter.Node) ast.Stmt {
	if n == nil {
		return nil
	}
	if n.Type() == "compound_statement" || n.Type() == "colon_block" {
		return c.block(n)
	}
	return c.stmt(n, c.docBefore(n))
}

func (c *converter) stmt(n *sitter.Node, doc string) ast.Stmt {
	switch n.Type() {
	case "php_tag", "text_interpolation", "comment", "empty_statement":
		return nil
	case "namespace_definition":
		return c.namespace(n)
	case "namespace_use_declaration":
		return c.useDecl(n)
	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		if d := c.class(n, doc); d != nil {
			return d
		}
		return nil
	case "function_definition":
		if f := c.function(n, doc, false); f != nil {
			return f
		}
		return nil
	case "const_declaration":
		return c.constDecl(n, doc)
	case "expression_statement":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		x := c.expr(kids[0])
		if x == nil {
			return &ast.Nop{Rng: c.rng(n)}
		}
		return &ast.ExprStmt{X: x, Doc: doc, Rng: c.rng(n)}
	case "echo_statement":
		return &ast.Echo{Exprs: c.exprList(namedChildren(n)), Rng: c.rng(n)}
	case "unset_statement":
		return &ast.Unset{Exprs: c.exprList(namedChildren(n)), Rng: c.rng(n)}
	case "return_statement":
		r := &ast.Return{Rng: c.rng(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			r.X = c.expr(kids[0])
		}
		return r
	case "compound_statement", "colon_block":
		return c.block(n)
	case "if_statement":
		return c.ifStmt(n)
	case "while_statement":
		return &ast.While{
			Cond: c.expr(n.ChildByFieldName("condition")),
			Body: c.body(n.ChildByFieldName("body")),
			Rng:  c.rng(n),
		}
	case "do_statement":
		return &ast.While{
			Cond: c.expr(n.ChildByFieldName("condition")),
			Body: c.body(n.ChildByFieldName("body")),
			Do:   true,
			Rng:  c.rng(n),
		}
	case "for_statement":
		return c.forStmt(n)
	case "foreach_statement":
		return c.foreach(n)
	case "switch_statement":
		return c.switchStmt(n)
	case "try_statement":
		return c.try(n)
	case "global_declaration":
		g := &ast.Global{Doc: doc, Rng: c.rng(n)}
		for _, k := range namedChildren(n) {
			if v := c.variable(k); v != nil {
				g.Vars = append(g.Vars, v)
			}
		}
		return g
	case "function_static_declaration":
		return c.staticVar(n, doc)
	case "break_statement", "continue_statement", "goto_statement", "named_label_statement",
		"text", "declare_statement":
		return &ast.Nop{Rng: c.rng(n)}
	case "ERROR":
		// Keep whatever statements the parser recovered inside the error.
		if stmts := c.statements(namedChildren(n)); len(stmts) > 0 {
			return &ast.Block{Stmts: stmts, Rng: c.rng(n)}
		}
		return nil
	}
	if x := c.expr(n); x != nil {
		return &ast.ExprStmt{X: x, Doc: doc, Rng: c.rng(n)}
	}
	return &ast.Nop{Rng: c.rng(n)}
}

func (c *converter) namespace(n *sitter.Node) *ast.Namespace {
	ns := &ast.Namespace{Rng: c.rng(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		ns.Name = c.name(name)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		ns.Braced = true
		ns.Stmts = c.statements(namedChildren(body))
	}
	return ns
}

func (c *converter) useDecl(n *sitter.Node) *ast.UseDecl {
	u := &ast.UseDecl{Rng: c.rng(n)}
	for _, k := range children(n) {
		if !k.IsNamed() && (k.Type() == "function" || k.Type() == "const") {
			u.Kind = k.Type()
		}
	}
	var prefix *sitter.Node
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "namespace_name", "qualified_name", "name":
			prefix = k
		case "namespace_use_clause":
			if item := c.useItem(k, nil); item != nil {
				u.Items = append(u.Items, item)
			}
		case "namespace_use_group":
			for _, g := range namedChildren(k) {
				if item := c.useItem(g, prefix); item != nil {
					u.Items = append(u.Items, item)
				}
			}
		}
	}
	return u
}

// useItem converts one use clause. Clauses of a group are prefixed with
// the segments of the group prefix.
func (c *converter) useItem(n *sitter.Node, prefix *sitter.Node) *ast.UseItem {
	var nameNode, aliasNode *sitter.Node
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "name", "qualified_name", "namespace_name":
			if nameNode == nil {
				nameNode = k
			} else {
				aliasNode = k
			}
		}
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		aliasNode = alias
	}
	if nameNode == nil {
		return nil
	}
	item := &ast.UseItem{Name: c.name(nameNode), Rng: c.rng(n)}
	if prefix != nil {
		item.Name.Parts = append(c.name(prefix).Parts, item.Name.Parts...)
	}
	item.Name.FullyQualified = false
	if aliasNode != nil {
		item.Alias = c.ident(aliasNode)
	}
	return item
}

func (c *converter) class(n *sitter.Node, doc string) *ast.ClassDecl {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	d := &ast.ClassDecl{Name: c.ident(name), Doc: doc, Rng: c.rng(n)}
	switch n.Type() {
	case "interface_declaration":
		d.Kind = ast.KindInterface
	case "trait_declaration":
		d.Kind = ast.KindTrait
	case "enum_declaration":
		d.Kind = ast.KindEnum
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "abstract_modifier":
			d.Abstract = true
		case "final_modifier":
			d.Final = true
		case "base_clause":
			d.Extends = c.names(k)
		case "class_interface_clause":
			d.Implements = c.names(k)
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		d.Members = c.members(body)
	}
	return d
}

func (c *converter) names(n *sitter.Node) []*ast.Name {
	var out []*ast.Name
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "name", "qualified_name", "named_type":
			out = append(out, c.name(k))
		}
	}
	return out
}

func (c *converter) members(body *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	for _, k := range namedChildren(body) {
		doc := c.docBefore(k)
		switch k.Type() {
		case "method_declaration":
			if f := c.function(k, doc, true); f != nil {
				out = append(out, f)
			}
		case "property_declaration":
			out = append(out, c.property(k, doc))
		case "const_declaration":
			out = append(out, c.constDecl(k, doc))
		case "use_declaration":
			out = append(out, c.traitUse(k))
		case "enum_case":
			if name := k.ChildByFieldName("name"); name != nil {
				item := &ast.ConstItem{Name: c.ident(name), Value: c.expr(k.ChildByFieldName("value")), Rng: c.rng(k)}
				out = append(out, &ast.ConstDecl{Items: []*ast.ConstItem{item}, Visibility: "public", Doc: doc, Rng: c.rng(k)})
			}
		}
	}
	return out
}

func (c *converter) function(n *sitter.Node, doc string, method bool) *ast.FuncDecl {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	f := &ast.FuncDecl{Name: c.ident(name), Method: method, Doc: doc, Rng: c.rng(n)}
	f.Params = c.params(n.ChildByFieldName("parameters"))
	if body := n.ChildByFieldName("body"); body != nil {
		f.Body = c.block(body)
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "visibility_modifier":
			f.Visibility = strings.ToLower(c.text(k))
		case "static_modifier":
			f.Static = true
		case "abstract_modifier":
			f.Abstract = true
		case "reference_modifier":
			f.ByRefReturn = true
		}
	}
	if method && f.Visibility == "" {
		f.Visibility = "public"
	}
	return f
}

func (c *converter) params(n *sitter.Node) []*ast.Param {
	var out []*ast.Param
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		p := &ast.Param{Rng: c.rng(k), Variadic: k.Type() == "variadic_parameter"}
		p.Var = c.variable(k.ChildByFieldName("name"))
		if t := k.ChildByFieldName("type"); t != nil {
			p.Type = c.typeHint(t)
		}
		p.Default = c.expr(k.ChildByFieldName("default_value"))
		for _, m := range namedChildren(k) {
			switch m.Type() {
			case "reference_modifier":
				p.ByRef = true
			case "visibility_modifier":
				p.Promoted = strings.ToLower(c.text(m))
			}
		}
		if k.Type() == "property_promotion_parameter" && p.Promoted == "" {
			p.Promoted = "public"
		}
		if p.Var == nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// hintKeywords are the type names that never denote a class.
var hintKeywords = map[string]bool{
	"array": true, "callable": true, "iterable": true, "int": true, "float": true,
	"bool": true, "string": true, "mixed": true, "void": true, "object": true,
	"null": true, "false": true, "true": true, "never": true,
}

func (c *converter) typeHint(n *sitter.Node) *ast.TypeHint {
	h := &ast.TypeHint{Rng: c.rng(n)}
	c.collectHint(n, h)
	return h
}

func (c *converter) collectHint(n *sitter.Node, h *ast.TypeHint) {
	switch n.Type() {
	case "optional_type":
		h.Nullable = true
		for _, k := range namedChildren(n) {
			c.collectHint(k, h)
		}
	case "union_type", "intersection_type", "disjunctive_normal_form_type", "type_list":
		for _, k := range namedChildren(n) {
			c.collectHint(k, h)
		}
	case "primitive_type", "bottom_type":
		h.Keywords = append(h.Keywords, strings.ToLower(c.text(n)))
	case "named_type", "name", "qualified_name":
		text := strings.ToLower(c.text(n))
		if hintKeywords[text] {
			h.Keywords = append(h.Keywords, text)
			return
		}
		h.Classes = append(h.Classes, c.name(n))
	}
}

func (c *converter) property(n *sitter.Node, doc string) *ast.PropertyDecl {
	d := &ast.PropertyDecl{Doc: doc, Rng: c.rng(n)}
	if t := n.ChildByFieldName("type"); t != nil {
		d.Type = c.typeHint(t)
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "visibility_modifier":
			d.Visibility = strings.ToLower(c.text(k))
		case "var_modifier":
			d.Visibility = "public"
		case "static_modifier":
			d.Static = true
		case "optional_type", "union_type", "named_type", "primitive_type", "intersection_type":
			if d.Type == nil {
				d.Type = c.typeHint(k)
			}
		case "property_element":
			item := &ast.PropItem{Rng: c.rng(k)}
			item.Var = c.variable(firstOfType(k, "variable_name"))
			if def := k.ChildByFieldName("default_value"); def != nil {
				item.Default = c.expr(def)
			} else if init := firstOfType(k, "property_initializer"); init != nil {
				if kids := namedChildren(init); len(kids) > 0 {
					item.Default = c.expr(kids[0])
				}
			}
			if item.Var != nil {
				d.Props = append(d.Props, item)
			}
		}
	}
	if d.Visibility == "" {
		d.Visibility = "public"
	}
	return d
}

func (c *converter) constDecl(n *sitter.Node, doc string) *ast.ConstDecl {
	d := &ast.ConstDecl{Doc: doc, Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "visibility_modifier":
			d.Visibility = strings.ToLower(c.text(k))
		case "const_element":
			kids := namedChildren(k)
			if len(kids) == 0 {
				continue
			}
			item := &ast.ConstItem{Name: c.ident(kids[0]), Rng: c.rng(k)}
			if len(kids) > 1 {
				item.Value = c.expr(kids[len(kids)-1])
			}
			d.Items = append(d.Items, item)
		}
	}
	return d
}

func (c *converter) traitUse(n *sitter.Node) *ast.TraitUse {
	tu := &ast.TraitUse{Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "name", "qualified_name":
			tu.Traits = append(tu.Traits, c.name(k))
		case "use_list":
			for _, r := range namedChildren(k) {
				if rule := c.traitRule(r); rule != nil {
					tu.Rules = append(tu.Rules, rule)
				}
			}
		}
	}
	return tu
}

func (c *converter) traitRule(n *sitter.Node) *ast.TraitRule {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	rule := &ast.TraitRule{Rng: c.rng(n)}
	rest := kids[1:]
	switch head := kids[0]; head.Type() {
	case "class_constant_access_expression":
		parts := namedChildren(head)
		if len(parts) == 2 {
			rule.Trait = c.name(parts[0])
			rule.Method = c.ident(parts[1])
		}
	case "name":
		rule.Method = c.ident(head)
	default:
		return nil
	}
	switch n.Type() {
	case "use_instead_of_clause":
		for _, k := range rest {
			if k.Type() == "name" || k.Type() == "qualified_name" {
				rule.InsteadOf = append(rule.InsteadOf, c.name(k))
			}
		}
	case "use_as_clause":
		for _, k := range rest {
			switch k.Type() {
			case "visibility_modifier":
				rule.Visibility = strings.ToLower(c.text(k))
			case "name":
				rule.Alias = c.ident(k)
			}
		}
	default:
		return nil
	}
	return rule
}

func (c *converter) ifStmt(n *sitter.Node) *ast.If {
	s := &ast.If{
		Cond: c.expr(n.ChildByFieldName("condition")),
		Then: c.body(n.ChildByFieldName("body")),
		Rng:  c.rng(n),
	}
	// else-if clauses nest in source order; tail is the innermost If.
	tail := s
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "alternative" {
			continue
		}
		alt := n.Child(i)
		switch alt.Type() {
		case "else_if_clause":
			next := &ast.If{
				Cond: c.expr(alt.ChildByFieldName("condition")),
				Then: c.body(alt.ChildByFieldName("body")),
				Rng:  c.rng(alt),
			}
			tail.Else = next
			tail = next
		case "else_clause":
			if b := c.body(alt.ChildByFieldName("body")); b != nil {
				tail.Else = b
			}
		}
	}
	return s
}

// forStmt splits the header at its semicolons; each part may be a comma
// separated list.
func (c *converter) forStmt(n *sitter.Node) *ast.For {
	s := &ast.For{Rng: c.rng(n)}
	part, closed := 0, false
	for _, k := range children(n) {
		if !k.IsNamed() {
			switch k.Type() {
			case ";":
				if !closed {
					part++
				}
			case ")":
				closed = true
			}
			continue
		}
		if closed {
			if s.Body == nil {
				s.Body = c.body(k)
			}
			continue
		}
		xs := c.exprList([]*sitter.Node{k})
		switch part {
		case 0:
			s.Init = append(s.Init, xs...)
		case 1:
			s.Cond = append(s.Cond, xs...)
		default:
			s.Step = append(s.Step, xs...)
		}
	}
	return s
}

func (c *converter) foreach(n *sitter.Node) *ast.Foreach {
	s := &ast.Foreach{Rng: c.rng(n)}
	afterAs, closed := false, false
	for _, k := range children(n) {
		if !k.IsNamed() {
			switch k.Type() {
			case "as":
				afterAs = true
			case ")":
				closed = true
			}
			continue
		}
		switch {
		case closed:
			if s.Body == nil {
				s.Body = c.body(k)
			}
		case !afterAs:
			s.X = c.expr(k)
		case k.Type() == "pair":
			kv := namedChildren(k)
			if len(kv) == 2 {
				s.Key = c.expr(kv[0])
				s.Value, s.ByRef = c.target(kv[1])
			}
		default:
			s.Value, s.ByRef = c.target(k)
		}
	}
	return s
}

// target unwraps a by-reference slot.
func (c *converter) target(n *sitter.Node) (ast.Expr, bool) {
	if n.Type() == "by_ref" {
		if kids := namedChildren(n); len(kids) > 0 {
			return c.expr(kids[0]), true
		}
		return nil, true
	}
	return c.expr(n), false
}

func (c *converter) switchStmt(n *sitter.Node) *ast.Switch {
	s := &ast.Switch{Subject: c.expr(n.ChildByFieldName("condition")), Rng: c.rng(n)}
	for _, k := range namedChildren(n.ChildByFieldName("body")) {
		switch k.Type() {
		case "case_statement", "default_statement":
		default:
			continue
		}
		cs := &ast.Case{Rng: c.rng(k)}
		kids := namedChildren(k)
		if value := k.ChildByFieldName("value"); value != nil && len(kids) > 0 {
			cs.Cond = c.expr(kids[0])
			kids = kids[1:]
		}
		cs.Body = c.statements(kids)
		s.Cases = append(s.Cases, cs)
	}
	return s
}

func (c *converter) try(n *sitter.Node) *ast.Try {
	s := &ast.Try{Body: c.block(n.ChildByFieldName("body")), Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "catch_clause":
			ct := &ast.Catch{Body: c.block(k.ChildByFieldName("body")), Rng: c.rng(k)}
			if t := k.ChildByFieldName("type"); t != nil {
				if t.Type() == "type_list" {
					ct.Types = c.names(t)
				} else {
					ct.Types = []*ast.Name{c.name(t)}
				}
			}
			ct.Var = c.variable(k.ChildByFieldName("name"))
			s.Catches = append(s.Catches, ct)
		case "finally_clause":
			s.Finally = c.block(k.ChildByFieldName("body"))
		}
	}
	return s
}

func (c *converter) staticVar(n *sitter.Node, doc string) *ast.StaticVar {
	s := &ast.StaticVar{Doc: doc, Rng: c.rng(n)}
	for _, k := range namedChildren(n) {
		if k.Type() != "static_variable_declaration" {
			continue
		}
		item := &ast.StaticItem{Rng: c.rng(k)}
		item.Var = c.variable(k.ChildByFieldName("name"))
		item.Init = c.expr(k.ChildByFieldName("value"))
		if item.Var != nil {
			s.Vars = append(s.Vars, item)
		}
	}
	return s
}
