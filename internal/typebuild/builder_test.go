package typebuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/ast/asttest"
	"phpsema/internal/declare"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
	"phpsema/internal/typebuild"
	"phpsema/internal/types"
)

func build(t *testing.T, f *ast.File) (*symbols.Unit, *expr.Evaluator) {
	t.Helper()
	ix := symbols.NewIndex()
	u := ix.NewUnit(f.Path, f)
	declare.Prepass(u)
	ev := expr.New(ix)
	declare.Link(ev, u)
	typebuild.New(ev, u, declare.NewVariables(ev, u)).Build()
	return u, ev
}

func TestBuild_ReturnTypes(t *testing.T) {
	b := asttest.New()
	merged := b.Func("merged", nil,
		b.If(b.Const("true"), b.Ret(b.Int("1"))),
		b.Ret(b.Str("'a'")),
	)
	same := b.Func("same", nil, b.Ret(b.Int("1")), b.Ret(b.Int("2")))
	tagged := b.Func("tagged", nil, b.Ret(b.Int("1")))
	tagged.Doc = "/** @return string */"
	empty := b.Func("none", nil, b.Ret(nil))
	mixed := b.Func("mixedOne", nil, b.Ret(b.Var("undefined")), b.Ret(b.Int("1")))
	u, _ := build(t, b.File("a.php", merged, same, tagged, empty, mixed))

	ret := func(n *ast.FuncDecl) *types.Type {
		d := u.DeclOf(n)
		require.NotNil(t, d)
		require.Equal(t, types.KindFunction, d.Type.Kind())
		return d.Type.Return()
	}

	assert.True(t, types.Equal(types.Union(types.NewInt(), types.NewString()), ret(merged)))
	assert.True(t, ret(same).Is(types.Int))
	assert.True(t, ret(tagged).Is(types.String))
	assert.True(t, ret(empty).Is(types.Void))
	assert.True(t, ret(mixed).IsMixed())
}

func TestBuild_Parameters(t *testing.T) {
	b := asttest.New()
	typed := b.TypedParam("int", "a")
	def := b.DefaultParam("b", b.Str("'x'"))
	rest := b.Param("rest")
	rest.Variadic = true
	byRef := b.Param("out")
	byRef.ByRef = true
	documented := b.Param("doc")
	fn := b.Func("f", []*ast.Param{typed, def, rest, byRef, documented})
	fn.Doc = "/**\n * @param int $a\n * @param string $b\n * @param array $rest\n * @param int $out\n * @param float $doc\n */"
	u, _ := build(t, b.File("a.php", fn))

	d := u.DeclOf(fn)
	require.NotNil(t, d)
	args := d.Type.Args()
	require.Len(t, args, 5)
	assert.True(t, args[0].Is(types.Int))
	assert.True(t, args[1].Is(types.String))
	assert.True(t, args[2].Is(types.Array))
	assert.Equal(t, types.KindReference, args[3].Kind())
	assert.True(t, args[3].Base().Is(types.Int))
	assert.True(t, args[4].Is(types.Float))

	p := u.DeclOf(typed)
	require.NotNil(t, p)
	assert.True(t, p.Parameter)
	assert.True(t, p.Type.Is(types.Int))
}

func TestBuild_ClassMembers(t *testing.T) {
	b := asttest.New()
	name := b.Property("name", b.Str("'guest'"))
	count := b.Property("count", nil)
	count.Doc = "/** @var int */"
	bare := b.Property("bare", nil)
	limit := b.ConstDecl("LIMIT", b.Int("10"))
	init := b.Method("init", nil, b.Expr(b.Assign(b.Prop(b.Var("this"), "implicit"), b.Float("1.0"))))
	self := b.Method("self", nil, b.Ret(b.Var("this")))
	cls := b.Class("User", name, count, bare, limit, init, self)
	u, _ := build(t, b.File("a.php", cls))

	class := u.DeclOf(cls)
	require.NotNil(t, class)
	member := func(key string) *symbols.Declaration {
		found := class.Internal.FindLocal(key, ast.NoPos, nil)
		require.Len(t, found, 1, key)
		return found[0]
	}

	assert.True(t, member("name").Type.Is(types.String))
	assert.True(t, member("count").Type.Is(types.Int))
	assert.True(t, member("bare").Type.IsMixed())
	assert.True(t, types.Equal(types.NewInt().WithConstant(), member("LIMIT").Type))
	assert.True(t, member("implicit").Type.Is(types.Float))
	assert.Equal(t, `user::$implicit`, member("implicit").Qualified)
	assert.True(t, types.Equal(types.NewStructure("User"), member("self").Type.Return()))
}

func TestBuild_Variables(t *testing.T) {
	b := asttest.New()
	cfg := b.Expr(b.Assign(b.Var("cfg"), b.Str("'a'")))
	withGlobal := b.Func("g", nil, b.Global("cfg"), b.Ret(b.Var("cfg")))
	withStatic := b.Func("s", nil, b.Static("n", b.Int("0")), b.Ret(b.Var("n")))
	sg := b.ExprDoc("/** @superglobal */", b.Assign(b.Var("G"), b.Arr()))
	usesSuper := b.Func("k", nil, b.Ret(b.Var("G")))
	override := b.ExprDoc("/** @var int */", b.Assign(b.Var("v"), b.Str("'1'")))
	widen := b.Expr(b.Assign(b.Var("cfg"), b.Int("2")))
	u, _ := build(t, b.File("a.php", cfg, withGlobal, withStatic, sg, usesSuper, override, widen))

	ret := func(n *ast.FuncDecl) *types.Type {
		d := u.DeclOf(n)
		require.NotNil(t, d)
		return d.Type.Return()
	}
	assert.True(t, ret(withGlobal).Is(types.String))
	assert.True(t, ret(withStatic).Is(types.Int))
	assert.True(t, ret(usesSuper).Is(types.Array))

	top := func(name string) *symbols.Declaration {
		found := u.Top.FindLocal(name, ast.NoPos, symbols.OfKind(symbols.KindVariable))
		require.Len(t, found, 1, name)
		return found[0]
	}
	assert.True(t, top("G").Superglobal)
	assert.True(t, top("v").Type.Is(types.Int))
	assert.True(t, types.Equal(types.Union(types.NewString(), types.NewInt()), top("cfg").Type))
}

func TestBuild_ThisReassignment(t *testing.T) {
	b := asttest.New()
	m := b.Method("m", nil, b.Expr(b.Assign(b.Var("this"), b.Int("1"))))
	u, _ := build(t, b.File("a.php", b.Class("A", m)))

	diags := u.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "Cannot re-assign $this.", diags[0].Message)
}

func TestBuild_ForeachAndCatch(t *testing.T) {
	b := asttest.New()
	iface := b.Interface("Iterator", b.AbstractMethod("current", nil))
	item := b.Class("Item")
	current := b.Method("current", nil)
	current.Doc = "/** @return Item */"
	coll := b.Implements(b.Class("Coll", current), "Iterator")
	ex := b.Class("Ex")

	assign := b.Expr(b.Assign(b.Var("c"), b.New("Coll")))
	loop := b.Foreach(b.Var("c"), b.Var("k"), b.Var("v"), b.Echo(b.Var("v")))
	listLoop := b.Foreach(b.Arr(), b.Var("i"), b.Var("w"))
	try := b.Try(nil, b.Catch("Ex", "e", b.Echo(b.Var("e"))))
	u, ev := build(t, b.File("a.php", iface, item, coll, ex, assign, loop, listLoop, try))

	// The echoed variables come after their declaring slots.
	value := loop.Body.(*ast.Block).Stmts[0].(*ast.Echo).Exprs[0]
	caught := try.Catches[0].Body.Stmts[0].(*ast.Echo).Exprs[0]

	res := ev.Evaluate(value, u.Top, ast.NoPos)
	assert.True(t, types.Equal(types.NewStructure("Item"), res.Type), "got %s", res.Type)

	key := u.Top.FindLocal("k", ast.NoPos, nil)
	require.Len(t, key, 1)
	assert.True(t, key[0].Type.IsMixed())

	w := u.Top.FindLocal("w", ast.NoPos, nil)
	require.Len(t, w, 1)
	assert.True(t, w[0].Type.IsMixed())

	res = ev.Evaluate(caught, u.Top, ast.NoPos)
	assert.True(t, types.Equal(types.NewStructure("Ex"), res.Type), "got %s", res.Type)
}

func TestBuild_ForeachOverListLiteral(t *testing.T) {
	b := asttest.New()
	list := b.Foreach(b.Arr(b.Int("1"), b.Int("2")), b.Var("k"), b.Var("v"))
	assign := b.Expr(b.Assign(b.Var("xs"), b.Arr(b.Str("'a'"))))
	viaVar := b.Foreach(b.Var("xs"), b.Var("i"), b.Var("s"))
	u, _ := build(t, b.File("a.php", list, assign, viaVar))

	find := func(name string) *symbols.Declaration {
		found := u.Top.FindLocal(name, ast.NoPos, symbols.OfKind(symbols.KindVariable))
		require.Len(t, found, 1, name)
		return found[0]
	}
	assert.True(t, find("k").Type.Is(types.Int))
	assert.True(t, find("v").Type.IsMixed())
	assert.True(t, types.Equal(types.NewIndexed(types.NewString()), find("xs").Type))
	assert.True(t, find("i").Type.Is(types.Int))
}

func TestBuild_Define(t *testing.T) {
	b := asttest.New()
	def := b.Expr(b.Call("define", b.Str("'FOO'"), b.Int("1")))
	use := b.Const("FOO")
	u, ev := build(t, b.File("a.php", def, b.Expr(use)))

	res := ev.Evaluate(use, u.Top, ast.NoPos)
	require.NotNil(t, res.Decl())
	assert.Equal(t, symbols.KindConstant, res.Decl().Kind)
	assert.True(t, types.Equal(types.NewInt().WithConstant(), res.Type))
}

func TestBuild_Idempotent(t *testing.T) {
	b := asttest.New()
	fn := b.Func("f", []*ast.Param{b.TypedParam("string", "s")}, b.Ret(b.Var("s")))
	cls := b.Class("A", b.Property("p", b.Int("1")))
	f := b.File("a.php", fn, cls, b.Expr(b.Assign(b.Var("x"), b.New("A"))))

	ix := symbols.NewIndex()
	ev := expr.New(ix)
	run := func() *symbols.Unit {
		u := ix.NewUnit(f.Path, f)
		declare.Prepass(u)
		declare.Link(ev, u)
		typebuild.New(ev, u, declare.NewVariables(ev, u)).Build()
		return u
	}
	first := run()
	firstDecls := make([]string, 0)
	for _, d := range first.Declarations() {
		firstDecls = append(firstDecls, d.String())
	}
	second := run()
	secondDecls := make([]string, 0)
	for _, d := range second.Declarations() {
		secondDecls = append(secondDecls, d.String())
	}
	assert.Equal(t, firstDecls, secondDecls)
	assert.Len(t, ix.FindGlobal(symbols.KindClass, "a"), 1)
}
