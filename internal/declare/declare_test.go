package declare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/ast/asttest"
	"phpsema/internal/declare"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
)

func prepass(ix *symbols.Index, files ...*ast.File) []*symbols.Unit {
	var units []*symbols.Unit
	for _, f := range files {
		u := ix.NewUnit(f.Path, f)
		declare.Prepass(u)
		units = append(units, u)
	}
	ev := expr.New(ix)
	for _, u := range units {
		declare.Link(ev, u)
	}
	return units
}

func TestPrepass_Scopes(t *testing.T) {
	b := asttest.New()
	fn := b.Func("run", []*ast.Param{b.Param("a"), b.Param("b")}, b.Ret(b.Var("a")))
	nested := b.Func("inner", nil)
	outer := b.Func("outer", nil, nested)
	f := b.File("a.php", fn, outer)

	ix := symbols.NewIndex()
	u := prepass(ix, f)[0]

	d := u.DeclOf(fn)
	require.NotNil(t, d)
	assert.Equal(t, symbols.KindFunction, d.Kind)
	assert.Equal(t, u.Top, d.Context)

	params := u.ScopeOf(fn)
	require.NotNil(t, params)
	assert.Equal(t, symbols.ScopeFunction, params.Kind)
	assert.Equal(t, d, params.Owner)
	require.Len(t, params.Declarations(), 2)
	assert.True(t, params.Declarations()[0].Parameter)

	body := u.ScopeOf(fn.Body)
	require.NotNil(t, body)
	assert.Equal(t, symbols.ScopeOther, body.Kind)
	assert.Equal(t, d, body.Owner)
	require.Len(t, body.Imports(), 1)
	assert.Equal(t, params, body.Imports()[0].Scope)
	assert.Equal(t, fn.Body.Rng.Start, body.Imports()[0].Pos)

	t.Run("Functions declared in bodies are global", func(t *testing.T) {
		inner := u.DeclOf(nested)
		require.NotNil(t, inner)
		assert.Equal(t, u.Top, inner.Context)
		assert.Len(t, ix.FindGlobal(symbols.KindFunction, "inner"), 1)
	})

	t.Run("Innermost scope", func(t *testing.T) {
		assert.Equal(t, body, u.ScopeAt(fn.Body.Rng.Start+1))
		assert.Equal(t, u.Top, u.ScopeAt(b.Pos()))
	})
}

func TestPrepass_Namespaces(t *testing.T) {
	b := asttest.New()
	cls := b.Class("User")
	ns := b.Namespace(`App\Models`, b.UseNS(`Lib\Base`, "Model"), cls)
	f := b.File("a.php", ns)

	ix := symbols.NewIndex()
	u := prepass(ix, f)[0]

	scope := u.ScopeOf(ns)
	require.NotNil(t, scope)
	assert.Equal(t, symbols.ScopeNamespace, scope.Kind)
	assert.Equal(t, `App\Models`, scope.Namespace)

	assert.Len(t, ix.FindGlobal(symbols.KindNamespace, "app"), 1)
	nsDecls := ix.FindGlobal(symbols.KindNamespace, `app\models`)
	require.Len(t, nsDecls, 1)
	assert.Equal(t, scope, nsDecls[0].Internal)

	class := ix.FindClass(`app\models\user`)
	require.NotNil(t, class)
	assert.Equal(t, `App\Models\User`, class.DisplayName())
	assert.Equal(t, `App\Models\User`, class.Type.Name())

	alias := scope.FindLocal("model", ast.NoPos, symbols.OfKind(symbols.KindAlias))
	require.Len(t, alias, 1)
	assert.Equal(t, `Lib\Base`, alias[0].AliasOf)
	assert.Equal(t, symbols.KindClass, alias[0].AliasKind)
}

func TestPrepass_ClassMembers(t *testing.T) {
	b := asttest.New()
	prop := b.Property("name", nil)
	prop.Visibility = "protected"
	ctor := b.Method("__construct", []*ast.Param{func() *ast.Param {
		p := b.Param("id")
		p.Promoted = "private"
		return p
	}()})
	static := b.Method("make", nil)
	static.Static = true
	cls := b.Class("User", prop, b.ConstDecl("MAX", b.Int("1")), ctor, static)
	f := b.File("a.php", cls)

	ix := symbols.NewIndex()
	u := prepass(ix, f)[0]
	class := u.DeclOf(cls)
	require.NotNil(t, class)
	require.NotNil(t, class.Internal)
	assert.Equal(t, class, class.Internal.Owner)

	byKey := map[string]*symbols.Declaration{}
	for _, d := range class.Internal.Declarations() {
		byKey[d.Qualified] = d
	}
	require.Contains(t, byKey, `user::$name`)
	assert.Equal(t, symbols.Protected, byKey[`user::$name`].Visibility)
	require.Contains(t, byKey, `user::MAX`)
	assert.True(t, byKey[`user::MAX`].Static)
	require.Contains(t, byKey, `user::$id`)
	assert.Equal(t, symbols.Private, byKey[`user::$id`].Visibility)
	require.Contains(t, byKey, `user::make`)
	assert.True(t, byKey[`user::make`].IsMethod())
	assert.True(t, byKey[`user::make`].Static)

	assert.Empty(t, ix.FindGlobal(symbols.KindFunction, `user::make`))
}

func TestPrepass_DefineAndInclude(t *testing.T) {
	b := asttest.New()
	lib := b.File("/src/lib.php", b.Func("libfn", nil))
	include := b.Include("require_once", b.Str("'lib.php'"))
	main := b.File("/src/main.php",
		b.Expr(b.Call("define", b.Str("'APP_DEBUG'"), b.Const("true"))),
		b.Expr(include),
	)

	ix := symbols.NewIndex()
	units := prepass(ix, lib, main)
	u := units[1]

	consts := ix.FindGlobal(symbols.KindConstant, "APP_DEBUG")
	require.Len(t, consts, 1)
	assert.Equal(t, u, consts[0].Unit)

	imp := u.DeclOf(include)
	require.NotNil(t, imp)
	assert.Equal(t, symbols.KindImport, imp.Kind)
	assert.Equal(t, "lib.php", imp.File)

	require.Len(t, u.Top.Imports(), 1)
	assert.Equal(t, units[0].Top, u.Top.Imports()[0].Scope)
}

func TestLink_Hierarchy(t *testing.T) {
	b := asttest.New()
	child := b.Implements(b.Extends(b.Class("Child"), "Base"), "Countable")
	base := b.Class("Base", b.Method("hello", nil))
	iface := b.Interface("Countable")
	f := b.File("a.php", child, base, iface)

	ix := symbols.NewIndex()
	u := prepass(ix, f)[0]

	d := u.DeclOf(child)
	require.NotNil(t, d)
	assert.Equal(t, "base", d.Parent)
	assert.Equal(t, []string{"base", "countable"}, d.Bases)
	assert.True(t, ix.IsSubclass(d, "countable"))
	assert.False(t, ix.IsSubclass(d, "child"))

	hello := d.Internal.Find("hello", ast.NoPos, true, nil)
	require.Len(t, hello, 1, "members of the parent are visible through the class body")

	t.Run("Linking again changes nothing", func(t *testing.T) {
		declare.Link(expr.New(ix), u)
		assert.Equal(t, []string{"base", "countable"}, d.Bases)
		assert.Len(t, d.Internal.Imports(), 2)
	})
}

func TestPrepass_ClosureScopes(t *testing.T) {
	b := asttest.New()
	closure := b.Closure([]*ast.Param{b.Param("p")}, []*ast.ClosureUse{b.Use("x", true)}, b.Ret(b.Var("p")))
	f := b.File("a.php", b.Expr(b.Assign(b.Var("f"), closure)))

	ix := symbols.NewIndex()
	u := prepass(ix, f)[0]

	params := u.ScopeOf(closure)
	require.NotNil(t, params)
	assert.Equal(t, symbols.ScopeFunction, params.Kind)

	lexical := u.ScopeOf(closure.Uses[0])
	require.NotNil(t, lexical)

	body := u.ScopeOf(closure.Body)
	require.NotNil(t, body)
	var imported []*symbols.Scope
	for _, imp := range body.Imports() {
		imported = append(imported, imp.Scope)
	}
	assert.Equal(t, []*symbols.Scope{params, lexical}, imported)
}
