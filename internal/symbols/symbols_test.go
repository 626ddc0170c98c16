package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
)

func rng(start, end int) ast.Range {
	return ast.Range{Start: ast.Pos(start), End: ast.Pos(end)}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "foo", KeyFor(KindFunction, "Foo"))
	assert.Equal(t, "Foo", KeyFor(KindVariable, "Foo"))
	assert.Equal(t, "FOO", KeyFor(KindConstant, "FOO"))
	assert.Equal(t, `app\models\user`, QualifiedKey(KindClass, `App\Models`, `User`))
	assert.Equal(t, `app\MAX`, QualifiedKey(KindConstant, `\App\`, "MAX"))
	assert.Equal(t, "strlen", QualifiedKey(KindFunction, "", `\strlen`))
}

func TestScopeLookup(t *testing.T) {
	ix := NewIndex()
	u := ix.NewUnit("a.php", nil)

	early := u.Top.Declare(&Declaration{Name: "x", Kind: KindVariable, Range: rng(10, 12)})
	u.Top.Declare(&Declaration{Name: "y", Kind: KindVariable, Range: rng(50, 52)})

	t.Run("Declarations after pos are invisible", func(t *testing.T) {
		assert.Empty(t, u.Top.Find("y", 20, false, nil))
		assert.Len(t, u.Top.Find("y", 60, false, nil), 1)
		assert.Len(t, u.Top.Find("y", ast.NoPos, false, nil), 1)
	})

	t.Run("Local only does not reach the parent", func(t *testing.T) {
		fn := u.Top.NewChild(ScopeOther, rng(30, 100))
		assert.Empty(t, fn.Find("x", 40, true, nil))
		assert.Equal(t, []*Declaration{early}, fn.Find("x", 40, false, nil))
	})

	t.Run("Imports respect their position", func(t *testing.T) {
		params := u.Top.NewChild(ScopeFunction, rng(100, 110))
		p := params.Declare(&Declaration{Name: "p", Kind: KindVariable, Parameter: true, Range: rng(101, 103)})
		body := u.Top.NewChild(ScopeOther, rng(111, 200))
		body.AddImport(params, 111)
		body.AddImport(params, 111)
		require.Len(t, body.Imports(), 1)

		assert.Equal(t, []*Declaration{p}, body.Find("p", 150, true, nil))
		assert.Empty(t, body.Find("p", 105, true, nil))
	})

	t.Run("Filter", func(t *testing.T) {
		assert.Empty(t, u.Top.Find("x", ast.NoPos, false, OfKind(KindFunction)))
	})

	t.Run("Innermost", func(t *testing.T) {
		assert.Equal(t, ScopeOther, u.ScopeAt(150).Kind)
		assert.Equal(t, ScopeGlobal, u.ScopeAt(5).Kind)
	})
}

func TestImportCycleTerminates(t *testing.T) {
	ix := NewIndex()
	u := ix.NewUnit("a.php", nil)
	a := u.Top.NewChild(ScopeClass, rng(0, 10))
	b := u.Top.NewChild(ScopeClass, rng(11, 20))
	a.AddImport(b, ast.NoPos)
	b.AddImport(a, ast.NoPos)
	assert.Empty(t, a.Find("missing", ast.NoPos, true, nil))
}

func TestIndexGlobals(t *testing.T) {
	ix := NewIndex()
	u := ix.NewUnit("a.php", nil)

	foo := u.Top.Declare(&Declaration{Name: "Foo", Kind: KindClass, Qualified: `app\foo`, Range: rng(0, 3)})
	bar := u.Top.Declare(&Declaration{Name: "Bar", Kind: KindClass, Qualified: `app\bar`, Bases: []string{`app\foo`}, Range: rng(10, 13)})
	baz := u.Top.Declare(&Declaration{Name: "Baz", Kind: KindClass, Qualified: `app\baz`, Bases: []string{`app\bar`}, Range: rng(20, 23)})
	foo.Internal = u.Top.NewChild(ScopeClass, rng(0, 9))
	foo.Internal.Owner = foo
	m := foo.Internal.Declare(&Declaration{Name: "run", Kind: KindFunction, Member: true, Range: rng(4, 7)})

	assert.Equal(t, foo, ix.FindClass(`app\foo`))
	assert.Empty(t, ix.FindGlobal(KindFunction, "run"), "members are not global")
	assert.Equal(t, "Foo::run", m.DisplayName())
	assert.NotEqual(t, foo.ID(), bar.ID())

	assert.True(t, ix.IsSubclass(baz, `app\foo`))
	assert.True(t, ix.IsSubclass(bar, `app\foo`))
	assert.False(t, ix.IsSubclass(foo, `app\baz`))

	sg := u.Top.Declare(&Declaration{Name: "_GET", Kind: KindVariable, Superglobal: true})
	u.Top.Declare(&Declaration{Name: "plain", Kind: KindVariable})
	assert.Equal(t, sg, ix.Superglobal("_GET"))
	assert.Nil(t, ix.Superglobal("plain"))

	t.Run("Recreating a unit drops its registrations", func(t *testing.T) {
		u2 := ix.NewUnit("a.php", nil)
		assert.Nil(t, ix.FindClass(`app\foo`))
		assert.Equal(t, u2, ix.Unit("a.php"))
		assert.Len(t, ix.Units(), 1)
	})

	t.Run("ClearUnit", func(t *testing.T) {
		ix.ClearUnit("a.php")
		assert.Nil(t, ix.Unit("a.php"))
		assert.Empty(t, ix.Units())
	})

	t.Run("Closed index refuses new units", func(t *testing.T) {
		ix.Close()
		assert.Panics(t, func() { ix.NewUnit("b.php", nil) })
	})
}

func TestUnitTables(t *testing.T) {
	ix := NewIndex()
	f := ast.NewFile("a.php", []byte("<?php\n$x = 1;\n"), nil)
	u := ix.NewUnit("a.php", f)
	d := u.Top.Declare(&Declaration{Name: "x", Kind: KindVariable, Range: rng(6, 8)})

	u.AddUse(Use{Range: rng(20, 22), Name: "x", Kind: KindVariable, Decl: d})
	u.AddUse(Use{Range: rng(6, 8), Name: "x", Kind: KindVariable, Decl: d})
	u.AddUse(Use{Range: rng(30, 32), Name: "y", Kind: KindVariable})
	uses := u.Uses()
	require.Len(t, uses, 3)
	assert.Equal(t, ast.Pos(6), uses[0].Range.Start)
	assert.Len(t, u.UsesOf(d), 2)
	u.ResetUses()
	assert.Empty(t, u.Uses())

	u.Report(diagnostic.SeverityHint, rng(6, 8), "hint")
	u.Report(diagnostic.SeverityError, rng(6, 8), "error")
	require.Len(t, u.Diagnostics(), 2)
	assert.Equal(t, 2, u.Diagnostics()[0].Line)
	u.ResetDiagnostics(diagnostic.SeverityHint)
	require.Len(t, u.Diagnostics(), 1)
	assert.Equal(t, "error", u.Diagnostics()[0].Message)

	assert.Equal(t, d, u.FindDeclaration(KindVariable, "x", 6))
	assert.NotEqual(t, "", u.Revision.String())
}
