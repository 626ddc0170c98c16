package uses_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/ast/asttest"
	"phpsema/internal/declare"
	"phpsema/internal/diagnostic"
	"phpsema/internal/expr"
	"phpsema/internal/symbols"
	"phpsema/internal/typebuild"
	"phpsema/internal/uses"
)

func analyze(t *testing.T, ix *symbols.Index, opts []uses.Option, files ...*ast.File) []*symbols.Unit {
	t.Helper()
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
	for _, u := range units {
		typebuild.New(ev, u, declare.NewVariables(ev, u)).Build()
	}
	for _, u := range units {
		uses.New(ix, u, opts...).Record()
	}
	return units
}

func hints(u *symbols.Unit) []string {
	var out []string
	for _, d := range u.Diagnostics() {
		if d.Severity == diagnostic.SeverityHint {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestRecord_Variables(t *testing.T) {
	b := asttest.New()
	f := b.File("a.php",
		b.Expr(b.Assign(b.Var("x"), b.Int("1"))),
		b.Echo(b.Var("x")),
	)
	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]

	got := u.Uses()
	require.Len(t, got, 1, "the declaring occurrence is not a use")
	assert.Equal(t, "$x", got[0].Name)
	assert.Equal(t, symbols.KindVariable, got[0].Kind)
	require.NotNil(t, got[0].Decl)
	assert.Equal(t, "x", got[0].Decl.Name)
}

func TestRecord_AcrossUnits(t *testing.T) {
	b := asttest.New()
	lib := b.File("lib.php", b.Class("Service", b.Method("run", nil)))
	newService := b.New("Service")
	call := b.MCall(b.Var("s"), "run")
	app := b.File("app.php",
		b.Expr(b.Assign(b.Var("s"), newService)),
		b.Expr(call),
	)

	ix := symbols.NewIndex()
	units := analyze(t, ix, nil, lib, app)
	u := units[1]

	service := ix.FindClass("service")
	require.NotNil(t, service)
	classUses := u.UsesOf(service)
	require.Len(t, classUses, 1)
	assert.Equal(t, newService.Class.Span(), classUses[0].Range)

	var methodUses []symbols.Use
	for _, use := range u.Uses() {
		if use.Kind == symbols.KindFunction {
			methodUses = append(methodUses, use)
		}
	}
	require.Len(t, methodUses, 1)
	assert.Equal(t, units[0], methodUses[0].Decl.Unit)
	assert.Equal(t, call.Method.Rng, methodUses[0].Range)

	assert.Empty(t, units[0].Uses())
}

func TestRecord_Unresolved(t *testing.T) {
	b := asttest.New()
	f := b.File("a.php",
		b.Expr(b.New("Missing")),
		b.Func("f", []*ast.Param{b.TypedParam("Absent", "a")}),
		b.Expr(b.Call("unknown_function")),
	)

	t.Run("Reported", func(t *testing.T) {
		ix := symbols.NewIndex()
		u := analyze(t, ix, nil, f)[0]
		assert.Equal(t, []string{
			"Declaration not found: Missing",
			"Declaration not found: Absent",
		}, hints(u))

		var unresolved []string
		for _, use := range u.Uses() {
			if use.Decl == nil {
				unresolved = append(unresolved, use.Name)
			}
		}
		assert.Equal(t, []string{"Missing", "Absent", "unknown_function"}, unresolved)
	})

	t.Run("Silenced", func(t *testing.T) {
		ix := symbols.NewIndex()
		u := analyze(t, ix, []uses.Option{uses.ReportUnresolved(false)}, f)[0]
		assert.Empty(t, hints(u))
		assert.Len(t, u.Uses(), 3)
	})
}

func TestRecord_UnresolvedWithoutHints(t *testing.T) {
	b := asttest.New()
	call := b.Call("undefinedFn")
	echoed := b.Var("undefinedVar")
	method := b.MCall(b.Var("undefinedVar"), "nope")
	f := b.File("a.php", b.Expr(call), b.Echo(echoed), b.Expr(method))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]
	assert.Empty(t, hints(u), "only class names ask for a hint")

	type entry struct {
		name string
		kind symbols.Kind
	}
	var got []entry
	for _, use := range u.Uses() {
		assert.Nil(t, use.Decl, use.Name)
		got = append(got, entry{use.Name, use.Kind})
	}
	assert.Equal(t, []entry{
		{"undefinedFn", symbols.KindFunction},
		{"$undefinedVar", symbols.KindVariable},
		{"$undefinedVar", symbols.KindVariable},
		{"nope", symbols.KindFunction},
	}, got)
	assert.Equal(t, call.Func.(*ast.Name).Last().Rng, u.Uses()[0].Range)
	assert.Equal(t, echoed.Rng, u.Uses()[1].Range)
}

func TestRecord_Deprecated(t *testing.T) {
	b := asttest.New()
	old := b.Class("Old")
	old.Doc = "/** @deprecated use New instead */"
	f := b.File("a.php", old, b.Expr(b.New("Old")))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]
	assert.Equal(t, []string{"Usage of Old is deprecated."}, hints(u))

	u = analyze(t, ix, []uses.Option{uses.ReportDeprecated(false)}, f)[0]
	assert.Empty(t, hints(u))
}

func TestRecord_Rerun(t *testing.T) {
	b := asttest.New()
	f := b.File("a.php",
		b.Class("A"),
		b.Expr(b.New("A")),
		b.Expr(b.New("Gone")),
	)
	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]
	first := u.Uses()
	firstHints := hints(u)

	uses.New(ix, u).Record()
	assert.Equal(t, first, u.Uses())
	assert.Equal(t, firstHints, hints(u))
}

func TestRecord_PreludeUnit(t *testing.T) {
	ix := symbols.NewIndex()
	u := ix.NewUnit("<prelude>", asttest.New().File("<prelude>"))
	u.Prelude = true
	assert.Panics(t, func() { uses.New(ix, u).Record() })
}

func TestRecord_ClosuresAndCatch(t *testing.T) {
	b := asttest.New()
	ex := b.Class("Ex")
	outer := b.Expr(b.Assign(b.Var("x"), b.Int("1")))
	closure := b.Closure([]*ast.Param{b.TypedParam("Ex", "p")}, []*ast.ClosureUse{b.Use("x", false)},
		b.Echo(b.Var("x")),
	)
	try := b.Try(nil, b.Catch("Ex", "e"))
	f := b.File("a.php", ex, outer, b.Expr(b.Assign(b.Var("f"), closure)), try)

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]

	class := ix.FindClass("ex")
	require.NotNil(t, class)
	assert.Len(t, u.UsesOf(class), 2, "the parameter hint and the catch clause")

	var captured []symbols.Use
	for _, use := range u.Uses() {
		if use.Name == "$x" {
			captured = append(captured, use)
		}
	}
	require.Len(t, captured, 2, "the use clause and the body")
	assert.Equal(t, "x", captured[0].Decl.Name)
	assert.Equal(t, u.Top, captured[0].Decl.Context)
	assert.Equal(t, u.Top, captured[1].Decl.Target.Context)
}

func TestRecord_ClassHeader(t *testing.T) {
	b := asttest.New()
	base := b.Class("Base")
	shape := b.Interface("Shape")
	child := b.Implements(b.Extends(b.Class("Child"), "Base"), "Shape", "Gone")
	f := b.File("a.php", base, shape, child)

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]

	for i, key := range []string{"base", "shape"} {
		d := ix.FindClass(key)
		require.NotNil(t, d, key)
		got := u.UsesOf(d)
		require.Len(t, got, 1, key)
		var want *ast.Name
		if i == 0 {
			want = child.Extends[0]
		} else {
			want = child.Implements[0]
		}
		assert.Equal(t, want.Last().Rng, got[0].Range)
	}
	assert.Equal(t, []string{"Declaration not found: Gone"}, hints(u))
}

func TestRecord_Global(t *testing.T) {
	b := asttest.New()
	top := b.Expr(b.Assign(b.Var("config"), b.Int("1")))
	global := b.Global("config", "nowhere")
	f := b.File("a.php", top, b.Func("f", nil, global))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]

	byRange := map[ast.Range]symbols.Use{}
	for _, use := range u.Uses() {
		byRange[use.Range] = use
	}
	use, ok := byRange[global.Vars[0].Rng]
	require.True(t, ok)
	require.NotNil(t, use.Decl)
	assert.Equal(t, "config", use.Decl.Name)
	assert.Equal(t, u.Top, use.Decl.Context)

	use, ok = byRange[global.Vars[1].Rng]
	require.True(t, ok)
	assert.Equal(t, "$nowhere", use.Name)
	assert.Nil(t, use.Decl)
	assert.Empty(t, hints(u))
}

func TestRecord_TraitRules(t *testing.T) {
	b := asttest.New()
	greets := b.Trait("Greets", b.Method("hello", nil))
	waves := b.Trait("Waves", b.Method("hello", nil))

	tu := b.TraitUse("Greets", "Waves")
	aliased := &ast.TraitRule{Trait: b.Name("Greets"), Method: b.Ident("HELLO"), Alias: b.Ident("hi")}
	aliased.Rng = aliased.Trait.Rng.Cover(aliased.Alias.Rng)
	chosen := &ast.TraitRule{Trait: b.Name("Greets"), Method: b.Ident("hello"), InsteadOf: []*ast.Name{b.Name("Waves")}}
	chosen.Rng = chosen.Trait.Rng.Cover(chosen.InsteadOf[0].Rng)
	tu.Rules = []*ast.TraitRule{aliased, chosen}
	tu.Rng = tu.Rng.Cover(chosen.Rng)
	f := b.File("a.php", greets, waves, b.Class("Person", tu))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]
	assert.Empty(t, hints(u))

	var methods []symbols.Use
	for _, use := range u.Uses() {
		assert.NotEqual(t, aliased.Alias.Rng, use.Range, "an alias name declares")
		if use.Kind == symbols.KindFunction {
			methods = append(methods, use)
		}
	}
	require.Len(t, methods, 2)
	assert.Equal(t, aliased.Method.Rng, methods[0].Range)
	assert.Equal(t, chosen.Method.Rng, methods[1].Range)
	for _, use := range methods {
		require.NotNil(t, use.Decl)
		assert.Equal(t, "greets::hello", use.Decl.Qualified)
	}

	assert.Len(t, u.UsesOf(ix.FindClass("greets")), 3, "the use list and both rules")
	assert.Len(t, u.UsesOf(ix.FindClass("waves")), 2, "the use list and insteadof")
}

func TestRecord_Include(t *testing.T) {
	b := asttest.New()
	lib := b.File("lib.php", b.Func("helper", nil))
	path := b.Str("'lib.php'")
	dynamic := b.Include("require", b.Var("where"))
	app := b.File("app.php", b.Expr(b.Include("include", path)), b.Expr(dynamic))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, lib, app)[1]

	var imports []symbols.Use
	for _, use := range u.Uses() {
		if use.Kind == symbols.KindImport {
			imports = append(imports, use)
		}
	}
	require.Len(t, imports, 1, "only literal paths are imports")
	assert.Equal(t, path.Rng, imports[0].Range)
	assert.Equal(t, "lib.php", imports[0].Name)
	require.NotNil(t, imports[0].Decl)
	assert.Equal(t, "lib.php", imports[0].Decl.File)
}

func TestRecord_ClosureCaptureInMethod(t *testing.T) {
	b := asttest.New()
	bare := b.Use("name", false)
	noLocal := b.Method("bare", nil,
		b.Expr(b.Assign(b.Var("f"), b.Closure(nil, []*ast.ClosureUse{bare}, b.Echo(b.Var("name"))))),
	)
	local := b.Var("name")
	shadowed := b.Use("name", false)
	withLocal := b.Method("shadowed", nil,
		b.Expr(b.Assign(local, b.Str("'s'"))),
		b.Expr(b.Assign(b.Var("g"), b.Closure(nil, []*ast.ClosureUse{shadowed}, b.Echo(b.Var("name"))))),
	)
	f := b.File("a.php", b.Class("User", b.Property("name", b.Int("1")), noLocal, withLocal))

	ix := symbols.NewIndex()
	u := analyze(t, ix, nil, f)[0]

	useAt := func(t *testing.T, r ast.Range) symbols.Use {
		t.Helper()
		for _, use := range u.Uses() {
			if use.Range == r {
				return use
			}
		}
		t.Fatalf("no use at %v", r)
		return symbols.Use{}
	}

	t.Run("Properties are not captured", func(t *testing.T) {
		assert.Nil(t, useAt(t, bare.Var.Rng).Decl)
		alias := u.DeclOf(bare)
		require.NotNil(t, alias)
		assert.Nil(t, alias.Target)
	})

	t.Run("The local is captured", func(t *testing.T) {
		d := useAt(t, shadowed.Var.Rng).Decl
		require.NotNil(t, d)
		assert.False(t, d.Member)
		assert.Equal(t, local.Rng, d.Range)
		alias := u.DeclOf(shadowed)
		require.NotNil(t, alias)
		assert.Same(t, d, alias.Target)
	})
}
