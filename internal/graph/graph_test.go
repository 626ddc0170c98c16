package graph_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/ast/asttest"
	"phpsema/internal/declare"
	"phpsema/internal/expr"
	"phpsema/internal/graph"
	"phpsema/internal/symbols"
	"phpsema/internal/typebuild"
	"phpsema/internal/uses"
)

func analyze(ix *symbols.Index, files ...*ast.File) {
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
		uses.New(ix, u).Record()
	}
}

func byQualified(g *graph.Graph) map[string]*graph.Node {
	out := make(map[string]*graph.Node)
	for _, n := range g.Nodes {
		out[n.Qualified] = n
	}
	return out
}

func names(nodes []*graph.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Qualified)
	}
	sort.Strings(out)
	return out
}

func sample() (*ast.File, *ast.File) {
	b := asttest.New()
	lib := b.File("lib.php",
		b.Class("Service", b.Method("run", nil)),
		b.Func("helper", nil),
	)
	main := b.Func("main", nil,
		b.Expr(b.Assign(b.Var("s"), b.New("Service"))),
		b.Expr(b.MCall(b.Var("s"), "run")),
		b.Expr(b.Call("helper")),
	)
	app := b.File("app.php", main, b.Expr(b.New("Missing")))
	return lib, app
}

func TestFromIndex_Nodes(t *testing.T) {
	lib, app := sample()
	ix := symbols.NewIndex()
	analyze(ix, lib, app)
	g := graph.FromIndex(ix)

	assert.Equal(t, map[graph.NodeKind]int{
		graph.NodeUnit:     2,
		graph.NodeClass:    1,
		graph.NodeMethod:   1,
		graph.NodeFunction: 2,
	}, g.KindCounts(), "locals are not nodes")

	nodes := byQualified(g)
	require.Contains(t, nodes, "service::run")
	run := nodes["service::run"]
	assert.Equal(t, "lib.php", run.Unit)
	assert.Equal(t, "Service::run", run.Name)
	assert.True(t, strings.HasPrefix(run.ID, "php/lib.php:method:service::run:"), run.ID)

	assert.Equal(t, []string{"app.php", "lib.php"}, g.Units())
}

func TestFromIndex_Edges(t *testing.T) {
	lib, app := sample()
	ix := symbols.NewIndex()
	analyze(ix, lib, app)
	g := graph.FromIndex(ix)
	nodes := byQualified(g)

	main := nodes["main"]
	require.NotNil(t, main)
	assert.Equal(t, []string{"helper", "service", "service::run"}, names(g.Dependencies(main.ID)))

	service := nodes["service"]
	require.NotNil(t, service)
	assert.Equal(t, []string{"main", "service::run"}, names(g.Dependents(service.ID)))

	for _, e := range g.Edges {
		if e.From == main.ID && e.To == nodes["helper"].ID {
			assert.Equal(t, graph.RelationCalls, e.Kind)
			assert.Equal(t, "app.php", e.Evidence.Filepath)
			assert.Greater(t, e.Confidence, 0.5)
		}
	}

	require.Len(t, g.Unresolved, 1)
	missing := g.Unresolved[0]
	assert.Equal(t, "Missing", missing.Target)
	assert.Equal(t, graph.RelationUsesType, missing.Kind)
	assert.Equal(t, nodes["app.php"].ID, missing.From, "file-level uses come from the unit")
	assert.Equal(t, map[graph.UnresolvedReason]int{graph.ReasonNoCandidate: 1}, g.UnresolvedReasonCounts())
}

func TestFromIndex_Includes(t *testing.T) {
	b := asttest.New()
	lib := b.File("/src/lib.php", b.Func("libfn", nil))
	main := b.File("/src/main.php",
		b.Expr(b.Include("require_once", b.Str("'lib.php'"))),
		b.Expr(b.Include("include", b.Str("'gone.php'"))),
	)
	ix := symbols.NewIndex()
	analyze(ix, lib, main)
	g := graph.FromIndex(ix)
	nodes := byQualified(g)

	deps := g.Dependencies(nodes["/src/main.php"].ID)
	require.Len(t, deps, 1)
	assert.Equal(t, graph.NodeUnit, deps[0].Kind)
	assert.Equal(t, "/src/lib.php", deps[0].Unit)

	require.Len(t, g.Unresolved, 1)
	assert.Equal(t, graph.ReasonSourceMissing, g.Unresolved[0].Reason)
	assert.Equal(t, "gone.php", g.Unresolved[0].Target)
}

func TestFromIndex_Deterministic(t *testing.T) {
	lib, app := sample()
	ix := symbols.NewIndex()
	analyze(ix, lib, app)
	first := graph.FromIndex(ix)
	second := graph.FromIndex(ix)

	var a, b []string
	for id := range first.Nodes {
		a = append(a, id)
	}
	for id := range second.Nodes {
		b = append(b, id)
	}
	sort.Strings(a)
	sort.Strings(b)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestGraph_AddEdgeDeduplicates(t *testing.T) {
	g := graph.NewGraph()
	g.AddNode(&graph.Node{ID: "a", Unit: "a.php"})
	g.AddNode(&graph.Node{ID: "b", Unit: "a.php", StartLine: 3})

	assert.True(t, g.AddEdge(graph.Edge{From: "a", To: "b", Kind: graph.RelationCalls}))
	assert.False(t, g.AddEdge(graph.Edge{From: "a", To: "b", Kind: graph.RelationCalls}))
	assert.True(t, g.AddEdge(graph.Edge{From: "a", To: "b", Kind: graph.RelationReads}))
	assert.Len(t, g.Dependents("b"), 1)

	inUnit := g.NodesInUnit("a.php")
	require.Len(t, inUnit, 2)
	assert.Equal(t, "a", inUnit[0].ID)
}

func TestBuildStableID(t *testing.T) {
	a := graph.BuildStableID("a.php", graph.NodeFunction, "f", "function f() {\n  return 1;\n}")
	b := graph.BuildStableID("a.php", graph.NodeFunction, "f", "function f() { return 1; }")
	c := graph.BuildStableID("a.php", graph.NodeFunction, "f", "function f() { return 2; }")

	assert.Equal(t, a, b, "whitespace does not change the id")
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "php/a.php:function:f:"))
}

func TestConfidence(t *testing.T) {
	ev := graph.Evidence{Filepath: "a.php", StartLine: 1, EndLine: 1}

	c := graph.Confidence(graph.RelationCalls, 1, ev)
	assert.Greater(t, c, 0.0)
	assert.Less(t, c, 1.0)

	assert.Less(t, graph.Confidence(graph.RelationCalls, 3, ev), c, "several candidates split the certainty")
	assert.Less(t, graph.Confidence(graph.RelationCalls, 1, graph.Evidence{}), c)
	assert.GreaterOrEqual(t, graph.Confidence(graph.RelationCalls, 50, graph.Evidence{}), 0.1)
}

func TestFromIndex_ContentHashFollowsType(t *testing.T) {
	build := func(ret func(b *asttest.Builder) ast.Expr) *graph.Node {
		b := asttest.New()
		lib := b.File("lib.php", b.Func("g", nil, b.Ret(ret(b))))
		app := b.File("app.php", b.Expr(b.Assign(b.Var("x"), b.Call("g"))))
		ix := symbols.NewIndex()
		analyze(ix, lib, app)
		return byQualified(graph.FromIndex(ix))["x"]
	}
	asInt := build(func(b *asttest.Builder) ast.Expr { return b.Int("1") })
	asString := build(func(b *asttest.Builder) ast.Expr { return b.Str("'1'") })
	require.NotNil(t, asInt)
	require.NotNil(t, asString)

	assert.Equal(t, "int", asInt.Type)
	assert.Equal(t, "string", asString.Type)
	assert.Equal(t, asInt.ID, asString.ID, "the declaration text did not change")
	assert.NotEqual(t, asInt.ContentHash, asString.ContentHash)
}
