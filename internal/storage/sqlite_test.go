package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
	"phpsema/internal/graph"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testNode(id, unit string, kind graph.NodeKind, name, qualified string, start, end int) *graph.Node {
	return &graph.Node{
		ID:          id,
		Unit:        unit,
		Kind:        kind,
		Name:        name,
		Qualified:   qualified,
		StartLine:   start,
		EndLine:     end,
		ContentHash: "h-" + id,
	}
}

func TestSQLiteStore_SaveGraph_SnapshotSync(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a := testNode("a", "a.php", graph.NodeFunction, "fa", "fa", 1, 10)
	b := testNode("b", "b.php", graph.NodeFunction, "fb", "fb", 1, 10)
	b.Deprecated = true
	b.Type = "function(): int"
	c := testNode("c", "c.php", graph.NodeFunction, "fc", "fc", 1, 10)

	g1 := graph.NewGraph()
	g1.AddNode(a)
	g1.AddNode(b)
	g1.AddEdge(graph.Edge{From: a.ID, To: b.ID, Kind: graph.RelationCalls, Confidence: 0.9})
	g1.Unresolved = []graph.UnresolvedRelation{{From: a.ID, Target: "Gone", Kind: graph.RelationUsesType, Reason: graph.ReasonNoCandidate}}
	require.NoError(t, store.SaveGraph(ctx, g1))

	g2 := graph.NewGraph()
	g2.AddNode(b)
	g2.AddNode(c)
	g2.AddEdge(graph.Edge{
		From:       c.ID,
		To:         b.ID,
		Kind:       graph.RelationCalls,
		Confidence: 0.8,
		Evidence:   graph.Evidence{Filepath: "c.php", StartLine: 4, EndLine: 4},
	})
	require.NoError(t, store.SaveGraph(ctx, g2))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)

	assert.Len(t, loaded.Nodes, 2)
	assert.NotContains(t, loaded.Nodes, a.ID)
	assert.Equal(t, b, loaded.Nodes[b.ID])
	assert.Contains(t, loaded.Nodes, c.ID)

	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, g2.Edges[0], loaded.Edges[0])
	assert.Empty(t, loaded.Unresolved)

	assert.Equal(t, []*graph.Node{b}, loaded.Dependencies(c.ID))
}

func TestSQLiteStore_SaveGraph_EmptySnapshotClearsData(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	g := graph.NewGraph()
	g.AddNode(testNode("a", "a.php", graph.NodeClass, "A", "a", 1, 3))
	require.NoError(t, store.SaveGraph(ctx, g))
	require.NoError(t, store.SaveGraph(ctx, graph.NewGraph()))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes)
	assert.Empty(t, loaded.Edges)
}

func TestSQLiteStore_Nodes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	g := graph.NewGraph()
	g.AddNode(testNode("late", "a.php", graph.NodeFunction, "late", "late", 9, 12))
	g.AddNode(testNode("early", "a.php", graph.NodeClass, "Early", "early", 2, 5))
	g.AddNode(testNode("other", "b.php", graph.NodeClass, "Other", "other", 1, 1))
	require.NoError(t, store.SaveGraph(ctx, g))

	nodes, err := store.FindNodesByUnit(ctx, "a.php")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "early", nodes[0].ID)

	n, err := store.GetNode(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "Other", n.Name)

	_, err = store.GetNode(ctx, "absent")
	assert.Error(t, err)
}

func TestSQLiteStore_FindUses(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	g := graph.NewGraph()
	g.AddNode(testNode("service", "lib.php", graph.NodeClass, "Service", "service", 1, 5))
	g.AddNode(testNode("run", "lib.php", graph.NodeMethod, "Service::run", "service::run", 2, 4))
	g.AddNode(testNode("main", "app.php", graph.NodeFunction, "main", "main", 1, 6))
	g.AddEdge(graph.Edge{From: "run", To: "service", Kind: graph.RelationBelongsTo})
	g.AddEdge(graph.Edge{From: "main", To: "service", Kind: graph.RelationUsesType, Evidence: graph.Evidence{Filepath: "app.php", StartLine: 2, EndLine: 2}})
	g.AddEdge(graph.Edge{From: "main", To: "run", Kind: graph.RelationCalls, Evidence: graph.Evidence{Filepath: "app.php", StartLine: 3, EndLine: 3}})
	require.NoError(t, store.SaveGraph(ctx, g))

	t.Run("Class", func(t *testing.T) {
		uses, err := store.FindUses(ctx, "SERVICE")
		require.NoError(t, err)
		require.Len(t, uses, 1, "membership is not a use")
		assert.Equal(t, "main", uses[0].Source)
		assert.Equal(t, graph.RelationUsesType, uses[0].Kind)
		assert.Equal(t, "app.php", uses[0].Unit)
		assert.Equal(t, 2, uses[0].StartLine)
	})

	t.Run("Bare member name", func(t *testing.T) {
		uses, err := store.FindUses(ctx, "run")
		require.NoError(t, err)
		require.Len(t, uses, 1)
		assert.Equal(t, "service::run", uses[0].Target)
	})

	t.Run("Unknown", func(t *testing.T) {
		uses, err := store.FindUses(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, uses)
	})
}

func TestSQLiteStore_Diagnostics(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	diags := []diagnostic.Diagnostic{
		{Severity: diagnostic.SeverityHint, Message: "Declaration not found: Foo", Unit: "b.php", Range: ast.Range{Start: 10, End: 13}, Line: 2, Col: 5},
		{Severity: diagnostic.SeverityError, Message: "Syntax error.", Unit: "a.php", Range: ast.Range{Start: 0, End: 1}, Line: 1, Col: 1},
	}
	require.NoError(t, store.SaveDiagnostics(ctx, diags))

	all, err := store.LoadDiagnostics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []diagnostic.Diagnostic{diags[1], diags[0]}, all)

	one, err := store.LoadDiagnostics(ctx, "b.php")
	require.NoError(t, err)
	assert.Equal(t, []diagnostic.Diagnostic{diags[0]}, one)

	require.NoError(t, store.SaveDiagnostics(ctx, nil))
	all, err = store.LoadDiagnostics(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := &Run{Kind: "scan", StartedAt: start, FinishedAt: start.Add(time.Second), Units: 3}
	require.NoError(t, store.SaveRun(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	second := &Run{Kind: "update", Revision: "abc123", StartedAt: start.Add(time.Hour), Units: 1, Edges: 4}
	require.NoError(t, store.SaveRun(ctx, second))

	latest, err = store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "abc123", latest.Revision)
	assert.Equal(t, 4, latest.Edges)
	assert.True(t, latest.StartedAt.Equal(second.StartedAt))
	assert.True(t, latest.FinishedAt.IsZero())
}
