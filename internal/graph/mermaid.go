package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	maxDiagramUnits = 8
	maxDiagramEdges = 10
)

// UnitDiagram emits a compact unit-level graph: the units with the most
// declarations and the strongest dependencies between them.
func UnitDiagram(g *Graph) string {
	type edge struct {
		from string
		to   string
	}
	unitWeight := map[string]int{}
	edgeWeight := map[edge]int{}

	for _, n := range g.Nodes {
		if n.Kind != NodeUnit {
			unitWeight[n.Unit]++
		} else if _, ok := unitWeight[n.Unit]; !ok {
			unitWeight[n.Unit] = 0
		}
	}
	for _, e := range g.Edges {
		if e.Kind == RelationBelongsTo {
			continue
		}
		from, to := g.Nodes[e.From], g.Nodes[e.To]
		if from == nil || to == nil || from.Unit == to.Unit {
			continue
		}
		edgeWeight[edge{from: from.Unit, to: to.Unit}]++
	}

	type unitNode struct {
		name string
		w    int
	}
	nodes := make([]unitNode, 0, len(unitWeight))
	for u, w := range unitWeight {
		nodes = append(nodes, unitNode{name: u, w: w})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].w == nodes[j].w {
			return nodes[i].name < nodes[j].name
		}
		return nodes[i].w > nodes[j].w
	})
	if len(nodes) > maxDiagramUnits {
		nodes = nodes[:maxDiagramUnits]
	}
	ids := make(map[string]string, len(nodes))
	for i, n := range nodes {
		ids[n.name] = fmt.Sprintf("u%d", i)
	}

	type weighted struct {
		e edge
		w int
	}
	edges := make([]weighted, 0, len(edgeWeight))
	for e, w := range edgeWeight {
		if ids[e.from] == "" || ids[e.to] == "" {
			continue
		}
		edges = append(edges, weighted{e: e, w: w})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].w == edges[j].w {
			if edges[i].e.from == edges[j].e.from {
				return edges[i].e.to < edges[j].e.to
			}
			return edges[i].e.from < edges[j].e.from
		}
		return edges[i].w > edges[j].w
	})
	if len(edges) > maxDiagramEdges {
		edges = edges[:maxDiagramEdges]
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", ids[n.name], filepath.Base(n.name)))
	}
	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("    %s -->|%d| %s\n", ids[e.e.from], e.w, ids[e.e.to]))
	}
	sb.WriteString("```\n")
	return sb.String()
}

// ClassDiagram emits the class-like declarations and the type uses between
// them. Uses made inside members count for the owning class.
func ClassDiagram(g *Graph) string {
	owner := map[string]string{}
	for _, e := range g.Edges {
		if e.Kind == RelationBelongsTo {
			owner[e.From] = e.To
		}
	}
	classOf := func(id string) *Node {
		for id != "" {
			if n := g.Nodes[id]; n != nil && isClassLike(n.Kind) {
				return n
			}
			id = owner[id]
		}
		return nil
	}

	var classes []*Node
	for _, n := range g.Nodes {
		if isClassLike(n.Kind) {
			classes = append(classes, n)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	ids := make(map[string]string, len(classes))
	for i, n := range classes {
		ids[n.ID] = fmt.Sprintf("c%d", i)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("classDiagram\n")
	for _, n := range classes {
		sb.WriteString(fmt.Sprintf("    class %s[%q] {\n", ids[n.ID], n.Name))
		if n.Kind != NodeClass {
			sb.WriteString(fmt.Sprintf("        <<%s>>\n", n.Kind))
		}
		sb.WriteString("    }\n")
	}

	seen := map[[2]string]bool{}
	var lines []string
	for _, e := range g.Edges {
		if e.Kind != RelationUsesType {
			continue
		}
		from, to := classOf(e.From), g.Nodes[e.To]
		if from == nil || to == nil || from == to || !isClassLike(to.Kind) {
			continue
		}
		key := [2]string{from.ID, to.ID}
		if seen[key] {
			continue
		}
		seen[key] = true
		lines = append(lines, fmt.Sprintf("    %s ..> %s : uses\n", ids[from.ID], ids[to.ID]))
	}
	sort.Strings(lines)
	for _, l := range lines {
		sb.WriteString(l)
	}
	sb.WriteString("```\n")
	return sb.String()
}

func isClassLike(k NodeKind) bool {
	switch k {
	case NodeClass, NodeInterface, NodeTrait, NodeEnum:
		return true
	}
	return false
}
