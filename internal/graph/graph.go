// Package graph is the project-wide use graph derived from an analyzed
// symbol index: declarations as nodes, resolved uses as edges.
package graph

import "sort"

type edgeKey struct {
	from, to string
	kind     RelationKind
}

// Graph manages nodes and their relationships.
type Graph struct {
	Nodes      map[string]*Node
	Edges      []Edge
	Unresolved []UnresolvedRelation

	edges map[edgeKey]bool
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: []Edge{},
		edges: make(map[edgeKey]bool),
	}
}

func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	g.Nodes[n.ID] = n
}

// AddEdge adds e unless an edge with the same ends and kind exists.
func (g *Graph) AddEdge(e Edge) bool {
	key := edgeKey{e.From, e.To, e.Kind}
	if g.edges[key] {
		return false
	}
	g.edges[key] = true
	g.Edges = append(g.Edges, e)
	return true
}

// Dependencies returns the nodes id uses.
func (g *Graph) Dependencies(id string) []*Node {
	return g.collect(func(e Edge) (string, bool) { return e.To, e.From == id })
}

// Dependents returns the nodes that use id.
func (g *Graph) Dependents(id string) []*Node {
	return g.collect(func(e Edge) (string, bool) { return e.From, e.To == id })
}

func (g *Graph) collect(match func(Edge) (string, bool)) []*Node {
	seen := make(map[string]bool)
	var out []*Node
	for _, e := range g.Edges {
		other, ok := match(e)
		if !ok || seen[other] {
			continue
		}
		seen[other] = true
		if n, ok := g.Nodes[other]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NodesInUnit returns the nodes of one unit ordered by position.
func (g *Graph) NodesInUnit(path string) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Unit == path {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Units returns the paths of every unit in the graph, sorted.
func (g *Graph) Units() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range g.Nodes {
		if !seen[n.Unit] {
			seen[n.Unit] = true
			out = append(out, n.Unit)
		}
	}
	sort.Strings(out)
	return out
}
