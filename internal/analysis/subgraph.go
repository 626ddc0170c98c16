package analysis

import (
	"sort"

	"phpsema/internal/git"
	"phpsema/internal/graph"
)

// ReachConfig bounds how far impact is followed through users.
type ReachConfig struct {
	MaxHops       int
	MinConfidence float64
	// AllowedKinds restricts the relations followed; empty follows all.
	AllowedKinds map[graph.RelationKind]bool
}

func DefaultReachConfig() ReachConfig {
	return ReachConfig{MaxHops: 2}
}

// Subgraph is the part of the graph reachable from changed declarations by
// walking from each declaration to its users. Scores start at 1 for the
// changed declarations and decay with edge confidence.
type Subgraph struct {
	MaxHops    int
	SeedIDs    []string
	NodeIDs    []string
	NodeScores map[string]float64
	Edges      []graph.Edge
}

type queueItem struct {
	id    string
	depth int
}

// Reach extracts the users of changed declarations up to cfg.MaxHops away.
func (a *Analyzer) Reach(changes []git.ChangedFile, cfg ReachConfig) *Subgraph {
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}
	sg := &Subgraph{MaxHops: cfg.MaxHops, NodeScores: map[string]float64{}}

	depth := make(map[string]int)
	var queue []queueItem
	for _, node := range a.AnalyzeImpact(changes).Direct {
		depth[node.ID] = 0
		sg.NodeScores[node.ID] = 1
		sg.SeedIDs = append(sg.SeedIDs, node.ID)
		queue = append(queue, queueItem{id: node.ID})
	}
	sort.Strings(sg.SeedIDs)
	if len(queue) == 0 {
		return sg
	}

	users := make(map[string][]graph.Edge)
	for _, e := range a.g.Edges {
		if edgeAllowed(e, cfg) {
			users[e.To] = append(users[e.To], e)
		}
	}

	seenEdge := make(map[graph.Edge]bool)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, e := range users[cur.id] {
			if !seenEdge[e] {
				seenEdge[e] = true
				sg.Edges = append(sg.Edges, e)
			}
			score := sg.NodeScores[cur.id] * edgeWeight(e.Confidence)
			if score > sg.NodeScores[e.From] {
				sg.NodeScores[e.From] = score
			}
			next := cur.depth + 1
			if prev, ok := depth[e.From]; !ok || next < prev {
				depth[e.From] = next
				queue = append(queue, queueItem{id: e.From, depth: next})
			}
		}
	}

	for id := range depth {
		sg.NodeIDs = append(sg.NodeIDs, id)
	}
	sort.Strings(sg.NodeIDs)
	sort.Slice(sg.Edges, func(i, j int) bool {
		if sg.Edges[i].From != sg.Edges[j].From {
			return sg.Edges[i].From < sg.Edges[j].From
		}
		if sg.Edges[i].To != sg.Edges[j].To {
			return sg.Edges[i].To < sg.Edges[j].To
		}
		return sg.Edges[i].Kind < sg.Edges[j].Kind
	})
	return sg
}

func edgeAllowed(e graph.Edge, cfg ReachConfig) bool {
	if cfg.MinConfidence > 0 && e.Confidence < cfg.MinConfidence {
		return false
	}
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Kind]
}

// edgeWeight treats a missing confidence as a coin flip.
func edgeWeight(c float64) float64 {
	if c <= 0 {
		return 0.5
	}
	if c > 1 {
		return 1
	}
	return c
}
