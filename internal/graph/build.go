package graph

import (
	"fmt"
	"sort"

	"phpsema/internal/ast"
	"phpsema/internal/declare"
	"phpsema/internal/doccomment"
	"phpsema/internal/symbols"
)

// FromIndex converts the analyzed units of ix into a graph. Unit-level and
// member declarations become nodes; locals, parameters and aliases do not.
// Every recorded use becomes an edge from the innermost function or class
// containing it, or from the unit node when it is at file level.
// The caller holds at least a read lock on ix.
func FromIndex(ix *symbols.Index) *Graph {
	b := &builder{
		ix:    ix,
		g:     NewGraph(),
		ids:   make(map[*symbols.Declaration]string),
		units: make(map[string]string),
		spans: make(map[string][]container),
	}
	var units []*symbols.Unit
	for _, u := range ix.Units() {
		if u.Prelude || u.File == nil {
			continue
		}
		units = append(units, u)
	}
	for _, u := range units {
		b.addNodes(u)
	}
	for _, u := range units {
		b.addEdges(u)
	}
	return b.g
}

type container struct {
	rng ast.Range
	id  string
}

type builder struct {
	ix    *symbols.Index
	g     *Graph
	ids   map[*symbols.Declaration]string
	units map[string]string
	spans map[string][]container
}

func (b *builder) addNodes(u *symbols.Unit) {
	f := u.File
	_, endLine := f.Position(ast.Pos(len(f.Src)))
	if endLine == 0 {
		endLine = 1
	}
	unitID := BuildStableID(u.Path, NodeUnit, u.Path, string(f.Src))
	b.g.AddNode(&Node{
		ID:          unitID,
		Unit:        u.Path,
		Kind:        NodeUnit,
		Name:        u.Path,
		Qualified:   u.Path,
		StartLine:   1,
		EndLine:     endLine,
		ContentHash: ContentHash(string(f.Src)),
	})
	b.units[u.Path] = unitID

	extents := make(map[*symbols.Declaration]ast.Range)
	ast.Inspect(f, func(n ast.Node) bool {
		if d := u.DeclOf(n); d != nil {
			if _, ok := extents[d]; !ok {
				extents[d] = n.Span()
			}
		}
		return true
	})

	seen := make(map[string]int)
	for _, d := range u.Declarations() {
		kind, ok := nodeKind(d)
		if !ok {
			continue
		}
		rng, ok := extents[d]
		if !ok {
			rng = d.Range
		}
		text := f.Text(rng)
		id := BuildStableID(u.Path, kind, d.Qualified, text)
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n)
		} else {
			seen[id] = 1
		}
		start, _ := f.Position(rng.Start)
		end, _ := f.Position(rng.End)
		node := &Node{
			ID:          id,
			Unit:        u.Path,
			Kind:        kind,
			Name:        d.DisplayName(),
			Qualified:   d.Qualified,
			StartLine:   start,
			EndLine:     end,
			ContentHash: ContentHash(text),
			Deprecated:  doccomment.IsDeprecated(d.Doc),
		}
		if d.Type != nil {
			node.Type = d.Type.String()
			node.ContentHash = typedContentHash(text, d.Type)
		}
		b.g.AddNode(node)
		b.ids[d] = id
		if kind.Container() {
			b.spans[u.Path] = append(b.spans[u.Path], container{rng: rng, id: id})
		}

		if d.Member && d.Context != nil && d.Context.Owner != nil {
			if owner, ok := b.ids[d.Context.Owner]; ok {
				ev := Evidence{Filepath: u.Path, StartLine: start, EndLine: end}
				b.g.AddEdge(Edge{
					From:       id,
					To:         owner,
					Kind:       RelationBelongsTo,
					Confidence: Confidence(RelationBelongsTo, 1, ev),
					Evidence:   ev,
				})
			}
		}
	}

	// Innermost first when searching by position.
	spans := b.spans[u.Path]
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].rng.End-spans[i].rng.Start < spans[j].rng.End-spans[j].rng.Start
	})
}

func (b *builder) addEdges(u *symbols.Unit) {
	uses := u.Uses()
	candidates := make(map[ast.Range]int)
	for _, use := range uses {
		if use.Decl != nil {
			candidates[use.Range]++
		}
	}

	for _, use := range uses {
		from := b.source(u.Path, use.Range.Start)
		line, _ := u.File.Position(use.Range.Start)
		endLine, _ := u.File.Position(use.Range.End)
		ev := Evidence{Filepath: u.Path, StartLine: line, EndLine: endLine}
		kind := relationKind(use)

		if use.Decl == nil {
			b.g.Unresolved = append(b.g.Unresolved, UnresolvedRelation{
				From:     from,
				Target:   use.Name,
				Kind:     kind,
				Reason:   ReasonNoCandidate,
				Evidence: ev,
			})
			continue
		}

		var to string
		if use.Kind == symbols.KindImport {
			id, ok := b.units[declare.IncludePath(u, use.Decl.File)]
			if !ok {
				b.g.Unresolved = append(b.g.Unresolved, UnresolvedRelation{
					From:     from,
					Target:   use.Decl.File,
					Kind:     kind,
					Reason:   ReasonSourceMissing,
					Evidence: ev,
				})
				continue
			}
			to = id
		} else {
			d := use.Decl
			for d.Target != nil && d.Target != d {
				d = d.Target
			}
			id, ok := b.ids[d]
			if !ok {
				// Locals and prelude declarations.
				continue
			}
			to = id
		}
		if to == from {
			continue
		}
		b.g.AddEdge(Edge{
			From:       from,
			To:         to,
			Kind:       kind,
			Confidence: Confidence(kind, candidates[use.Range], ev),
			Evidence:   ev,
		})
	}
}

// source returns the innermost function or class of path containing pos.
func (b *builder) source(path string, pos ast.Pos) string {
	for _, c := range b.spans[path] {
		if c.rng.Contains(pos) {
			return c.id
		}
	}
	return b.units[path]
}

func nodeKind(d *symbols.Declaration) (NodeKind, bool) {
	switch d.Kind {
	case symbols.KindClass:
		return NodeKind(d.ClassKind.String()), true
	case symbols.KindFunction:
		if d.IsMethod() {
			return NodeMethod, true
		}
		return NodeFunction, true
	case symbols.KindConstant:
		return NodeConstant, true
	case symbols.KindVariable:
		if d.Member {
			return NodeProperty, true
		}
		if d.Parameter || d.Target != nil || d.Context == nil {
			return "", false
		}
		switch d.Context.Kind {
		case symbols.ScopeGlobal, symbols.ScopeNamespace:
			return NodeVariable, true
		}
	}
	return "", false
}

func relationKind(use symbols.Use) RelationKind {
	switch use.Kind {
	case symbols.KindFunction:
		return RelationCalls
	case symbols.KindClass:
		return RelationUsesType
	case symbols.KindImport:
		return RelationIncludes
	}
	return RelationReads
}
