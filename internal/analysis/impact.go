// Package analysis maps source changes onto the use graph.
package analysis

import (
	"sort"

	"phpsema/internal/git"
	"phpsema/internal/graph"
)

// ImpactReport summarizes the declarations affected by changes.
type ImpactReport struct {
	Direct   []*graph.Node
	Indirect []*graph.Node
	// Units lists every unit holding an affected declaration, sorted.
	Units []string
}

// Analyzer performs impact analysis on the use graph.
type Analyzer struct {
	g *graph.Graph
}

func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact finds the declarations whose lines overlap the changes and
// the declarations that use them. A change without lines, a deleted file for
// instance, affects its whole unit.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) *ImpactReport {
	report := &ImpactReport{
		Direct:   []*graph.Node{},
		Indirect: []*graph.Node{},
	}
	seen := make(map[string]bool)
	units := make(map[string]bool)

	for _, change := range changes {
		units[change.Path] = true
		for _, node := range a.g.NodesInUnit(change.Path) {
			if seen[node.ID] {
				continue
			}
			if change.Deleted || len(change.ChangedLines) == 0 || isAffected(node, change.ChangedLines) {
				seen[node.ID] = true
				report.Direct = append(report.Direct, node)
			}
		}
	}

	for _, node := range report.Direct {
		for _, dep := range a.g.Dependents(node.ID) {
			if seen[dep.ID] {
				continue
			}
			seen[dep.ID] = true
			report.Indirect = append(report.Indirect, dep)
			units[dep.Unit] = true
		}
	}

	for path := range units {
		report.Units = append(report.Units, path)
	}
	sort.Strings(report.Units)
	return report
}

func isAffected(node *graph.Node, lines []int) bool {
	for _, line := range lines {
		if line >= node.StartLine && line <= node.EndLine {
			return true
		}
	}
	return false
}
