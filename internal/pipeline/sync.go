package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"phpsema/internal/analysis"
	"phpsema/internal/git"
	"phpsema/internal/graph"
	"phpsema/internal/storage"
)

// Sync runs an analysis over a project and persists the graph, the
// diagnostics and a run record.
type Sync struct {
	Analyzer *Analyzer
	Store    storage.Store
	Root     string
	Out      io.Writer
	Log      logrus.FieldLogger
	// Reach bounds how far Update follows users of changed declarations.
	Reach analysis.ReachConfig
	// ReportPath, when set, receives a JSON run report.
	ReportPath string

	// Changes and Revision read the working tree state; they default to the
	// git CLI.
	Changes  func(ctx context.Context, dir, baseRef string) ([]git.ChangedFile, error)
	Revision func(ctx context.Context, dir string) (string, error)
}

type updatePlan struct {
	Changes    []git.ChangedFile
	FullResync bool
}

func NewSync(a *Analyzer, store storage.Store, root string) *Sync {
	return &Sync{
		Analyzer: a,
		Store:    store,
		Root:     root,
		Out:      os.Stdout,
		Log:      logrus.StandardLogger(),
		Reach:    analysis.DefaultReachConfig(),
		Changes:  git.GetChangedFiles,
		Revision: git.HeadRevision,
	}
}

// Scan analyzes the whole project and stores the result.
func (s *Sync) Scan(ctx context.Context) (*graph.Graph, error) {
	started := time.Now()
	results, err := s.Analyzer.AnalyzeProject(ctx, s.Root)
	if err != nil {
		return nil, err
	}
	s.saveReport("scan", results)
	g := s.Analyzer.Graph()
	fmt.Fprintf(s.Out, "📊 Analyzed %d units: %d declarations, %d edges, %d unresolved.\n",
		len(g.Units()), len(g.Nodes)-len(g.Units()), len(g.Edges), len(g.Unresolved))

	if err := s.storeStage(ctx, "scan", g, started); err != nil {
		return nil, err
	}
	return g, nil
}

// Update analyzes the project after changes since HEAD and reports their
// impact. With force and no changes, the whole project is stored again.
// The report is nil when nothing was done.
func (s *Sync) Update(ctx context.Context, force bool) (*analysis.ImpactReport, error) {
	plan, err := s.detectChangesStage(ctx, force)
	if err != nil {
		return nil, err
	}
	if len(plan.Changes) == 0 && !plan.FullResync {
		fmt.Fprintln(s.Out, "✅ No changes detected.")
		return nil, nil
	}

	started := time.Now()
	g, err := s.analysisStage(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := s.storeStage(ctx, "update", g, started); err != nil {
		return nil, err
	}
	return s.impactAnalysisStage(g, plan.Changes), nil
}

func (s *Sync) detectChangesStage(ctx context.Context, force bool) (*updatePlan, error) {
	changes, err := s.Changes(ctx, s.Root, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}
	changes = git.FilterExt(changes, ".php")
	for i := range changes {
		changes[i].Path = filepath.Join(s.Root, changes[i].Path)
	}

	fullResync := force && len(changes) == 0
	if fullResync {
		fmt.Fprintln(s.Out, "🧭 No git changes detected. Running full analysis of the current tree (--force).")
	} else if len(changes) > 0 {
		fmt.Fprintf(s.Out, "📝 Detected %d changed files.\n", len(changes))
	}

	return &updatePlan{Changes: changes, FullResync: fullResync}, nil
}

// analysisStage reuses the analyzer's index when it already holds the
// project and only the changed units need to run again.
func (s *Sync) analysisStage(ctx context.Context, plan *updatePlan) (*graph.Graph, error) {
	start := time.Now()
	if plan.FullResync || len(s.Analyzer.Units()) == 0 {
		results, err := s.Analyzer.AnalyzeProject(ctx, s.Root)
		if err != nil {
			return nil, fmt.Errorf("full analysis failed: %w", err)
		}
		s.saveReport("update", results)
	} else {
		paths := make([]string, 0, len(plan.Changes))
		for _, c := range plan.Changes {
			paths = append(paths, c.Path)
		}
		results, err := s.Analyzer.Reanalyze(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("reanalysis failed: %w", err)
		}
		s.Log.WithField("stages", len(results)).Debug("reanalysis finished")
		s.saveReport("update", results)
	}

	g := s.Analyzer.Graph()
	fmt.Fprintf(s.Out, "📊 Analysis finished in %v. Units=%d Nodes=%d\n", time.Since(start).Round(time.Millisecond), len(g.Units()), len(g.Nodes))
	fmt.Fprintf(s.Out, "  -> Edges: %d, unresolved uses: %d\n", len(g.Edges), len(g.Unresolved))
	return g, nil
}

func (s *Sync) storeStage(ctx context.Context, kind string, g *graph.Graph, started time.Time) error {
	if err := s.Store.SaveGraph(ctx, g); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	if err := s.Store.SaveDiagnostics(ctx, s.Analyzer.Diagnostics()); err != nil {
		return fmt.Errorf("failed to save diagnostics: %w", err)
	}

	revision, err := s.Revision(ctx, s.Root)
	if err != nil {
		s.Log.WithError(err).Debug("no revision for run")
	}
	run := &storage.Run{
		Kind:       kind,
		Revision:   revision,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Units:      len(g.Units()),
		Nodes:      len(g.Nodes),
		Edges:      len(g.Edges),
		Unresolved: len(g.Unresolved),
	}
	if err := s.Store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.Log.WithFields(logrus.Fields{"run": run.ID, "kind": kind}).Info("analysis stored")
	return nil
}

func (s *Sync) impactAnalysisStage(g *graph.Graph, changes []git.ChangedFile) *analysis.ImpactReport {
	analyzer := analysis.NewAnalyzer(g)
	report := analyzer.AnalyzeImpact(changes)
	if len(changes) == 0 {
		return report
	}
	reach := analyzer.Reach(changes, s.Reach)
	fmt.Fprintln(s.Out, "🔍 Analyzing impact...")
	fmt.Fprintf(s.Out, "  -> %d declarations directly affected\n", len(report.Direct))
	fmt.Fprintf(s.Out, "  -> %d declarations indirectly affected (users)\n", len(report.Indirect))
	fmt.Fprintf(s.Out, "  -> %d units touched\n", len(report.Units))
	fmt.Fprintf(s.Out, "  -> %d declarations within %d hops (%d edges)\n", len(reach.NodeIDs), reach.MaxHops, len(reach.Edges))
	return report
}

func (s *Sync) saveReport(mode string, results []StageResult) {
	if s.ReportPath == "" {
		return
	}
	if err := NewRunReport(mode, s.Root, results).Save(s.ReportPath); err != nil {
		s.Log.WithError(err).Warn("failed to write run report")
		return
	}
	fmt.Fprintf(s.Out, "🧾 Run report: %s\n", s.ReportPath)
}
