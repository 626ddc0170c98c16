// Package pipeline drives the analysis passes over units: per unit, over a
// whole project, and incrementally after changes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"phpsema/internal/ast"
	"phpsema/internal/crawler"
	"phpsema/internal/declare"
	"phpsema/internal/diagnostic"
	"phpsema/internal/expr"
	"phpsema/internal/extractor"
	"phpsema/internal/graph"
	"phpsema/internal/prelude"
	"phpsema/internal/symbols"
	"phpsema/internal/typebuild"
	"phpsema/internal/uses"
)

// ErrUnitBusy is returned when a unit is entered while it is being analyzed.
var ErrUnitBusy = errors.New("unit is already being analyzed")

const tracerName = "phpsema/pipeline"

type Option func(*Analyzer)

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Analyzer) { a.log = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Analyzer) { a.tracer = tp.Tracer(tracerName) }
}

// WithWorkers bounds the number of files parsed at once.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithCrawler(c *crawler.Crawler) Option {
	return func(a *Analyzer) { a.crawler = c }
}

// WithUsesOptions configures the diagnostics of the use pass.
func WithUsesOptions(opts ...uses.Option) Option {
	return func(a *Analyzer) { a.useOpts = append(a.useOpts, opts...) }
}

// Analyzer owns one symbol index and keeps it analyzed.
type Analyzer struct {
	ix      *symbols.Index
	ev      *expr.Evaluator
	ext     *extractor.Extractor
	crawler *crawler.Crawler
	log     logrus.FieldLogger
	tracer  trace.Tracer
	workers int
	useOpts []uses.Option

	// Declarations must exist everywhere before linking, and links before
	// types, so units go through the phases in lockstep.
	phases []*Chain

	mu   sync.Mutex
	busy map[string]bool
}

// New creates an analyzer whose index already holds the prelude.
func New(opts ...Option) (*Analyzer, error) {
	ext, err := extractor.NewExtractor("php")
	if err != nil {
		return nil, err
	}
	a := &Analyzer{
		ix:      symbols.NewIndex(),
		ext:     ext,
		crawler: crawler.NewCrawler(),
		log:     logrus.StandardLogger(),
		tracer:  otel.Tracer(tracerName),
		workers: 4,
		busy:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ev = expr.New(a.ix)

	declareStage := NewStage("declare", func(_ context.Context, u *symbols.Unit) error {
		declare.Prepass(u)
		return nil
	})
	linkStage := NewStage("link", func(_ context.Context, u *symbols.Unit) error {
		declare.Link(a.ev, u)
		return nil
	})
	typeStage := NewStage("types", func(_ context.Context, u *symbols.Unit) error {
		typebuild.New(a.ev, u, declare.NewVariables(a.ev, u)).Build()
		return nil
	})
	useStage := NewStage("uses", func(_ context.Context, u *symbols.Unit) error {
		uses.New(a.ix, u, a.useOpts...).Record()
		return nil
	})
	a.phases = []*Chain{
		NewChain(a.tracer, a.log, declareStage),
		NewChain(a.tracer, a.log, linkStage),
		NewChain(a.tracer, a.log, typeStage, useStage),
	}

	if err := a.loadPrelude(context.Background(), declareStage, linkStage, typeStage); err != nil {
		return nil, fmt.Errorf("failed to load prelude: %w", err)
	}
	return a, nil
}

func (a *Analyzer) loadPrelude(ctx context.Context, stages ...Stage) error {
	f, err := a.ext.ParseSource(ctx, prelude.Path, prelude.Source)
	if err != nil {
		return err
	}
	a.ix.Lock()
	defer a.ix.Unlock()
	u := a.ix.NewUnit(prelude.Path, f)
	u.Prelude = true
	return firstError(NewChain(a.tracer, a.log, stages...).Run(ctx, u))
}

// Close tears the index down.
func (a *Analyzer) Close() {
	a.ix.Lock()
	defer a.ix.Unlock()
	a.ix.Close()
}

func (a *Analyzer) acquire(paths ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range paths {
		if a.busy[p] {
			return fmt.Errorf("%w: %s", ErrUnitBusy, p)
		}
	}
	for _, p := range paths {
		a.busy[p] = true
	}
	return nil
}

func (a *Analyzer) release(paths ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range paths {
		delete(a.busy, p)
	}
}

// AnalyzeUnit parses src as path and runs every pass over it, replacing
// what the index held for path.
func (a *Analyzer) AnalyzeUnit(ctx context.Context, path string, src []byte) ([]StageResult, error) {
	if err := a.acquire(path); err != nil {
		return nil, err
	}
	defer a.release(path)

	ctx, span := a.tracer.Start(ctx, "AnalyzeUnit", trace.WithAttributes(attribute.String("unit", path)))
	defer span.End()

	f, err := a.ext.ParseSource(ctx, path, src)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	a.ix.Lock()
	defer a.ix.Unlock()
	return a.analyze(ctx, []*symbols.Unit{a.newUnit(f)})
}

// AnalyzeProject analyzes every PHP file below root. Files are parsed in
// parallel; the passes then run over all units together so declarations of
// one file are visible to every other. Units of files no longer present are
// dropped.
func (a *Analyzer) AnalyzeProject(ctx context.Context, root string) ([]StageResult, error) {
	ctx, span := a.tracer.Start(ctx, "AnalyzeProject", trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	paths, err := a.crawler.Files(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if err := a.acquire(paths...); err != nil {
		return nil, err
	}
	defer a.release(paths...)

	files, err := a.parseAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("units", len(files)))

	a.ix.Lock()
	defer a.ix.Unlock()

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}
	for _, u := range a.ix.Units() {
		if !u.Prelude && !present[u.Path] {
			a.ix.ClearUnit(u.Path)
		}
	}

	units := make([]*symbols.Unit, 0, len(files))
	for _, f := range files {
		units = append(units, a.newUnit(f))
	}
	return a.analyze(ctx, units)
}

// parseAll parses paths with a bounded number of workers. Files that cannot
// be read are logged and left out.
func (a *Analyzer) parseAll(ctx context.Context, paths []string) ([]*ast.File, error) {
	parsed := make([]*ast.File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			f, err := a.ext.ParseFile(gctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.log.WithError(err).WithField("unit", path).Warn("skipping unit")
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := parsed[:0]
	for _, f := range parsed {
		if f != nil {
			files = append(files, f)
		}
	}
	return files, nil
}

// Reanalyze brings the given units up to date with the files on disk, and
// reruns the units whose uses point into them. A path whose file is gone is
// removed from the index.
func (a *Analyzer) Reanalyze(ctx context.Context, paths []string) ([]StageResult, error) {
	ctx, span := a.tracer.Start(ctx, "Reanalyze", trace.WithAttributes(attribute.Int("changed", len(paths))))
	defer span.End()

	targets := make(map[string]bool, len(paths))
	var files []*ast.File
	var deleted []string
	for _, p := range paths {
		p = filepath.Clean(p)
		if targets[p] {
			continue
		}
		targets[p] = true
		f, err := a.ext.ParseFile(ctx, p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			deleted = append(deleted, p)
		case err != nil:
			return nil, err
		default:
			files = append(files, f)
		}
	}

	a.ix.Lock()
	defer a.ix.Unlock()

	dependents := a.dependentsOf(targets)
	locked := make([]string, 0, len(targets)+len(dependents))
	for p := range targets {
		locked = append(locked, p)
	}
	for _, u := range dependents {
		locked = append(locked, u.Path)
	}
	if err := a.acquire(locked...); err != nil {
		return nil, err
	}
	defer a.release(locked...)

	for _, p := range deleted {
		a.log.WithField("unit", p).Info("unit removed")
		a.ix.ClearUnit(p)
	}

	units := make([]*symbols.Unit, 0, len(files)+len(dependents))
	for _, f := range files {
		units = append(units, a.newUnit(f))
	}
	for _, u := range dependents {
		units = append(units, a.newUnit(u.File))
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	return a.analyze(ctx, units)
}

// dependentsOf returns the units outside targets that use a declaration of
// a target or include one.
func (a *Analyzer) dependentsOf(targets map[string]bool) []*symbols.Unit {
	var out []*symbols.Unit
	for _, u := range a.ix.Units() {
		if u.Prelude || u.File == nil || targets[u.Path] {
			continue
		}
		for _, use := range u.Uses() {
			if use.Decl == nil || use.Decl.Unit == nil {
				continue
			}
			hit := targets[use.Decl.Unit.Path]
			if use.Kind == symbols.KindImport {
				hit = targets[declare.IncludePath(u, use.Decl.File)]
			}
			if hit {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// newUnit replaces the unit of f.Path. The caller holds the write lock.
func (a *Analyzer) newUnit(f *ast.File) *symbols.Unit {
	u := a.ix.NewUnit(f.Path, f)
	for _, r := range f.Errors {
		u.Report(diagnostic.SeverityError, r, "Syntax error.")
	}
	return u
}

// analyze runs the phases over units. The caller holds the write lock.
func (a *Analyzer) analyze(ctx context.Context, units []*symbols.Unit) ([]StageResult, error) {
	results := make(map[*symbols.Unit][]StageResult, len(units))
	collect := func() []StageResult {
		var out []StageResult
		for _, u := range units {
			out = append(out, results[u]...)
		}
		return out
	}

	for _, phase := range a.phases {
		for _, u := range units {
			res := phase.Run(ctx, u)
			results[u] = append(results[u], res...)
			if err := firstError(res); err != nil {
				return collect(), fmt.Errorf("analysis of %s failed: %w", u.Path, err)
			}
		}
	}
	return collect(), nil
}

// EvaluateSnippet evaluates text as an expression at pos in the analyzed
// unit path. Unknown units and unparsable text give an empty result.
func (a *Analyzer) EvaluateSnippet(ctx context.Context, path, text string, pos ast.Pos) expr.Result {
	x, err := a.ext.ParseExpression(ctx, text)
	if err != nil {
		a.log.WithError(err).WithField("unit", path).Debug("snippet not evaluated")
		return expr.Result{}
	}

	a.ix.RLock()
	defer a.ix.RUnlock()
	u := a.ix.Unit(path)
	if u == nil || u.Prelude {
		return expr.Result{}
	}
	return a.ev.Evaluate(x, u.ScopeAt(pos), pos)
}

// Graph builds the use graph of the analyzed units.
func (a *Analyzer) Graph() *graph.Graph {
	a.ix.RLock()
	defer a.ix.RUnlock()
	return graph.FromIndex(a.ix)
}

// Diagnostics returns the diagnostics of every analyzed unit, ordered by
// unit and position.
func (a *Analyzer) Diagnostics() []diagnostic.Diagnostic {
	a.ix.RLock()
	defer a.ix.RUnlock()

	var out []diagnostic.Diagnostic
	for _, u := range a.ix.Units() {
		if u.Prelude {
			continue
		}
		out = append(out, u.Diagnostics()...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Range.Start < out[j].Range.Start
	})
	return out
}

// Units returns the paths of the analyzed units, sorted.
func (a *Analyzer) Units() []string {
	a.ix.RLock()
	defer a.ix.RUnlock()

	var out []string
	for _, u := range a.ix.Units() {
		if !u.Prelude {
			out = append(out, u.Path)
		}
	}
	return out
}
