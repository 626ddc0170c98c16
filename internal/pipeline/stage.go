package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"phpsema/internal/symbols"
)

// StageStats are the unit's counters after a stage ran.
type StageStats struct {
	Declarations int
	Uses         int
	Unresolved   int
	Diagnostics  int
}

// Stage is one pass over a unit.
type Stage interface {
	Name() string
	Run(ctx context.Context, u *symbols.Unit) error
}

type stageFunc struct {
	name string
	run  func(ctx context.Context, u *symbols.Unit) error
}

// NewStage wraps run as a Stage.
func NewStage(name string, run func(ctx context.Context, u *symbols.Unit) error) Stage {
	return &stageFunc{name: name, run: run}
}

func (s *stageFunc) Name() string { return s.name }

func (s *stageFunc) Run(ctx context.Context, u *symbols.Unit) error { return s.run(ctx, u) }

type StageResult struct {
	Unit    string
	Stage   string
	Stats   StageStats
	Elapsed time.Duration
	Err     error
}

// Chain runs stages in order over a unit and stops at the first failure.
type Chain struct {
	stages []Stage
	tracer trace.Tracer
	log    logrus.FieldLogger
}

func NewChain(tracer trace.Tracer, log logrus.FieldLogger, stages ...Stage) *Chain {
	return &Chain{stages: stages, tracer: tracer, log: log}
}

func (c *Chain) Run(ctx context.Context, u *symbols.Unit) []StageResult {
	if u == nil {
		return nil
	}

	var out []StageResult
	for _, s := range c.stages {
		res := c.runStage(ctx, s, u)
		out = append(out, res)
		if res.Err != nil {
			break
		}
	}
	return out
}

func (c *Chain) runStage(ctx context.Context, s Stage, u *symbols.Unit) StageResult {
	ctx, span := c.tracer.Start(ctx, "stage."+s.Name(), trace.WithAttributes(
		attribute.String("unit", u.Path),
		attribute.String("stage", s.Name()),
	))
	defer span.End()

	start := time.Now()
	err := ctx.Err()
	if err == nil {
		err = s.Run(ctx, u)
	}
	res := StageResult{
		Unit:    u.Path,
		Stage:   s.Name(),
		Stats:   statsOf(u),
		Elapsed: time.Since(start),
		Err:     err,
	}

	span.SetAttributes(
		attribute.Int("declarations", res.Stats.Declarations),
		attribute.Int("uses", res.Stats.Uses),
		attribute.Int("unresolved", res.Stats.Unresolved),
	)
	entry := c.log.WithFields(logrus.Fields{
		"unit":         u.Path,
		"stage":        s.Name(),
		"declarations": res.Stats.Declarations,
		"uses":         res.Stats.Uses,
		"unresolved":   res.Stats.Unresolved,
		"elapsed":      res.Elapsed,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		entry.WithError(err).Warn("stage failed")
		return res
	}
	entry.Debug("stage finished")
	return res
}

func statsOf(u *symbols.Unit) StageStats {
	stats := StageStats{
		Declarations: len(u.Declarations()),
		Diagnostics:  len(u.Diagnostics()),
	}
	for _, use := range u.Uses() {
		stats.Uses++
		if use.Decl == nil {
			stats.Unresolved++
		}
	}
	return stats
}

// firstError returns the error of the first failed stage.
func firstError(results []StageResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
