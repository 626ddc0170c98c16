package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"phpsema/internal/diagnostic"
	"phpsema/internal/graph"
)

// Store combines graph, diagnostic and run persistence.
type Store interface {
	GraphStore
	DiagnosticStore
	RunStore
	Close() error
}

// GraphStore persists the use graph as a snapshot.
type GraphStore interface {
	// SaveGraph replaces the stored graph with g.
	SaveGraph(ctx context.Context, g *graph.Graph) error

	LoadGraph(ctx context.Context) (*graph.Graph, error)

	GetNode(ctx context.Context, id string) (*graph.Node, error)

	// FindNodesByUnit retrieves all nodes of one unit.
	FindNodesByUnit(ctx context.Context, unit string) ([]*graph.Node, error)

	// FindUses lists the stored uses of declarations named name.
	FindUses(ctx context.Context, name string) ([]UseRecord, error)
}

// DiagnosticStore persists the diagnostics of the last analysis.
type DiagnosticStore interface {
	// SaveDiagnostics replaces the stored diagnostics with diags.
	SaveDiagnostics(ctx context.Context, diags []diagnostic.Diagnostic) error

	// LoadDiagnostics returns the diagnostics of unit, or of every unit when
	// unit is empty, ordered by unit and position.
	LoadDiagnostics(ctx context.Context, unit string) ([]diagnostic.Diagnostic, error)
}

// RunStore records analysis runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	// LatestRun returns nil when nothing was recorded yet.
	LatestRun(ctx context.Context) (*Run, error)
}

// UseRecord is one stored use: a declaration and the node using it.
type UseRecord struct {
	Target    string
	TargetID  string
	Source    string
	SourceID  string
	Kind      graph.RelationKind
	Unit      string
	StartLine int
	EndLine   int
}

// Run describes one scan or update.
type Run struct {
	ID         uuid.UUID
	Kind       string
	Revision   string
	StartedAt  time.Time
	FinishedAt time.Time
	Units      int
	Nodes      int
	Edges      int
	Unresolved int
}
