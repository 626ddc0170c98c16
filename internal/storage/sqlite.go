package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
	"phpsema/internal/graph"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			unit TEXT,
			kind TEXT,
			name TEXT,
			qualified TEXT,
			start_line INTEGER,
			end_line INTEGER,
			type TEXT,
			content_hash TEXT,
			deprecated INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			from_id TEXT,
			to_id TEXT,
			kind TEXT,
			confidence REAL,
			evidence_file TEXT,
			evidence_start INTEGER,
			evidence_end INTEGER,
			PRIMARY KEY (from_id, to_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS unresolved (
			from_id TEXT,
			target TEXT,
			kind TEXT,
			reason TEXT,
			evidence_file TEXT,
			evidence_start INTEGER,
			evidence_end INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			unit TEXT,
			severity TEXT,
			message TEXT,
			start_pos INTEGER,
			end_pos INTEGER,
			line INTEGER,
			col INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT,
			revision TEXT,
			started_at TEXT,
			finished_at TEXT,
			units INTEGER,
			nodes INTEGER,
			edges INTEGER,
			unresolved INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_unit ON nodes(unit);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_unit ON diagnostics(unit);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const nodeColumns = "id, unit, kind, name, qualified, start_line, end_line, type, content_hash, deprecated"

func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "unresolved"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range g.Nodes {
		if _, err := stmt.ExecContext(ctx, n.ID, n.Unit, string(n.Kind), n.Name, n.Qualified, n.StartLine, n.EndLine, n.Type, n.ContentHash, n.Deprecated); err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (from_id, to_id, kind, confidence, evidence_file, evidence_start, evidence_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e.From, e.To, string(e.Kind), e.Confidence, e.Evidence.Filepath, e.Evidence.StartLine, e.Evidence.EndLine); err != nil {
			return fmt.Errorf("failed to save edge: %w", err)
		}
	}

	unresolvedStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unresolved (from_id, target, kind, reason, evidence_file, evidence_start, evidence_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer unresolvedStmt.Close()

	for _, u := range g.Unresolved {
		if _, err := unresolvedStmt.ExecContext(ctx, u.From, u.Target, string(u.Kind), string(u.Reason), u.Evidence.Filepath, u.Evidence.StartLine, u.Evidence.EndLine); err != nil {
			return fmt.Errorf("failed to save unresolved relation: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	nodes, err := s.queryNodes(ctx, "SELECT "+nodeColumns+" FROM nodes")
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		g.AddNode(n)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT from_id, to_id, kind, confidence, evidence_file, evidence_start, evidence_end
		FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.Edge
		var kind string
		if err := edgeRows.Scan(&e.From, &e.To, &kind, &e.Confidence, &e.Evidence.Filepath, &e.Evidence.StartLine, &e.Evidence.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = graph.RelationKind(kind)
		g.AddEdge(e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	unresolvedRows, err := s.db.QueryContext(ctx, `
		SELECT from_id, target, kind, reason, evidence_file, evidence_start, evidence_end
		FROM unresolved ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved relations: %w", err)
	}
	defer unresolvedRows.Close()

	for unresolvedRows.Next() {
		var u graph.UnresolvedRelation
		var kind, reason string
		if err := unresolvedRows.Scan(&u.From, &u.Target, &kind, &reason, &u.Evidence.Filepath, &u.Evidence.StartLine, &u.Evidence.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved relation: %w", err)
		}
		u.Kind = graph.RelationKind(kind)
		u.Reason = graph.UnresolvedReason(reason)
		g.Unresolved = append(g.Unresolved, u)
	}

	return g, unresolvedRows.Err()
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	nodes, err := s.queryNodes(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, sql.ErrNoRows
	}
	return nodes[0], nil
}

func (s *SQLiteStore) FindNodesByUnit(ctx context.Context, unit string) ([]*graph.Node, error) {
	return s.queryNodes(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE unit = ? ORDER BY start_line, id", unit)
}

func (s *SQLiteStore) queryNodes(ctx context.Context, query string, args ...any) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*graph.Node
	for rows.Next() {
		var n graph.Node
		var kind string
		if err := rows.Scan(&n.ID, &n.Unit, &kind, &n.Name, &n.Qualified, &n.StartLine, &n.EndLine, &n.Type, &n.ContentHash, &n.Deprecated); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Kind = graph.NodeKind(kind)
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

// FindUses matches name against the display and qualified names of stored
// declarations, ignoring case. A bare member name matches Class::name too.
func (s *SQLiteStore) FindUses(ctx context.Context, name string) ([]UseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.qualified, t.id, f.name, f.id, e.kind, e.evidence_file, e.evidence_start, e.evidence_end
		FROM edges e
		JOIN nodes t ON t.id = e.to_id
		JOIN nodes f ON f.id = e.from_id
		WHERE e.kind != ?
		  AND (t.name = ? COLLATE NOCASE
		    OR t.qualified = ? COLLATE NOCASE
		    OR t.name LIKE '%::' || ?)
		ORDER BY e.evidence_file, e.evidence_start, f.name`,
		string(graph.RelationBelongsTo), name, name, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query uses: %w", err)
	}
	defer rows.Close()

	var out []UseRecord
	for rows.Next() {
		var r UseRecord
		var kind string
		if err := rows.Scan(&r.Target, &r.TargetID, &r.Source, &r.SourceID, &kind, &r.Unit, &r.StartLine, &r.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan use: %w", err)
		}
		r.Kind = graph.RelationKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveDiagnostics(ctx context.Context, diags []diagnostic.Diagnostic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM diagnostics"); err != nil {
		return fmt.Errorf("failed to clear diagnostics: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diagnostics (unit, severity, message, start_pos, end_pos, line, col)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range diags {
		if _, err := stmt.ExecContext(ctx, d.Unit, d.Severity.String(), d.Message, int(d.Range.Start), int(d.Range.End), d.Line, d.Col); err != nil {
			return fmt.Errorf("failed to save diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadDiagnostics(ctx context.Context, unit string) ([]diagnostic.Diagnostic, error) {
	query := "SELECT unit, severity, message, start_pos, end_pos, line, col FROM diagnostics"
	var args []any
	if unit != "" {
		query += " WHERE unit = ?"
		args = append(args, unit)
	}
	query += " ORDER BY unit, start_pos, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []diagnostic.Diagnostic
	for rows.Next() {
		var d diagnostic.Diagnostic
		var severity string
		var start, end int
		if err := rows.Scan(&d.Unit, &severity, &d.Message, &start, &end, &d.Line, &d.Col); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		if d.Severity, err = diagnostic.ParseSeverity(severity); err != nil {
			return nil, err
		}
		d.Range = ast.Range{Start: ast.Pos(start), End: ast.Pos(end)}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveRun upserts run, assigning an ID when it has none.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, revision, started_at, finished_at, units, nodes, edges, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			revision=excluded.revision,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at,
			units=excluded.units,
			nodes=excluded.nodes,
			edges=excluded.edges,
			unresolved=excluded.unresolved
	`, run.ID.String(), run.Kind, run.Revision, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Units, run.Nodes, run.Edges, run.Unresolved)
	return err
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, revision, started_at, finished_at, units, nodes, edges, unresolved
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)

	var run Run
	var id, started, finished string
	err := row.Scan(&id, &run.Kind, &run.Revision, &started, &finished, &run.Units, &run.Nodes, &run.Edges, &run.Unresolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
