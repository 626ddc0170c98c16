// Package ast is the syntax tree the semantic passes run over. It is produced
// by the extractor from the tree-sitter PHP grammar and is independent of it.
package ast

import "sort"

// Pos is a byte offset into a unit's source.
type Pos int

// NoPos marks an absent position. Lookups given NoPos ignore visibility order.
const NoPos Pos = -1

func (p Pos) IsValid() bool { return p >= 0 }

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

func (r Range) IsValid() bool { return r.Start.IsValid() && r.End >= r.Start }

// Contains reports whether p lies inside r. The end offset is included so a
// cursor placed right after a token still belongs to it.
func (r Range) Contains(p Pos) bool { return p >= r.Start && p <= r.End }

// Cover returns the smallest range spanning both r and o.
func (r Range) Cover(o Range) Range {
	if !r.IsValid() {
		return o
	}
	if !o.IsValid() {
		return r
	}
	out := r
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// Node is implemented by every tree node.
type Node interface {
	Span() Range
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement or declaration node.
type Stmt interface {
	Node
	stmtNode()
}

// File is the root of one unit.
type File struct {
	Path   string
	Src    []byte
	Stmts  []Stmt
	// Errors are the ranges the parser could not make sense of.
	Errors []Range

	lines []int
}

// NewFile builds a File and indexes line starts for Position.
func NewFile(path string, src []byte, stmts []Stmt) *File {
	f := &File{Path: path, Src: src, Stmts: stmts, lines: []int{0}}
	for i, c := range src {
		if c == '\n' {
			f.lines = append(f.lines, i+1)
		}
	}
	return f
}

func (f *File) Span() Range {
	return Range{Start: 0, End: Pos(len(f.Src))}
}

// Position converts an offset to a 1-based line and column.
func (f *File) Position(p Pos) (line, col int) {
	if !p.IsValid() || len(f.lines) == 0 {
		return 0, 0
	}
	i := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > int(p) }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, int(p) - f.lines[i] + 1
}

// Offset converts a 1-based line and column back to an offset.
func (f *File) Offset(line, col int) Pos {
	if line < 1 || line > len(f.lines) || col < 1 {
		return NoPos
	}
	return Pos(f.lines[line-1] + col - 1)
}

// Text returns the source covered by r.
func (f *File) Text(r Range) string {
	if !r.IsValid() || int(r.End) > len(f.Src) {
		return ""
	}
	return string(f.Src[r.Start:r.End])
}
