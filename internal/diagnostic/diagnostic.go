// Package diagnostic holds the problems reported by the analysis passes and
// renders them for the command line.
package diagnostic

import (
	"fmt"

	"phpsema/internal/ast"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// ParseSeverity is the inverse of String.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "error":
		return SeverityError, nil
	case "warning":
		return SeverityWarning, nil
	case "hint":
		return SeverityHint, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Diagnostic is one problem in a unit. Line and Col are 1-based and filled
// in once the unit's line table is known; Range is always set.
type Diagnostic struct {
	Severity Severity
	Message  string
	Unit     string
	Range    ast.Range
	Line     int
	Col      int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Unit, d.Line, d.Col, d.Severity, d.Message)
}

// Locate fills Line and Col from f.
func (d *Diagnostic) Locate(f *ast.File) {
	if f == nil {
		return
	}
	d.Line, d.Col = f.Position(d.Range.Start)
}
