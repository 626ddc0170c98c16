package diagnostic

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Renderer writes diagnostics one per line, grouped by unit and ordered by
// position.
type Renderer struct {
	w   io.Writer
	pal palette
}

func NewRenderer(w io.Writer, mode ColorMode) *Renderer {
	f, _ := w.(*os.File)
	return &Renderer{w: w, pal: choosePalette(mode, f)}
}

func (r *Renderer) Render(diags []Diagnostic) error {
	sorted := append([]Diagnostic(nil), diags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Unit != sorted[j].Unit {
			return sorted[i].Unit < sorted[j].Unit
		}
		return sorted[i].Range.Start < sorted[j].Range.Start
	})
	for _, d := range sorted {
		_, err := fmt.Fprintf(r.w, "%s%s:%d:%d:%s %s%s%s: %s\n",
			r.pal.bold, d.Unit, d.Line, d.Col, r.pal.reset,
			r.pal.severity(d.Severity), d.Severity, r.pal.reset,
			d.Message)
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of diagnostics per severity.
func Count(diags []Diagnostic) map[Severity]int {
	out := make(map[Severity]int)
	for _, d := range diags {
		out[d.Severity]++
	}
	return out
}
