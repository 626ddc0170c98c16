package diagnostic

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ColorMode controls when ANSI color codes are used.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode accepts "auto", "always" and "never"; anything else is auto.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	}
	return ColorAuto
}

type palette struct {
	bold   string
	red    string
	yellow string
	cyan   string
	reset  string
}

var ansiPalette = palette{
	bold:   "\033[1m",
	red:    "\033[1;31m",
	yellow: "\033[1;33m",
	cyan:   "\033[1;36m",
	reset:  "\033[0m",
}

var noPalette = palette{}

func choosePalette(mode ColorMode, w *os.File) palette {
	switch mode {
	case ColorAlways:
		return ansiPalette
	case ColorNever:
		return noPalette
	}
	if os.Getenv("NO_COLOR") != "" || w == nil {
		return noPalette
	}
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return ansiPalette
	}
	return noPalette
}

func (p palette) severity(s Severity) string {
	switch s {
	case SeverityError:
		return p.red
	case SeverityWarning:
		return p.yellow
	default:
		return p.cyan
	}
}
