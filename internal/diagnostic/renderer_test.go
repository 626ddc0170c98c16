package diagnostic

import (
	"bytes"
	"testing"

	"phpsema/internal/ast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	diags := []Diagnostic{
		{Severity: SeverityHint, Message: "Declaration not found: Foo", Unit: "b.php", Range: ast.Range{Start: 10, End: 13}, Line: 2, Col: 4},
		{Severity: SeverityError, Message: "Cannot re-assign $this.", Unit: "a.php", Range: ast.Range{Start: 30, End: 35}, Line: 3, Col: 1},
		{Severity: SeverityHint, Message: "Usage of foo is deprecated.", Unit: "a.php", Range: ast.Range{Start: 5, End: 8}, Line: 1, Col: 6},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ColorNever).Render(diags))

	want := "a.php:1:6: hint: Usage of foo is deprecated.\n" +
		"a.php:3:1: error: Cannot re-assign $this.\n" +
		"b.php:2:4: hint: Declaration not found: Foo\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderer_ColorAlways(t *testing.T) {
	var buf bytes.Buffer
	d := Diagnostic{Severity: SeverityError, Message: "x", Unit: "a.php", Line: 1, Col: 1}
	require.NoError(t, NewRenderer(&buf, ColorAlways).Render([]Diagnostic{d}))
	assert.Contains(t, buf.String(), "\033[1;31merror\033[0m")
}

func TestDiagnostic_Locate(t *testing.T) {
	f := ast.NewFile("a.php", []byte("<?php\nfoo();\n"), nil)
	d := Diagnostic{Unit: "a.php", Range: ast.Range{Start: 6, End: 9}}
	d.Locate(f)
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, 1, d.Col)
	assert.Equal(t, "a.php:2:1: error: ", d.String())
}

func TestParse(t *testing.T) {
	s, err := ParseSeverity("hint")
	require.NoError(t, err)
	assert.Equal(t, SeverityHint, s)
	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
	assert.Equal(t, ColorNever, ParseColorMode("never"))
	assert.Equal(t, ColorAuto, ParseColorMode("bogus"))
	assert.Equal(t, 2, Count([]Diagnostic{{Severity: SeverityHint}, {Severity: SeverityHint}})[SeverityHint])
}
