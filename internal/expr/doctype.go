package expr

import (
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// ParseType turns a doc-comment type such as "int", "Foo" or "int|null"
// into a Type. Alternatives that reduce to mixed are dropped; nothing left
// means mixed.
func (e *Evaluator) ParseType(s string, scope *symbols.Scope) *types.Type {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "|") {
		return e.parseSingle(s, scope)
	}
	var kept []*types.Type
	for _, part := range strings.Split(s, "|") {
		if t := e.parseSingle(part, scope); !t.IsMixed() {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return types.NewMixed()
	}
	return types.NewUnsure(kept...)
}

func (e *Evaluator) parseSingle(s string, scope *symbols.Scope) *types.Type {
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	if s == "" {
		return types.NewMixed()
	}
	if t := e.keyword(s, scope); t != nil {
		return t
	}
	if strings.HasSuffix(s, "[]") {
		return types.NewArray()
	}
	if d := last(e.classByString(s, scope, ast.NoPos)); d != nil {
		return classType(d)
	}
	return types.NewMixed()
}

func (e *Evaluator) keyword(s string, scope *symbols.Scope) *types.Type {
	switch strings.ToLower(s) {
	case "int", "integer":
		return types.NewInt()
	case "float", "double":
		return types.NewFloat()
	case "bool", "boolean", "true", "false":
		return types.NewBool()
	case "string":
		return types.NewString()
	case "mixed":
		return types.NewMixed()
	case "array":
		return types.NewArray()
	case "resource":
		return types.NewResource()
	case "null":
		return types.NewNull()
	case "void":
		return types.NewVoid()
	case "self", "this", "$this", "static":
		if d := scope.ClassOwner(); d != nil {
			return classType(d)
		}
		return types.NewMixed()
	case "object":
		if d := e.ix.FindClass(BaseObjectClass); d != nil {
			return classType(d)
		}
		return types.NewStructure("stdClass")
	}
	return nil
}
