package expr

import (
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Well-known class keys.
const (
	BaseObjectClass = "stdclass"
	IteratorClass   = "iterator"
)

// isVariable accepts instance declarations that are not class members.
func isVariable(d *symbols.Declaration) bool {
	return d.IsInstance() && !d.Member
}

func isParameter(d *symbols.Declaration) bool {
	return d.Kind == symbols.KindVariable && d.Parameter
}

// FindVariable resolves a variable name as of pos. Lookups stay inside the
// current scope and what it imports, so function bodies never see globals;
// namespace-level code may also search the enclosing scope. Parameters of
// directly imported function scopes and superglobals are the fallbacks.
func (e *Evaluator) FindVariable(name string, scope *symbols.Scope, pos ast.Pos) *symbols.Declaration {
	decls := scope.Find(name, pos, true, isVariable)
	if len(decls) == 0 && scope.Kind == symbols.ScopeNamespace {
		decls = scope.Find(name, pos, false, isVariable)
	}
	if len(decls) == 0 {
		for _, imp := range scope.Imports() {
			if imp.Scope.Kind != symbols.ScopeFunction {
				continue
			}
			if pos.IsValid() && imp.Pos.IsValid() && imp.Pos > pos {
				continue
			}
			if decls = imp.Scope.FindLocal(name, ast.NoPos, isParameter); len(decls) > 0 {
				break
			}
		}
	}
	if len(decls) == 0 {
		return e.ix.Superglobal(name)
	}
	latest := decls[0]
	for _, d := range decls[1:] {
		if d.Range.Start >= latest.Range.Start {
			latest = d
		}
	}
	return latest
}

// ThisClass returns the class $this denotes in scope: the owner of the
// enclosing non-static method body. Closure bodies inherit it.
func ThisClass(scope *symbols.Scope) *symbols.Declaration {
	for s := scope; s != nil; s = s.Parent {
		switch s.Kind {
		case symbols.ScopeOther:
			o := s.Owner
			if o == nil || o.Kind != symbols.KindFunction {
				continue
			}
			if !o.IsMethod() || o.Static || o.Context == nil {
				return nil
			}
			return o.Context.Owner
		case symbols.ScopeClass, symbols.ScopeGlobal, symbols.ScopeNamespace:
			return nil
		}
	}
	return nil
}

// ClassOf returns the class declaration a Structure type names.
func (e *Evaluator) ClassOf(t *types.Type) *symbols.Declaration {
	t = types.StripReference(t)
	if t.Kind() != types.KindStructure {
		return nil
	}
	return e.ix.FindClass(t.Key())
}

// classScope returns the member scope for a Structure type. A class whose
// declaration is not reachable through the index yet resolves to the class
// body being built around scope, when the names agree.
func (e *Evaluator) classScope(t *types.Type, scope *symbols.Scope) *symbols.Scope {
	t = types.StripReference(t)
	if t.Kind() != types.KindStructure {
		return nil
	}
	if d := e.ClassOf(t); d != nil && d.Internal != nil {
		return d.Internal
	}
	if c := scope.Enclosing(symbols.ScopeClass); c != nil && (c.Owner == nil || c.Owner.Qualified == t.Key()) {
		return c
	}
	return nil
}

func (e *Evaluator) relativeClass(word string, scope *symbols.Scope) *symbols.Declaration {
	owner := scope.ClassOwner()
	switch strings.ToLower(word) {
	case "self", "static":
		return owner
	case "parent":
		if owner == nil || owner.Parent == "" {
			return nil
		}
		return e.ix.FindClass(owner.Parent)
	}
	return nil
}

func (e *Evaluator) findAlias(name string, kind symbols.Kind, scope *symbols.Scope, pos ast.Pos) *symbols.Declaration {
	return last(scope.Find(symbols.KeyFor(symbols.KindAlias, name), pos, false, func(d *symbols.Declaration) bool {
		return d.Kind == symbols.KindAlias && d.AliasKind == kind
	}))
}

// lookup resolves a written name through namespace aliases, the current
// namespace and finally the global namespace.
func (e *Evaluator) lookup(parts []string, fq bool, kind symbols.Kind, scope *symbols.Scope, pos ast.Pos) []*symbols.Declaration {
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, `\`)
	var keys []string
	if fq {
		keys = []string{symbols.QualifiedKey(kind, "", joined)}
	} else {
		aliasKind := symbols.KindClass
		if len(parts) == 1 {
			aliasKind = kind
		}
		if a := e.findAlias(parts[0], aliasKind, scope, pos); a != nil {
			target := a.AliasOf
			if len(parts) > 1 {
				target += `\` + strings.Join(parts[1:], `\`)
			}
			keys = []string{symbols.QualifiedKey(kind, "", target)}
		} else {
			keys = []string{symbols.QualifiedKey(kind, scope.Namespace, joined)}
			if scope.Namespace != "" {
				keys = append(keys, symbols.QualifiedKey(kind, "", joined))
			}
		}
	}
	for _, key := range keys {
		if decls := e.ix.FindGlobal(kind, key); len(decls) > 0 {
			return decls
		}
	}
	return nil
}

// ResolveName resolves n as a declaration of kind without recording anything.
func (e *Evaluator) ResolveName(n *ast.Name, kind symbols.Kind, scope *symbols.Scope, pos ast.Pos) []*symbols.Declaration {
	if n == nil {
		return nil
	}
	if kind == symbols.KindClass && n.IsRelative() {
		return one(e.relativeClass(n.Parts[0].Name, scope))
	}
	parts := make([]string, len(n.Parts))
	for i, p := range n.Parts {
		parts[i] = p.Name
	}
	return e.lookup(parts, n.FullyQualified, kind, scope, pos)
}

// classByString resolves a class written as text, as in doc comments.
func (e *Evaluator) classByString(s string, scope *symbols.Scope, pos ast.Pos) []*symbols.Declaration {
	fq := strings.HasPrefix(s, `\`)
	s = strings.Trim(s, `\`)
	if s == "" {
		return nil
	}
	return e.lookup(strings.Split(s, `\`), fq, symbols.KindClass, scope, pos)
}

func (r *run) resolveQuiet(n *ast.Name, kind symbols.Kind, scope *symbols.Scope) []*symbols.Declaration {
	return r.e.ResolveName(n, kind, scope, r.pos(n))
}

// recordName reports n: every namespace segment against its growing prefix,
// then the last segment against decls. Only the last segment counts as
// unresolved.
func (r *run) recordName(n *ast.Name, kind symbols.Kind, scope *symbols.Scope, decls []*symbols.Declaration, report bool) {
	if len(n.Parts) == 0 {
		return
	}
	prefix := ""
	for i, p := range n.Parts[:len(n.Parts)-1] {
		var seg []*symbols.Declaration
		switch {
		case i > 0:
			prefix += `\` + p.Name
		case n.FullyQualified:
			prefix = p.Name
		default:
			if a := r.e.findAlias(p.Name, symbols.KindClass, scope, r.pos(n)); a != nil {
				prefix, seg = a.AliasOf, one(a)
			} else if scope.Namespace != "" {
				prefix = scope.Namespace + `\` + p.Name
			} else {
				prefix = p.Name
			}
		}
		if seg == nil {
			seg = r.e.ix.FindGlobal(symbols.KindNamespace, strings.ToLower(prefix))
		}
		if r.silent == 0 && r.e.hook != nil {
			r.e.hook(Ref{Node: p, Range: p.Rng, Name: prefix, Kind: symbols.KindNamespace, Decls: seg})
		}
	}
	r.emit(n.Last(), n.String(), kind, decls, report)
}

// Reference resolves a name written in a declaring position, such as a type
// hint, an extends list or a catch clause, and reports it through the hook
// like any name met during evaluation.
func (e *Evaluator) Reference(n *ast.Name, kind symbols.Kind, scope *symbols.Scope, report bool) Result {
	if n == nil || len(n.Parts) == 0 || scope == nil {
		return Result{}
	}
	r := &run{e: e, cursor: ast.NoPos}
	var decls []*symbols.Declaration
	if kind == symbols.KindClass && n.IsRelative() {
		decls = one(e.relativeClass(n.Parts[0].Name, scope))
	} else {
		decls = r.resolveQuiet(n, kind, scope)
		r.recordName(n, kind, scope, decls, report)
	}
	res := Result{Decls: decls, HadUnresolved: r.unresolved}
	if d := last(decls); d != nil {
		res.Type = d.Type
		if kind == symbols.KindClass {
			res.Type = classType(d)
		}
	}
	return res
}
