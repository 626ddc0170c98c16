package symbols

import (
	"phpsema/internal/ast"
)

type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota + 1
	ScopeNamespace
	ScopeClass
	// ScopeFunction holds the parameters of a function or closure.
	ScopeFunction
	// ScopeOther is a function body or a closure's lexical variable list.
	ScopeOther
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeNamespace:
		return "namespace"
	case ScopeClass:
		return "class"
	case ScopeFunction:
		return "function"
	case ScopeOther:
		return "other"
	}
	return "unknown"
}

// Import makes the declarations of Scope visible from Pos on.
type Import struct {
	Scope *Scope
	Pos   ast.Pos
}

// Filter narrows lookups.
type Filter func(*Declaration) bool

// OfKind matches declarations of kind k.
func OfKind(k Kind) Filter {
	return func(d *Declaration) bool { return d.Kind == k }
}

// Scope is a node of a unit's scope tree. Declaration order is preserved
// because visibility depends on it.
type Scope struct {
	Kind  ScopeKind
	Range ast.Range
	// Namespace is the display form of the enclosing namespace, "" for global.
	Namespace string

	Parent *Scope
	Owner  *Declaration
	Unit   *Unit

	decls    []*Declaration
	imports  []Import
	children []*Scope
}

// NewChild opens a nested scope. Children inherit the namespace.
func (s *Scope) NewChild(kind ScopeKind, rng ast.Range) *Scope {
	c := &Scope{Kind: kind, Range: rng, Namespace: s.Namespace, Parent: s, Unit: s.Unit}
	s.children = append(s.children, c)
	return c
}

func (s *Scope) Declarations() []*Declaration { return s.decls }
func (s *Scope) Imports() []Import            { return s.imports }
func (s *Scope) Children() []*Scope           { return s.children }

// AddImport makes target's declarations visible from pos on.
func (s *Scope) AddImport(target *Scope, pos ast.Pos) {
	if target == nil || target == s {
		return
	}
	for _, imp := range s.imports {
		if imp.Scope == target {
			return
		}
	}
	s.imports = append(s.imports, Import{Scope: target, Pos: pos})
}

// Top returns the unit's root scope.
func (s *Scope) Top() *Scope {
	for s.Parent != nil {
		s = s.Parent
	}
	return s
}

// Declare appends d to the scope, assigns its identity and registers it with
// the Index when it is visible across units.
func (s *Scope) Declare(d *Declaration) *Declaration {
	d.Context = s
	d.Unit = s.Unit
	if d.Key == "" {
		d.Key = KeyFor(d.Kind, d.Name)
	}
	if d.Qualified == "" {
		d.Qualified = d.Key
	}
	s.decls = append(s.decls, d)
	if s.Unit != nil {
		s.Unit.adopt(d)
	}
	return d
}

// FindLocal returns the declarations of this scope only whose key matches
// and that start at or before pos. NoPos disables the position check.
func (s *Scope) FindLocal(key string, pos ast.Pos, filter Filter) []*Declaration {
	var out []*Declaration
	for _, d := range s.decls {
		if d.Key != key {
			continue
		}
		if pos.IsValid() && d.Range.Start > pos {
			continue
		}
		if filter != nil && !filter(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Find looks key up in this scope, then in imported scopes visible at pos,
// then, unless localOnly is set, in the parent chain. Closer matches shadow
// farther ones: the first level that yields anything wins.
func (s *Scope) Find(key string, pos ast.Pos, localOnly bool, filter Filter) []*Declaration {
	return s.find(key, pos, localOnly, filter, map[*Scope]bool{})
}

func (s *Scope) find(key string, pos ast.Pos, localOnly bool, filter Filter, seen map[*Scope]bool) []*Declaration {
	if s == nil || seen[s] {
		return nil
	}
	seen[s] = true

	if out := s.FindLocal(key, pos, filter); len(out) > 0 {
		return out
	}
	if out := s.findImported(key, pos, filter, seen); len(out) > 0 {
		return out
	}
	if localOnly || s.Parent == nil {
		return nil
	}
	return s.Parent.find(key, pos, false, filter, seen)
}

func (s *Scope) findImported(key string, pos ast.Pos, filter Filter, seen map[*Scope]bool) []*Declaration {
	var out []*Declaration
	for _, imp := range s.imports {
		if pos.IsValid() && imp.Pos.IsValid() && imp.Pos > pos {
			continue
		}
		out = append(out, imp.Scope.find(key, ast.NoPos, true, filter, seen)...)
	}
	return out
}

// Enclosing walks outwards from s and returns the first scope of kind k.
func (s *Scope) Enclosing(k ScopeKind) *Scope {
	for c := s; c != nil; c = c.Parent {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// ClassOwner returns the class declaration whose body contains s, if any.
func (s *Scope) ClassOwner() *Declaration {
	if c := s.Enclosing(ScopeClass); c != nil {
		return c.Owner
	}
	return nil
}

// Innermost returns the deepest scope under s whose range contains pos.
func (s *Scope) Innermost(pos ast.Pos) *Scope {
	for _, c := range s.children {
		if c.Range.Contains(pos) {
			return c.Innermost(pos)
		}
	}
	return s
}
