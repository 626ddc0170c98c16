package symbols

import (
	"sort"

	"github.com/google/uuid"

	"phpsema/internal/ast"
	"phpsema/internal/diagnostic"
	"phpsema/internal/types"
)

// Use is one reference from a source range to a declaration. Decl is nil
// when the name could not be resolved.
type Use struct {
	Range ast.Range
	Name  string
	Kind  Kind
	Decl  *Declaration
}

// Unit is the analysis state of one source file: its scope tree, the
// declarations it owns, side tables keyed by syntax node, uses and
// diagnostics. Everything is rebuilt when the file is analyzed again.
type Unit struct {
	Path     string
	Revision uuid.UUID
	File     *ast.File
	Top      *Scope
	// Prelude marks the built-in declarations unit.
	Prelude bool

	index *Index

	decls     []*Declaration
	scopes    map[ast.Node]*Scope
	nodeDecls map[ast.Node]*Declaration
	nodeTypes map[ast.Node]*types.Type
	uses      []Use
	diags     []diagnostic.Diagnostic
}

func newUnit(ix *Index, path string, file *ast.File) *Unit {
	u := &Unit{
		Path:      path,
		Revision:  uuid.New(),
		File:      file,
		index:     ix,
		scopes:    map[ast.Node]*Scope{},
		nodeDecls: map[ast.Node]*Declaration{},
		nodeTypes: map[ast.Node]*types.Type{},
	}
	var rng ast.Range
	if file != nil {
		rng = file.Span()
	}
	u.Top = &Scope{Kind: ScopeGlobal, Range: rng, Unit: u}
	return u
}

func (u *Unit) Index() *Index {
	return u.index
}

// adopt gives d its ID and, for declarations visible across units,
// registers it with the index.
func (u *Unit) adopt(d *Declaration) {
	u.decls = append(u.decls, d)
	if u.index == nil {
		return
	}
	d.id = u.index.nextID()
	if globallyVisible(d) {
		u.index.register(d)
	}
}

func globallyVisible(d *Declaration) bool {
	if d.Context == nil || d.Member || d.Parameter {
		return false
	}
	switch d.Context.Kind {
	case ScopeGlobal, ScopeNamespace:
	default:
		return false
	}
	switch d.Kind {
	case KindClass, KindFunction, KindConstant, KindNamespace, KindVariable:
		return true
	}
	return false
}

// Declarations returns every declaration of the unit in creation order.
func (u *Unit) Declarations() []*Declaration {
	return u.decls
}

// BindScope records the scope opened by n (class body, function parameters,
// namespace body, closure).
func (u *Unit) BindScope(n ast.Node, s *Scope) { u.scopes[n] = s }

func (u *Unit) ScopeOf(n ast.Node) *Scope { return u.scopes[n] }

// BindDecl records the declaration introduced by n.
func (u *Unit) BindDecl(n ast.Node, d *Declaration) { u.nodeDecls[n] = d }

func (u *Unit) DeclOf(n ast.Node) *Declaration { return u.nodeDecls[n] }

// SetNodeType caches the type computed for n, such as a closure's function type.
func (u *Unit) SetNodeType(n ast.Node, t *types.Type) { u.nodeTypes[n] = t }

func (u *Unit) NodeType(n ast.Node) *types.Type { return u.nodeTypes[n] }

func (u *Unit) AddUse(use Use) {
	u.uses = append(u.uses, use)
}

// Uses returns the recorded uses ordered by position.
func (u *Unit) Uses() []Use {
	out := make([]Use, len(u.uses))
	copy(out, u.uses)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// UsesOf returns the uses in this unit that resolve to d.
func (u *Unit) UsesOf(d *Declaration) []Use {
	var out []Use
	for _, use := range u.Uses() {
		if use.Decl == d {
			out = append(out, use)
		}
	}
	return out
}

// ResetUses drops the recorded uses so the use pass can run again.
func (u *Unit) ResetUses() {
	u.uses = nil
}

// Report records a diagnostic at rng.
func (u *Unit) Report(sev diagnostic.Severity, rng ast.Range, msg string) {
	d := diagnostic.Diagnostic{Severity: sev, Message: msg, Unit: u.Path, Range: rng}
	if u.File != nil {
		d.Locate(u.File)
	}
	u.diags = append(u.diags, d)
}

func (u *Unit) Diagnostics() []diagnostic.Diagnostic {
	return u.diags
}

// ResetDiagnostics drops diagnostics of the given severity.
func (u *Unit) ResetDiagnostics(sev diagnostic.Severity) {
	kept := u.diags[:0]
	for _, d := range u.diags {
		if d.Severity != sev {
			kept = append(kept, d)
		}
	}
	u.diags = kept
}

// ScopeAt returns the innermost scope containing pos.
func (u *Unit) ScopeAt(pos ast.Pos) *Scope {
	return u.Top.Innermost(pos)
}

// FindDeclaration returns the declaration of the given kind and key whose
// name range starts at start, if any.
func (u *Unit) FindDeclaration(kind Kind, key string, start ast.Pos) *Declaration {
	for _, d := range u.decls {
		if d.Kind == kind && d.Key == key && d.Range.Start == start {
			return d
		}
	}
	return nil
}
