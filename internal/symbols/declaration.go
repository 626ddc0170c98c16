// Package symbols is the declaration model: declarations, the scope tree
// each unit owns, the uses recorded against declarations, and the Index
// that ties units together.
package symbols

import (
	"fmt"
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/types"
)

type Kind int

const (
	KindVariable Kind = iota + 1
	KindFunction
	KindClass
	KindNamespace
	KindConstant
	// KindAlias is a namespace import (use Foo\Bar as Baz).
	KindAlias
	// KindImport is the virtual declaration of an included file.
	KindImport
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindNamespace:
		return "namespace"
	case KindConstant:
		return "constant"
	case KindAlias:
		return "alias"
	case KindImport:
		return "import"
	}
	return "unknown"
}

// CaseInsensitive reports whether names of kind k are looked up without regard to case.
func (k Kind) CaseInsensitive() bool {
	switch k {
	case KindFunction, KindClass, KindNamespace, KindAlias:
		return true
	}
	return false
}

// KeyFor returns the lookup key of name for kind k.
func KeyFor(k Kind, name string) string {
	if k.CaseInsensitive() {
		return strings.ToLower(name)
	}
	return name
}

// QualifiedKey joins a namespace and a possibly qualified name into the key
// used by the Index. The namespace part is always case-insensitive.
func QualifiedKey(k Kind, namespace, name string) string {
	name = strings.TrimPrefix(name, `\`)
	namespace = strings.Trim(namespace, `\`)
	if i := strings.LastIndex(name, `\`); i >= 0 {
		if namespace != "" {
			namespace += `\`
		}
		namespace += name[:i]
		name = name[i+1:]
	}
	key := KeyFor(k, name)
	if namespace == "" {
		return key
	}
	return strings.ToLower(namespace) + `\` + key
}

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

// ParseVisibility maps a modifier keyword to a Visibility; unknown text is public.
func ParseVisibility(s string) Visibility {
	switch strings.ToLower(s) {
	case "protected":
		return Protected
	case "private":
		return Private
	}
	return Public
}

type ID uint64

// Declaration is a named, positioned entity. Identity is the qualified key,
// the range and the kind; Name keeps the declared spelling for display while
// Key is what lookups compare against.
type Declaration struct {
	id ID

	Name      string
	Key       string
	Qualified string
	Kind      Kind
	ClassKind ast.ClassKind
	Range     ast.Range

	Unit    *Unit
	Context *Scope
	// Internal is the child scope owned by classes and functions: the class
	// body for classes, the parameter scope for functions.
	Internal *Scope

	Type       *types.Type
	Visibility Visibility
	Doc        string

	Static      bool
	Abstract    bool
	Final       bool
	Member      bool
	Parameter   bool
	Superglobal bool

	// Bases lists the qualified keys of the parent class and of every
	// implemented or extended interface. Parent repeats the class parent.
	Bases  []string
	Parent string
	// Target is the declaration an alias variable stands for (global $x,
	// closure use variables).
	Target *Declaration
	// AliasOf is the qualified name a namespace alias stands for, and
	// AliasKind the kind it imports (class, function or constant).
	AliasOf   string
	AliasKind Kind
	// File is the path named by an import declaration.
	File string
}

func (d *Declaration) ID() ID {
	return d.id
}

// IsMethod reports whether d is a function declared in a class.
func (d *Declaration) IsMethod() bool {
	return d.Kind == KindFunction && d.Member
}

// IsInstance reports whether d denotes a value: variables, parameters and members.
func (d *Declaration) IsInstance() bool {
	return d.Kind == KindVariable
}

// Identity is a stable textual identity: kind, qualified key and start offset.
func (d *Declaration) Identity() string {
	return fmt.Sprintf("%s:%s@%d", d.Kind, d.Qualified, d.Range.Start)
}

// DisplayName is the case-preserving, qualified name shown to users.
func (d *Declaration) DisplayName() string {
	switch {
	case d.Kind == KindVariable && !d.Member:
		return "$" + d.Name
	case d.Member && d.Context != nil && d.Context.Owner != nil:
		name := d.Name
		if d.Kind == KindVariable {
			name = "$" + name
		}
		return d.Context.Owner.DisplayName() + "::" + name
	case d.Context != nil && d.Context.Namespace != "":
		return d.Context.Namespace + `\` + d.Name
	}
	return d.Name
}

func (d *Declaration) String() string {
	if d.Type != nil {
		return fmt.Sprintf("%s %s: %s", d.Kind, d.DisplayName(), d.Type)
	}
	return fmt.Sprintf("%s %s", d.Kind, d.DisplayName())
}
