// Package types is the closed type model the semantic passes attach to
// declarations and expressions. Type is a sum type: Kind selects which of
// the fields are meaningful, and Equal/Hash compare the whole union
// structurally.
package types

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type Kind uint8

const (
	KindPrimitive Kind = iota + 1
	KindStructure
	KindFunction
	KindReference
	KindUnsure
	KindIndexed
)

type Primitive uint8

const (
	Int Primitive = iota + 1
	Float
	Bool
	String
	Array
	Null
	Void
	Mixed
	// Resource is the language-specific extension kind.
	Resource
)

var primitiveNames = map[Primitive]string{
	Int:      "int",
	Float:    "float",
	Bool:     "bool",
	String:   "string",
	Array:    "array",
	Null:     "null",
	Void:     "void",
	Mixed:    "mixed",
	Resource: "resource",
}

func (p Primitive) String() string {
	if s, ok := primitiveNames[p]; ok {
		return s
	}
	return "unknown"
}

// Type values are treated as immutable once attached to a declaration or
// node. Function types are the exception while the type-builder has them
// open: AddArgument and SetReturn fill them in place.
type Type struct {
	kind Kind

	prim     Primitive
	constant bool

	// Structure: key is the lower-cased qualified class name, name keeps
	// the declared spelling.
	key  string
	name string

	args []*Type
	ret  *Type

	// Reference base.
	base *Type

	// Unsure members or Indexed elements.
	members []*Type
}

func NewPrimitive(p Primitive) *Type {
	return &Type{kind: KindPrimitive, prim: p}
}

func NewInt() *Type      { return NewPrimitive(Int) }
func NewFloat() *Type    { return NewPrimitive(Float) }
func NewBool() *Type     { return NewPrimitive(Bool) }
func NewString() *Type   { return NewPrimitive(String) }
func NewArray() *Type    { return NewPrimitive(Array) }
func NewNull() *Type     { return NewPrimitive(Null) }
func NewVoid() *Type     { return NewPrimitive(Void) }
func NewMixed() *Type    { return NewPrimitive(Mixed) }
func NewResource() *Type { return NewPrimitive(Resource) }

// NewStructure names a class-like declaration. The identity is the
// case-insensitive qualified name.
func NewStructure(qualifiedName string) *Type {
	return &Type{kind: KindStructure, key: strings.ToLower(qualifiedName), name: qualifiedName}
}

// NewFunction builds a function type. A nil return type stays open until
// SetReturn is called.
func NewFunction(args []*Type, ret *Type) *Type {
	return &Type{kind: KindFunction, args: append([]*Type(nil), args...), ret: ret}
}

func NewReference(base *Type) *Type {
	return &Type{kind: KindReference, base: base}
}

func NewIndexed(elems ...*Type) *Type {
	return &Type{kind: KindIndexed, members: append([]*Type(nil), elems...)}
}

func (t *Type) Kind() Kind {
	if t == nil {
		return 0
	}
	return t.kind
}

func (t *Type) Primitive() Primitive {
	if t == nil || t.kind != KindPrimitive {
		return 0
	}
	return t.prim
}

// Is reports whether t is the primitive p.
func (t *Type) Is(p Primitive) bool {
	return t != nil && t.kind == KindPrimitive && t.prim == p
}

func (t *Type) IsMixed() bool { return t.Is(Mixed) }

func (t *Type) IsConstant() bool { return t != nil && t.constant }

// WithConstant returns a copy of t carrying the constant modifier.
func (t *Type) WithConstant() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.constant = true
	return &c
}

// Key is the case-insensitive identity of a Structure.
func (t *Type) Key() string {
	if t == nil {
		return ""
	}
	return t.key
}

// Name is the display name of a Structure.
func (t *Type) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

func (t *Type) Args() []*Type {
	if t == nil {
		return nil
	}
	return t.args
}

func (t *Type) Return() *Type {
	if t == nil {
		return nil
	}
	return t.ret
}

// AddArgument appends a parameter type to an open function type.
func (t *Type) AddArgument(a *Type) {
	if t.Kind() != KindFunction {
		panic("types: AddArgument on " + t.String())
	}
	t.args = append(t.args, a)
}

// SetReturn replaces the return type of an open function type.
func (t *Type) SetReturn(r *Type) {
	if t.Kind() != KindFunction {
		panic("types: SetReturn on " + t.String())
	}
	t.ret = r
}

func (t *Type) Base() *Type {
	if t == nil {
		return nil
	}
	return t.base
}

// Members returns the alternatives of an Unsure or the elements of an Indexed type.
func (t *Type) Members() []*Type {
	if t == nil {
		return nil
	}
	return t.members
}

// StripReference unwraps one Reference layer.
func StripReference(t *Type) *Type {
	if t.Kind() == KindReference {
		return t.base
	}
	return t
}

// Equal compares a and b structurally. The constant modifier is part of the
// identity; Unsure members compare as sets.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind || a.constant != b.constant {
		return false
	}
	switch a.kind {
	case KindPrimitive:
		return a.prim == b.prim
	case KindStructure:
		return a.key == b.key
	case KindFunction:
		if len(a.args) != len(b.args) || !Equal(a.ret, b.ret) {
			return false
		}
		for i := range a.args {
			if !Equal(a.args[i], b.args[i]) {
				return false
			}
		}
		return true
	case KindReference:
		return Equal(a.base, b.base)
	case KindUnsure:
		if len(a.members) != len(b.members) || a.Hash() != b.Hash() {
			return false
		}
		for _, m := range a.members {
			if !contains(b.members, m) {
				return false
			}
		}
		return true
	case KindIndexed:
		if len(a.members) != len(b.members) {
			return false
		}
		for i := range a.members {
			if !Equal(a.members[i], b.members[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Hash is consistent with Equal.
func (t *Type) Hash() uint64 {
	d := xxhash.New()
	t.hashInto(d)
	return d.Sum64()
}

func (t *Type) hashInto(d *xxhash.Digest) {
	if t == nil {
		_, _ = d.WriteString("nil;")
		return
	}
	_, _ = d.WriteString(strconv.Itoa(int(t.kind)))
	if t.constant {
		_, _ = d.WriteString("c")
	}
	switch t.kind {
	case KindPrimitive:
		_, _ = d.WriteString(t.prim.String())
	case KindStructure:
		_, _ = d.WriteString(t.key)
	case KindFunction:
		for _, a := range t.args {
			a.hashInto(d)
		}
		_, _ = d.WriteString("->")
		t.ret.hashInto(d)
	case KindReference:
		t.base.hashInto(d)
	case KindUnsure:
		// order-independent
		hs := make([]uint64, len(t.members))
		for i, m := range t.members {
			hs[i] = m.Hash()
		}
		sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
		for _, h := range hs {
			_, _ = d.WriteString(strconv.FormatUint(h, 16))
		}
	case KindIndexed:
		for _, m := range t.members {
			m.hashInto(d)
		}
	}
	_, _ = d.WriteString(";")
}

func contains(list []*Type, t *Type) bool {
	for _, m := range list {
		if Equal(m, t) {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<none>"
	}
	var s string
	switch t.kind {
	case KindPrimitive:
		s = t.prim.String()
	case KindStructure:
		s = t.name
	case KindFunction:
		args := make([]string, len(t.args))
		for i, a := range t.args {
			args[i] = a.String()
		}
		s = "function(" + strings.Join(args, ", ") + ")"
		if t.ret != nil {
			s += ": " + t.ret.String()
		}
	case KindReference:
		s = "&" + t.base.String()
	case KindUnsure:
		parts := make([]string, len(t.members))
		for i, m := range t.members {
			parts[i] = m.String()
		}
		s = strings.Join(parts, "|")
	case KindIndexed:
		parts := make([]string, len(t.members))
		for i, m := range t.members {
			parts[i] = m.String()
		}
		s = "array(" + strings.Join(parts, ", ") + ")"
	}
	if t.constant {
		s = "const " + s
	}
	return s
}
