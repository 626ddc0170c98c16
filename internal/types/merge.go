package types

// Union combines a and b. Unsure operands are flattened, duplicates are
// dropped, and mixed absorbs everything. A single distinct member is
// returned as is, so an Unsure always has at least two members.
func Union(a, b *Type) *Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.IsMixed() || b.IsMixed() {
		return NewMixed()
	}
	var set typeSet
	for _, t := range []*Type{a, b} {
		if t.kind == KindUnsure {
			for _, m := range t.members {
				set.add(m)
			}
			continue
		}
		set.add(t)
	}
	if len(set.list) == 1 {
		return set.list[0]
	}
	return &Type{kind: KindUnsure, members: set.list}
}

// typeSet keeps distinct types in insertion order. Hash buckets the
// candidates and Equal settles collisions.
type typeSet struct {
	byHash map[uint64][]*Type
	list   []*Type
}

func (s *typeSet) add(t *Type) bool {
	if s.byHash == nil {
		s.byHash = make(map[uint64][]*Type)
	}
	h := t.Hash()
	if contains(s.byHash[h], t) {
		return false
	}
	s.byHash[h] = append(s.byHash[h], t)
	s.list = append(s.list, t)
	return true
}

// NewUnsure folds ts with Union.
func NewUnsure(ts ...*Type) *Type {
	var out *Type
	for _, t := range ts {
		out = Union(out, t)
	}
	return out
}

// MergeReturn folds the type of one more return statement into the running
// return type of a function. Reference wrappers are dropped, the first value
// is taken outright, an identical value changes nothing, and anything else
// widens to a union. A running mixed absorbs later values.
func MergeReturn(cur, next *Type) *Type {
	next = StripReference(next)
	if next == nil {
		return cur
	}
	if cur == nil || Equal(cur, next) {
		return next
	}
	return Union(cur, next)
}

// MergeAssigned folds a newly assigned type into a variable declaration's
// existing type. A mixed existing type is replaced; a reference keeps its
// wrapper and widens its base.
func MergeAssigned(existing, next *Type) *Type {
	if existing == nil {
		return next
	}
	if next == nil || Equal(existing, next) {
		return existing
	}
	if existing.kind == KindReference {
		if existing.base.IsMixed() {
			return NewReference(next)
		}
		return NewReference(Union(existing.base, next))
	}
	if existing.IsMixed() {
		return next
	}
	return Union(existing, next)
}
