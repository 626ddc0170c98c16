package symbols

import (
	"sort"
	"sync"
	"sync/atomic"

	"phpsema/internal/ast"
)

// Index is the process-wide symbol store. It is created once and shared by
// every analysis pass.
//
// Two locks guard it. The embedded pass lock is taken by callers for the
// duration of a pass: writers (declaration building, type building) take it
// exclusively, readers (expression evaluation, use recording) share it. The
// internal lock protects the unit table and the global declaration table so
// single operations are safe on their own.
type Index struct {
	pass sync.RWMutex

	mu      sync.RWMutex
	units   map[string]*Unit
	globals map[Kind]map[string][]*Declaration
	ids     atomic.Uint64
	closed  bool
}

func NewIndex() *Index {
	return &Index{
		units:   map[string]*Unit{},
		globals: map[Kind]map[string][]*Declaration{},
	}
}

func (ix *Index) Lock()    { ix.pass.Lock() }
func (ix *Index) Unlock()  { ix.pass.Unlock() }
func (ix *Index) RLock()   { ix.pass.RLock() }
func (ix *Index) RUnlock() { ix.pass.RUnlock() }

func (ix *Index) nextID() ID {
	return ID(ix.ids.Add(1))
}

// NewUnit creates a fresh unit for path, dropping whatever the index held
// for it before.
func (ix *Index) NewUnit(path string, file *ast.File) *Unit {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		panic("symbols: use of closed index")
	}
	if old, ok := ix.units[path]; ok {
		ix.unregisterLocked(old)
	}
	u := newUnit(ix, path, file)
	ix.units[path] = u
	ix.mu.Unlock()
	return u
}

// Unit returns the unit for path, or nil.
func (ix *Index) Unit(path string) *Unit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.units[path]
}

// Units returns every unit ordered by path.
func (ix *Index) Units() []*Unit {
	ix.mu.RLock()
	out := make([]*Unit, 0, len(ix.units))
	for _, u := range ix.units {
		out = append(out, u)
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ClearUnit removes the unit for path and all declarations it registered.
func (ix *Index) ClearUnit(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if u, ok := ix.units[path]; ok {
		ix.unregisterLocked(u)
		delete(ix.units, path)
	}
}

// Close tears the index down. Any further NewUnit call panics.
func (ix *Index) Close() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.units = map[string]*Unit{}
	ix.globals = map[Kind]map[string][]*Declaration{}
	ix.closed = true
}

func (ix *Index) register(d *Declaration) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	byKey := ix.globals[d.Kind]
	if byKey == nil {
		byKey = map[string][]*Declaration{}
		ix.globals[d.Kind] = byKey
	}
	byKey[d.Qualified] = append(byKey[d.Qualified], d)
}

func (ix *Index) unregisterLocked(u *Unit) {
	for kind, byKey := range ix.globals {
		for key, decls := range byKey {
			kept := decls[:0]
			for _, d := range decls {
				if d.Unit != u {
					kept = append(kept, d)
				}
			}
			if len(kept) == 0 {
				delete(byKey, key)
			} else {
				byKey[key] = kept
			}
		}
		if len(byKey) == 0 {
			delete(ix.globals, kind)
		}
	}
}

// FindGlobal returns the unit-level declarations of kind with the given
// qualified key, across all units.
func (ix *Index) FindGlobal(kind Kind, qualified string) []*Declaration {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	decls := ix.globals[kind][qualified]
	out := make([]*Declaration, len(decls))
	copy(out, decls)
	return out
}

// FindClass returns the canonical class declaration for a qualified key:
// the last one registered.
func (ix *Index) FindClass(qualified string) *Declaration {
	decls := ix.FindGlobal(KindClass, qualified)
	if len(decls) == 0 {
		return nil
	}
	return decls[len(decls)-1]
}

// Superglobal returns the superglobal variable named name, if one is declared.
func (ix *Index) Superglobal(name string) *Declaration {
	decls := ix.FindGlobal(KindVariable, name)
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].Superglobal {
			return decls[i]
		}
	}
	return nil
}

// IsSubclass reports whether class derives from the class or interface with
// the qualified key base, directly or transitively. PHP inheritance is
// always public.
func (ix *Index) IsSubclass(class *Declaration, base string) bool {
	return ix.isSubclass(class, base, map[*Declaration]bool{})
}

func (ix *Index) isSubclass(class *Declaration, base string, seen map[*Declaration]bool) bool {
	if class == nil || seen[class] {
		return false
	}
	seen[class] = true
	for _, b := range class.Bases {
		if b == base {
			return true
		}
		for _, parent := range ix.FindGlobal(KindClass, b) {
			if ix.isSubclass(parent, base, seen) {
				return true
			}
		}
	}
	return false
}
