// Package scope implements the hierarchical key/value execution context.
//
// A benchmark owns the root scope. Each workload gets a child scope when it is
// scheduled and each parallel task slot gets a child of the workload scope.
// Lookups fall back to the parent chain; writes always land in the local node.
package scope

import (
	"sort"
	"sync"
)

// Scope is one node of the execution context tree.
// The parent link is fixed at creation, so upward lookups never race with
// tree mutation. Each node guards its own bindings.
type Scope struct {
	parent *Scope
	owner  any

	mu       sync.RWMutex
	bindings map[string]any
}

// New creates a root scope. The owner is an opaque back-reference (the
// benchmark) available to every descendant via Owner.
func New(owner any) *Scope {
	return &Scope{owner: owner, bindings: make(map[string]any)}
}

// Child creates a new scope whose lookups fall back to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, owner: s.owner, bindings: make(map[string]any)}
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Owner returns the owner passed to New.
func (s *Scope) Owner() any { return s.owner }

// Bind associates key with value in this scope only.
func (s *Scope) Bind(key string, value any) *Scope {
	s.mu.Lock()
	s.bindings[key] = value
	s.mu.Unlock()
	return s
}

// Get looks key up locally, then in each ancestor up to the root.
func (s *Scope) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.bindings[key]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// GetLocal looks key up in this scope only.
func (s *Scope) GetLocal(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bindings[key]
	return v, ok
}

// Contains reports whether key resolves in this scope or an ancestor.
func (s *Scope) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set is Bind without chaining; it satisfies variable-store interfaces.
func (s *Scope) Set(key string, value any) { s.Bind(key, value) }

// Keys returns the locally bound keys in sorted order.
func (s *Scope) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.bindings))
	for k := range s.bindings {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Properties returns a copy of the local bindings.
func (s *Scope) Properties() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// Lookup resolves key through the scope chain and asserts its type.
// A missing key or a value of another type yields the zero value and false.
func Lookup[T any](s *Scope, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
