// Package ds provides small generic data structures used by the runtime.
package ds

import "fmt"

// Set is an unordered set with O(1) add, membership test and removal.
//
// The runtime keeps one Set per actor for its outstanding call ids and
// removes from it on every result delivery, under the registry lock.
//
// Set is not safe for concurrent use; callers guard it with their own lock.
type Set[T comparable] struct {
	items map[T]struct{}
}

// NewSet creates a set holding the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{items: make(map[T]struct{}, len(items))}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s *Set[T]) String() string { return fmt.Sprintf("%v", s.Values()) }

// Add inserts v. No-op if v is already present.
func (s *Set[T]) Add(v T) { s.items[v] = struct{}{} }

// Contains reports whether v is in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// TakeOut removes v and reports whether it was present.
// This is the test-and-remove primitive used for call correlation.
func (s *Set[T]) TakeOut(v T) bool {
	if _, ok := s.items[v]; !ok {
		return false
	}
	delete(s.items, v)
	return true
}

// Len returns the number of items.
func (s *Set[T]) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no items.
func (s *Set[T]) IsEmpty() bool { return len(s.items) == 0 }

// Values returns a copy of the items in no particular order.
func (s *Set[T]) Values() []T {
	out := make([]T, 0, len(s.items))
	for v := range s.items {
		out = append(out, v)
	}
	return out
}

// Clear removes all items.
func (s *Set[T]) Clear() { clear(s.items) }
