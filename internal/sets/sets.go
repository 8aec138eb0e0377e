// Package sets provides the small generic set type used throughout the
// dependency graph core. The graph's algorithms are written as set algebra
// (union, difference, intersection), so a thin wrapper over a map keeps them
// readable.
package sets

import (
	"cmp"
	"sort"
)

// Set is an unordered collection of unique comparable items.
type Set[T comparable] map[T]struct{}

// New returns a set containing the given items.
func New[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts item into the set.
func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

// Remove deletes item from the set. Removing an absent item is a no-op.
func (s Set[T]) Remove(item T) {
	delete(s, item)
}

// Contains reports whether item is in the set.
func (s Set[T]) Contains(item T) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of items in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// Copy returns a shallow copy of the set.
func (s Set[T]) Copy() Set[T] {
	out := make(Set[T], len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

// AddAll inserts every item of other into the set.
func (s Set[T]) AddAll(other Set[T]) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// RemoveAll deletes every item of other from the set.
func (s Set[T]) RemoveAll(other Set[T]) {
	for item := range other {
		delete(s, item)
	}
}

// Union returns a new set containing the items of both sets.
func (s Set[T]) Union(other Set[T]) Set[T] {
	out := s.Copy()
	out.AddAll(other)
	return out
}

// Diff returns a new set containing the items of s that are not in other.
func (s Set[T]) Diff(other Set[T]) Set[T] {
	out := make(Set[T])
	for item := range s {
		if !other.Contains(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Intersect returns a new set containing the items present in both sets.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set[T])
	for item := range small {
		if large.Contains(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Intersects reports whether the two sets share at least one item.
func (s Set[T]) Intersects(other Set[T]) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for item := range small {
		if large.Contains(item) {
			return true
		}
	}
	return false
}

// Items returns the items of the set in unspecified order.
func (s Set[T]) Items() []T {
	out := make([]T, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	return out
}

// Sorted returns the items of s in ascending order. Used wherever output
// must be deterministic (serialization, logging, tie-breaking).
func Sorted[T cmp.Ordered](s Set[T]) []T {
	out := s.Items()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
