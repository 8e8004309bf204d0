// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implements a set of ordered keys as a `map[T]struct{}`, with sorted enumeration.
package sets

import (
	"cmp"
	"maps"
	"slices"
)

// Set of keys of type T.
type Set[T cmp.Ordered] map[T]struct{}

// Of returns a Set with the given keys.
func Of[T cmp.Ordered](keys ...T) Set[T] {
	s := make(Set[T], len(keys))
	s.Add(keys...)
	return s
}

// FromMapKeys returns a Set with the keys of m.
func FromMapKeys[T cmp.Ordered, V any](m map[T]V) Set[T] {
	s := make(Set[T], len(m))
	for key := range m {
		s[key] = struct{}{}
	}
	return s
}

// Add keys to the set.
func (s Set[T]) Add(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Contains returns whether key is in the set.
func (s Set[T]) Contains(key T) bool {
	_, found := s[key]
	return found
}

// Difference returns the keys of s that are not in other, sorted.
func (s Set[T]) Difference(other Set[T]) []T {
	var diff []T
	for key := range s {
		if !other.Contains(key) {
			diff = append(diff, key)
		}
	}
	slices.Sort(diff)
	return diff
}

// Union returns a new set with the keys of both s and other.
func (s Set[T]) Union(other Set[T]) Set[T] {
	u := maps.Clone(s)
	if u == nil {
		u = make(Set[T], len(other))
	}
	maps.Copy(u, other)
	return u
}

// Sorted returns the keys of the set in increasing order.
func (s Set[T]) Sorted() []T {
	return slices.Sorted(maps.Keys(s))
}
