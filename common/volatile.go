// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"sort"
	"time"

	"github.com/omnius-labs/axus/base"
)

// VolatileSet is a set whose members expire a fixed duration after
// insertion. Callers guard it with their own lock; Refresh and Shrink run
// inline. The clock is injected so expiry is testable.
type VolatileSet[T comparable] struct {
	entries map[T]time.Time
	ttl     time.Duration
	clock   base.Clock
}

func NewVolatileSet[T comparable](ttl time.Duration, clock base.Clock) *VolatileSet[T] {
	return &VolatileSet[T]{
		entries: make(map[T]time.Time),
		ttl:     ttl,
		clock:   clock,
	}
}

// Refresh evicts entries older than the TTL.
func (s *VolatileSet[T]) Refresh() {
	now := s.clock.Now()
	for k, t := range s.entries {
		if now.Sub(t) >= s.ttl {
			delete(s.entries, k)
		}
	}
}

// Shrink refreshes, then keeps only the max most recent entries.
func (s *VolatileSet[T]) Shrink(max int) {
	s.Refresh()
	if len(s.entries) <= max {
		return
	}

	type entry struct {
		key T
		at  time.Time
	}
	all := make([]entry, 0, len(s.entries))
	for k, t := range s.entries {
		all = append(all, entry{k, t})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	s.entries = make(map[T]time.Time, max)
	for _, e := range all[:max] {
		s.entries[e.key] = e.at
	}
}

func (s *VolatileSet[T]) Insert(v T) {
	s.entries[v] = s.clock.Now()
}

func (s *VolatileSet[T]) Extend(vs []T) {
	now := s.clock.Now()
	for _, v := range vs {
		s.entries[v] = now
	}
}

func (s *VolatileSet[T]) Contains(v T) bool {
	_, ok := s.entries[v]
	return ok
}

func (s *VolatileSet[T]) Remove(v T) {
	delete(s.entries, v)
}

func (s *VolatileSet[T]) Len() int {
	return len(s.entries)
}

func (s *VolatileSet[T]) Keys() []T {
	keys := make([]T, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// VolatileMap is the keyed variant of VolatileSet: values expire a fixed
// duration after their last insertion.
type VolatileMap[K comparable, V any] struct {
	values  map[K]V
	touched map[K]time.Time
	ttl     time.Duration
	clock   base.Clock
}

func NewVolatileMap[K comparable, V any](ttl time.Duration, clock base.Clock) *VolatileMap[K, V] {
	return &VolatileMap[K, V]{
		values:  make(map[K]V),
		touched: make(map[K]time.Time),
		ttl:     ttl,
		clock:   clock,
	}
}

func (m *VolatileMap[K, V]) Refresh() {
	now := m.clock.Now()
	for k, t := range m.touched {
		if now.Sub(t) >= m.ttl {
			delete(m.touched, k)
			delete(m.values, k)
		}
	}
}

func (m *VolatileMap[K, V]) Shrink(max int) {
	m.Refresh()
	if len(m.touched) <= max {
		return
	}

	type entry struct {
		key K
		at  time.Time
	}
	all := make([]entry, 0, len(m.touched))
	for k, t := range m.touched {
		all = append(all, entry{k, t})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	for _, e := range all[max:] {
		delete(m.touched, e.key)
		delete(m.values, e.key)
	}
}

func (m *VolatileMap[K, V]) Put(k K, v V) {
	m.values[k] = v
	m.touched[k] = m.clock.Now()
}

func (m *VolatileMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *VolatileMap[K, V]) Len() int {
	return len(m.values)
}

// Each visits every live entry.
func (m *VolatileMap[K, V]) Each(f func(k K, v V)) {
	for k, v := range m.values {
		f(k, v)
	}
}
