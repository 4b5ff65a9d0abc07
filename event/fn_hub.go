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

package event

import "sync"

// FnHub is a multi-listener callback registry. Listeners register through
// Listen and unregister by releasing the returned handle; Call invokes every
// registered callback and collects the results in no particular order.
type FnHub[Args any, T any] struct {
	mu     sync.Mutex
	nextID uint32
	fns    map[uint32]func(Args) T
}

func NewFnHub[Args any, T any]() *FnHub[Args, T] {
	return &FnHub[Args, T]{fns: make(map[uint32]func(Args) T)}
}

// Listen registers f and returns its release handle.
func (h *FnHub[Args, T]) Listen(f func(Args) T) *FnHandle {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.fns[id] = f

	return &FnHandle{release: func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	}}
}

// Call invokes all registered callbacks. Callers must not assume ordering
// of the returned values.
func (h *FnHub[Args, T]) Call(args Args) []T {
	h.mu.Lock()
	fns := make([]func(Args) T, 0, len(h.fns))
	for _, f := range h.fns {
		fns = append(fns, f)
	}
	h.mu.Unlock()

	res := make([]T, 0, len(fns))
	for _, f := range fns {
		res = append(res, f(args))
	}
	return res
}

// FnHandle unregisters its callback when released.
type FnHandle struct {
	once    sync.Once
	release func()
}

func (h *FnHandle) Release() {
	h.once.Do(h.release)
}
