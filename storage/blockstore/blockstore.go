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

package blockstore

// Store is a content-addressed, persistent, rename-capable binary store.
// Names are opaque strings chosen by the file subsystems; a commit is a
// rename. Every operation is internally atomic: callers observe at most
// one outcome.
type Store interface {
	// Put binds value under name. overwrite=false on an existing name
	// fails with AlreadyExists.
	Put(name string, value []byte, overwrite bool) error

	// Get returns the bound bytes, or ok=false when the name is unbound.
	Get(name string) ([]byte, bool, error)

	// Rename atomically re-binds the bytes from old to new without
	// touching them. An existing new with overwrite=false fails with
	// AlreadyExists; a missing old fails with NotFound. On failure neither
	// binding changes.
	Rename(oldName, newName string, overwrite bool) error

	// Delete removes the binding and its bytes. An unbound name is not an
	// error.
	Delete(name string) error

	// DeleteBulk removes several bindings atomically.
	DeleteBulk(names []string) error

	Contains(name string) (bool, error)

	// Names walks all currently bound names in ascending order, lazily.
	Names() (NameIterator, error)

	// Shrink deletes every binding whose name does not satisfy keep.
	Shrink(keep func(name string) bool) error

	Close() error
}

// NameIterator walks bound names. Next must be called before Name.
type NameIterator interface {
	Next() bool
	Name() string
	Error() error
	Release()
}
