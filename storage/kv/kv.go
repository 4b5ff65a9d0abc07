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

package kv

// Store is a transactional ordered key-value store. Two backends exist,
// mirroring the storage/database split this codebase inherited: goleveldb
// and badger. Both order iteration bytewise by key.
type Store interface {
	// Get reads a single key outside any transaction.
	Get(key []byte) ([]byte, bool, error)

	// Update runs fn inside one read-write transaction; a returned error
	// rolls everything back. The leveldb backend serializes transactions;
	// on badger they run concurrently and a commit that conflicts with
	// another transaction fails.
	Update(fn func(tx Tx) error) error

	// NewIterator walks keys with the given prefix in ascending order. The
	// caller must Release it.
	NewIterator(prefix []byte) Iterator

	Close() error
}

// Tx is the mutation surface inside Update.
type Tx interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator walks keys lazily. Next must be called before the first access.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Backend names: LEVELDB selects NewLevelDB, BADGERDB selects NewBadgerDB.
const (
	LEVELDB  = "leveldb"
	BADGERDB = "badger"
)
