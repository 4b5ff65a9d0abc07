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

import (
	metrics "github.com/rcrowley/go-metrics"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/storage/kv"
)

// Key layout of the blob-in-kv backend: two keyspaces inside one
// transactional store, names (name -> opaque id) and blocks (id -> bytes).
// Rename mutates only the names keyspace.
var (
	namePrefix  = []byte("n/")
	blockPrefix = []byte("b/")
)

type kvStore struct {
	db   kv.Store
	tsid base.TsidProvider

	readMeter  metrics.Meter
	writeMeter metrics.Meter
}

// NewKvStore builds the blob-in-kv backend on top of an open kv.Store.
func NewKvStore(db kv.Store, tsid base.TsidProvider) Store {
	return &kvStore{
		db:         db,
		tsid:       tsid,
		readMeter:  metrics.NewRegisteredMeter("blockstore/kv/read", nil),
		writeMeter: metrics.NewRegisteredMeter("blockstore/kv/write", nil),
	}
}

func nameKey(name string) []byte {
	return append(append([]byte(nil), namePrefix...), name...)
}

func blockKey(id []byte) []byte {
	return append(append([]byte(nil), blockPrefix...), id...)
}

func (s *kvStore) Put(name string, value []byte, overwrite bool) error {
	err := s.db.Update(func(tx kv.Tx) error {
		id, ok, err := tx.Get(nameKey(name))
		if err != nil {
			return err
		}
		if ok {
			if !overwrite {
				return axerr.New(axerr.AlreadyExists).WithMessage("name already bound: %s", name)
			}
			return tx.Put(blockKey(id), value)
		}

		id = []byte(s.tsid.Create())
		if err := tx.Put(nameKey(name), id); err != nil {
			return err
		}
		return tx.Put(blockKey(id), value)
	})
	if err == nil {
		s.writeMeter.Mark(int64(len(value)))
	}
	return err
}

func (s *kvStore) Get(name string) ([]byte, bool, error) {
	id, ok, err := s.db.Get(nameKey(name))
	if err != nil || !ok {
		return nil, false, err
	}
	value, ok, err := s.db.Get(blockKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	s.readMeter.Mark(int64(len(value)))
	return value, true, nil
}

func (s *kvStore) Rename(oldName, newName string, overwrite bool) error {
	return s.db.Update(func(tx kv.Tx) error {
		// Reads are ordered by name so concurrent renames cannot deadlock
		// on backends with per-key locks.
		var oldID, newID []byte
		var oldOK, newOK bool
		var err error
		if oldName <= newName {
			if oldID, oldOK, err = tx.Get(nameKey(oldName)); err != nil {
				return err
			}
			if newID, newOK, err = tx.Get(nameKey(newName)); err != nil {
				return err
			}
		} else {
			if newID, newOK, err = tx.Get(nameKey(newName)); err != nil {
				return err
			}
			if oldID, oldOK, err = tx.Get(nameKey(oldName)); err != nil {
				return err
			}
		}

		if !oldOK {
			return axerr.New(axerr.NotFound).WithMessage("name not bound: %s", oldName)
		}
		if newOK {
			if !overwrite {
				return axerr.New(axerr.AlreadyExists).WithMessage("name already bound: %s", newName)
			}
			if err := tx.Delete(blockKey(newID)); err != nil {
				return err
			}
		}
		if err := tx.Put(nameKey(newName), oldID); err != nil {
			return err
		}
		return tx.Delete(nameKey(oldName))
	})
}

func (s *kvStore) Delete(name string) error {
	return s.db.Update(func(tx kv.Tx) error {
		id, ok, err := tx.Get(nameKey(name))
		if err != nil || !ok {
			return err
		}
		if err := tx.Delete(blockKey(id)); err != nil {
			return err
		}
		return tx.Delete(nameKey(name))
	})
}

func (s *kvStore) DeleteBulk(names []string) error {
	return s.db.Update(func(tx kv.Tx) error {
		for _, name := range names {
			id, ok, err := tx.Get(nameKey(name))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := tx.Delete(blockKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(nameKey(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *kvStore) Contains(name string) (bool, error) {
	_, ok, err := s.db.Get(nameKey(name))
	return ok, err
}

func (s *kvStore) Names() (NameIterator, error) {
	return &kvNameIterator{it: s.db.NewIterator(namePrefix)}, nil
}

func (s *kvStore) Shrink(keep func(name string) bool) error {
	// Collect outside the transaction, delete inside one.
	type victim struct {
		name string
		id   []byte
	}
	var victims []victim

	it := s.db.NewIterator(namePrefix)
	for it.Next() {
		name := string(it.Key()[len(namePrefix):])
		if !keep(name) {
			victims = append(victims, victim{name: name, id: append([]byte(nil), it.Value()...)})
		}
	}
	if err := it.Error(); err != nil {
		it.Release()
		return err
	}
	it.Release()

	return s.db.Update(func(tx kv.Tx) error {
		for _, v := range victims {
			if err := tx.Delete(nameKey(v.name)); err != nil {
				return err
			}
			if err := tx.Delete(blockKey(v.id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *kvStore) Close() error {
	return s.db.Close()
}

type kvNameIterator struct {
	it kv.Iterator
}

func (i *kvNameIterator) Next() bool {
	return i.it.Next()
}

func (i *kvNameIterator) Name() string {
	return string(i.it.Key()[len(namePrefix):])
}

func (i *kvNameIterator) Error() error { return i.it.Error() }
func (i *kvNameIterator) Release()     { i.it.Release() }
