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

import (
	"os"

	"github.com/dgraph-io/badger"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/log"
)

type badgerDB struct {
	fn string
	db *badger.DB

	logger log.Logger
}

// NewBadgerDB opens a badger store at dir, creating it when missing.
func NewBadgerDB(dir string) (Store, error) {
	logger := log.New("database", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, axerr.New(axerr.IoError).WithMessage("cannot create db dir: %s", dir).WithSource(err)
	}

	options := badger.DefaultOptions(dir)
	options.Logger = nil

	db, err := badger.Open(options)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithMessage("badger open failed: %s", dir).WithSource(err)
	}

	logger.Info("Allocated BadgerDB", "dir", dir)
	return &badgerDB{fn: dir, db: db, logger: logger}, nil
}

func (d *badgerDB) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return value, true, nil
}

func (d *badgerDB) Update(fn func(tx Tx) error) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

func (d *badgerDB) NewIterator(prefix []byte) Iterator {
	txn := d.db.NewTransaction(false)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	it.Rewind()
	return &badgerIterator{txn: txn, it: it, prefix: prefix, first: true}
}

func (d *badgerDB) Close() error {
	return d.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(key []byte) ([]byte, bool, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return v, true, nil
}

func (t *badgerTx) Put(key, value []byte) error {
	if err := t.txn.Set(append([]byte(nil), key...), append([]byte(nil), value...)); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (t *badgerTx) Delete(key []byte) error {
	if err := t.txn.Delete(append([]byte(nil), key...)); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

type badgerIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	first  bool

	key   []byte
	value []byte
	err   error
}

func (i *badgerIterator) Next() bool {
	if !i.first {
		i.it.Next()
	}
	i.first = false

	if !i.it.ValidForPrefix(i.prefix) {
		return false
	}

	item := i.it.Item()
	i.key = item.KeyCopy(nil)
	i.value, i.err = item.ValueCopy(nil)
	return i.err == nil
}

func (i *badgerIterator) Key() []byte   { return i.key }
func (i *badgerIterator) Value() []byte { return i.value }

func (i *badgerIterator) Error() error {
	if i.err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(i.err)
	}
	return nil
}

func (i *badgerIterator) Release() {
	i.it.Close()
	i.txn.Discard()
}
