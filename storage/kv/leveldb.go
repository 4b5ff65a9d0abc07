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
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/log"
)

type levelDB struct {
	fn string
	db *leveldb.DB

	// goleveldb allows one open transaction at a time; the lock keeps
	// Update callers from deadlocking on OpenTransaction.
	txMu sync.Mutex

	logger log.Logger
}

// NewLevelDB opens (and if corrupted, recovers) a leveldb store at dir.
func NewLevelDB(dir string) (Store, error) {
	logger := log.New("database", dir)

	options := &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}

	db, err := leveldb.OpenFile(dir, options)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithMessage("leveldb open failed: %s", dir).WithSource(err)
	}

	logger.Info("Allocated LevelDB", "dir", dir)
	return &levelDB{fn: dir, db: db, logger: logger}, nil
}

func (d *levelDB) Get(key []byte) ([]byte, bool, error) {
	v, err := d.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return v, true, nil
}

func (d *levelDB) Update(fn func(tx Tx) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	tr, err := d.db.OpenTransaction()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	if err := fn(&levelTx{tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (d *levelDB) NewIterator(prefix []byte) Iterator {
	return &levelIterator{it: d.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (d *levelDB) Close() error {
	return d.db.Close()
}

type levelTx struct {
	tr *leveldb.Transaction
}

func (t *levelTx) Get(key []byte) ([]byte, bool, error) {
	v, err := t.tr.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return v, true, nil
}

func (t *levelTx) Put(key, value []byte) error {
	if err := t.tr.Put(key, value, nil); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (t *levelTx) Delete(key []byte) error {
	if err := t.tr.Delete(key, nil); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool    { return i.it.Next() }
func (i *levelIterator) Key() []byte   { return i.it.Key() }
func (i *levelIterator) Value() []byte { return i.it.Value() }
func (i *levelIterator) Release()      { i.it.Release() }

func (i *levelIterator) Error() error {
	if err := i.it.Error(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}
