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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/storage/kv"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ldb, err := kv.NewLevelDB(t.TempDir())
	require.NoError(t, err)

	bdb, err := kv.NewBadgerDB(t.TempDir())
	require.NoError(t, err)

	tsid := base.NewFakeTsidProvider("blk")
	return map[string]Store{
		"file":       fileStore,
		"kv-leveldb": NewKvStore(ldb, tsid),
		"kv-badger":  NewKvStore(bdb, base.NewFakeTsidProvider("blk2")),
	}
}

func TestPutGetDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			_, ok, err := store.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put("k1", []byte("v1"), false))
			v, ok, err := store.Get("k1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v1"), v)

			// A second create without overwrite fails.
			err = store.Put("k1", []byte("v2"), false)
			assert.Equal(t, axerr.AlreadyExists, axerr.KindOf(err))

			// Overwrite replaces the bytes.
			require.NoError(t, store.Put("k1", []byte("v2"), true))
			v, _, err = store.Get("k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), v)

			ok, err = store.Contains("k1")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, store.Delete("k1"))
			_, ok, err = store.Get("k1")
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting an unbound name is a success.
			require.NoError(t, store.Delete("k1"))
		})
	}
}

func TestRename(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			require.NoError(t, store.Put("old", []byte("payload"), false))

			require.NoError(t, store.Rename("old", "new", false))
			_, ok, err := store.Get("old")
			require.NoError(t, err)
			assert.False(t, ok)
			v, ok, err := store.Get("new")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("payload"), v)

			// Renaming onto an occupied name without overwrite fails and
			// changes nothing.
			require.NoError(t, store.Put("other", []byte("x"), false))
			err = store.Rename("new", "other", false)
			assert.Equal(t, axerr.AlreadyExists, axerr.KindOf(err))
			v, _, _ = store.Get("new")
			assert.Equal(t, []byte("payload"), v)
			v, _, _ = store.Get("other")
			assert.Equal(t, []byte("x"), v)

			// With overwrite the destination is displaced.
			require.NoError(t, store.Rename("new", "other", true))
			_, ok, _ = store.Get("new")
			assert.False(t, ok)
			v, _, _ = store.Get("other")
			assert.Equal(t, []byte("payload"), v)

			// Renaming an unbound name fails.
			err = store.Rename("ghost", "anything", true)
			assert.Equal(t, axerr.NotFound, axerr.KindOf(err))
		})
	}
}

func TestDeleteBulkAndNames(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			for _, k := range []string{"c", "a", "b", "d"} {
				require.NoError(t, store.Put(k, []byte(k), false))
			}

			it, err := store.Names()
			require.NoError(t, err)
			var names []string
			for it.Next() {
				names = append(names, it.Name())
			}
			require.NoError(t, it.Error())
			it.Release()
			assert.True(t, sort.StringsAreSorted(names))
			assert.Equal(t, []string{"a", "b", "c", "d"}, names)

			require.NoError(t, store.DeleteBulk([]string{"a", "c", "zz"}))
			ok, _ := store.Contains("a")
			assert.False(t, ok)
			ok, _ = store.Contains("b")
			assert.True(t, ok)
		})
	}
}

func TestShrink(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			require.NoError(t, store.Put("keep1", []byte("k"), false))
			require.NoError(t, store.Put("keep2", []byte("k"), false))
			require.NoError(t, store.Put("drop1", []byte("d"), false))

			require.NoError(t, store.Shrink(func(n string) bool {
				return n == "keep1" || n == "keep2"
			}))

			ok, _ := store.Contains("keep1")
			assert.True(t, ok)
			ok, _ = store.Contains("keep2")
			assert.True(t, ok)
			ok, _ = store.Contains("drop1")
			assert.False(t, ok)
		})
	}
}
