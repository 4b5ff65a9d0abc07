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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/storage/sqlitestore"
)

const (
	fileStoreCacheSize = 256
	fileStoreChunkSize = 500
)

// fileStore is the file-per-id backend: a relational keys table maps each
// bound name to an integer id, and the bytes live at a path derived from
// that id. One store-wide lock serializes every operation.
type fileStore struct {
	dir   string
	db    *sql.DB
	mu    sync.Mutex
	cache common.Cache
}

// NewFileStore opens the file-per-id backend rooted at dir.
func NewFileStore(dir string) (Store, error) {
	db, err := sqlitestore.Open(filepath.Join(dir, "sqlite.db"))
	if err != nil {
		return nil, err
	}

	migrations := []sqlitestore.Migration{{
		Name: "2026-01-10_init",
		Queries: `
CREATE TABLE IF NOT EXISTS keys (
    id INTEGER NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
`,
	}}
	if err := sqlitestore.Migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	cache, err := common.NewCache(common.LRUCacheType, fileStoreCacheSize)
	if err != nil {
		db.Close()
		return nil, axerr.New(axerr.UnexpectedError).WithSource(err)
	}

	return &fileStore{dir: dir, db: db, cache: cache}, nil
}

func (s *fileStore) Put(name string, value []byte, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.getID(name)
	if err != nil {
		return err
	}
	if ok && !overwrite {
		return axerr.New(axerr.AlreadyExists).WithMessage("name already bound: %s", name)
	}
	if !ok {
		if err := s.db.QueryRow(`INSERT INTO keys (name) VALUES (?) RETURNING id`, name).Scan(&id); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}

	path, err := s.filePath(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return axerr.New(axerr.IoError).WithMessage("block write failed").WithSource(err)
	}
	s.cache.Add(name, append([]byte(nil), value...))
	return nil
}

func (s *fileStore) Get(name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(name); ok {
		return append([]byte(nil), v.([]byte)...), true, nil
	}

	id, ok, err := s.getID(name)
	if err != nil || !ok {
		return nil, false, err
	}
	path, err := s.filePath(id)
	if err != nil {
		return nil, false, err
	}
	value, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, axerr.New(axerr.IoError).WithMessage("block read failed").WithSource(err)
	}
	s.cache.Add(name, append([]byte(nil), value...))
	return value, true, nil
}

func (s *fileStore) Rename(oldName, newName string, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	var newID int64
	err = tx.QueryRow(`SELECT id FROM keys WHERE name = ?`, newName).Scan(&newID)
	newExists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if newExists && !overwrite {
		return axerr.New(axerr.AlreadyExists).WithMessage("name already bound: %s", newName)
	}
	if newExists {
		if _, err := tx.Exec(`DELETE FROM keys WHERE id = ?`, newID); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}

	res, err := tx.Exec(`UPDATE keys SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if affected == 0 {
		return axerr.New(axerr.NotFound).WithMessage("name not bound: %s", oldName)
	}

	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	// The displaced new binding's bytes are unreachable now; sweep them.
	if newExists {
		if path, err := s.filePath(newID); err == nil {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return axerr.New(axerr.IoError).WithSource(err)
			}
		}
	}
	s.cache.Remove(oldName)
	s.cache.Remove(newName)
	return nil
}

func (s *fileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(name)
}

func (s *fileStore) deleteLocked(name string) error {
	id, ok, err := s.getID(name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM keys WHERE id = ?`, id); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	path, err := s.filePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return axerr.New(axerr.IoError).WithSource(err)
	}
	s.cache.Remove(name)
	return nil
}

func (s *fileStore) DeleteBulk(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type victim struct {
		id   int64
		name string
	}
	var victims []victim

	tx, err := s.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	for _, name := range names {
		var id int64
		err := tx.QueryRow(`SELECT id FROM keys WHERE name = ?`, name).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		if _, err := tx.Exec(`DELETE FROM keys WHERE id = ?`, id); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		victims = append(victims, victim{id: id, name: name})
	}

	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	for _, v := range victims {
		path, err := s.filePath(v.id)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return axerr.New(axerr.IoError).WithSource(err)
		}
		s.cache.Remove(v.name)
	}
	return nil
}

func (s *fileStore) Contains(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.getID(name)
	return ok, err
}

func (s *fileStore) Names() (NameIterator, error) {
	return &fileNameIterator{store: s}, nil
}

func (s *fileStore) Shrink(keep func(name string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []string
	offset := 0
	for {
		rows, err := s.db.Query(`SELECT name FROM keys ORDER BY name LIMIT ? OFFSET ?`, fileStoreChunkSize, offset)
		if err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		count := 0
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return axerr.New(axerr.DatabaseError).WithSource(err)
			}
			count++
			if !keep(name) {
				victims = append(victims, name)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		rows.Close()
		if count < fileStoreChunkSize {
			break
		}
		offset += fileStoreChunkSize
	}

	for _, name := range victims {
		if err := s.deleteLocked(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) Close() error {
	return s.db.Close()
}

func (s *fileStore) getID(name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM keys WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return id, true, nil
}

// filePath derives the on-disk location of an id: a 6-level fan-out, each
// level 11 bits wide, rendered base-16.
func (s *fileStore) filePath(id int64) (string, error) {
	parts := make([]string, 6)
	for i := 0; i < 6; i++ {
		parts[5-i] = fmt.Sprintf("%03x", (id>>(uint(i)*11))&0x7FF)
	}
	path := filepath.Join(s.dir, "blocks", strings.Join(parts, string(filepath.Separator)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", axerr.New(axerr.IoError).WithSource(err)
	}
	return path, nil
}

// fileNameIterator pages through the keys table in name order.
type fileNameIterator struct {
	store  *fileStore
	buf    []string
	idx    int
	offset int
	done   bool
	err    error
}

func (i *fileNameIterator) Next() bool {
	if i.err != nil {
		return false
	}
	i.idx++
	if i.idx < len(i.buf) {
		return true
	}
	if i.done {
		return false
	}

	i.store.mu.Lock()
	rows, err := i.store.db.Query(`SELECT name FROM keys ORDER BY name LIMIT ? OFFSET ?`, fileStoreChunkSize, i.offset)
	if err != nil {
		i.store.mu.Unlock()
		i.err = axerr.New(axerr.DatabaseError).WithSource(err)
		return false
	}
	i.buf = i.buf[:0]
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			i.err = axerr.New(axerr.DatabaseError).WithSource(err)
			break
		}
		i.buf = append(i.buf, name)
	}
	if err := rows.Err(); err != nil && i.err == nil {
		i.err = axerr.New(axerr.DatabaseError).WithSource(err)
	}
	rows.Close()
	i.store.mu.Unlock()

	if i.err != nil {
		return false
	}
	i.offset += len(i.buf)
	if len(i.buf) < fileStoreChunkSize {
		i.done = true
	}
	i.idx = 0
	return len(i.buf) > 0
}

func (i *fileNameIterator) Name() string {
	return i.buf[i.idx]
}

func (i *fileNameIterator) Error() error { return i.err }
func (i *fileNameIterator) Release()     {}
