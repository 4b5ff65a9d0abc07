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

package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesOnce(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sqlite.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := []Migration{{
		Name:    "2026-01-10_init",
		Queries: `CREATE TABLE things (id INTEGER NOT NULL PRIMARY KEY, name TEXT NOT NULL);`,
	}}

	require.NoError(t, Migrate(db, migrations))
	// Re-running is a no-op: the CREATE would fail if executed again.
	require.NoError(t, Migrate(db, migrations))

	_, err = db.Exec(`INSERT INTO things (name) VALUES ('x')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrateOrdering(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sqlite.db"))
	require.NoError(t, err)
	defer db.Close()

	first := []Migration{{
		Name:    "0001_create",
		Queries: `CREATE TABLE t (id INTEGER PRIMARY KEY);`,
	}}
	require.NoError(t, Migrate(db, first))

	both := append(first, Migration{
		Name:    "0002_add_column",
		Queries: `ALTER TABLE t ADD COLUMN name TEXT;`,
	})
	require.NoError(t, Migrate(db, both))

	_, err = db.Exec(`INSERT INTO t (name) VALUES ('ok')`)
	assert.NoError(t, err)
}
