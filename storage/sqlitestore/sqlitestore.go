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
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omnius-labs/axus/axerr"
)

// Open creates (if needed) and opens the sqlite database at path with WAL
// journaling and a 10-second busy timeout. The connection pool is pinned to
// one connection so multi-statement operations serialize naturally.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, axerr.New(axerr.IoError).WithMessage("cannot create state dir").WithSource(err)
	}

	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithMessage("open failed: %s", path).WithSource(err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, axerr.New(axerr.DatabaseError).WithMessage("ping failed: %s", path).WithSource(err)
	}
	return db, nil
}

// Migration is a named, idempotent DDL bundle. Applied names are recorded
// in _migrations and never run twice.
type Migration struct {
	Name    string
	Queries string
}

// Migrate applies the pending migrations in order.
func Migrate(db *sql.DB, migrations []Migration) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS _migrations (
    name TEXT NOT NULL PRIMARY KEY,
    executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return axerr.New(axerr.DatabaseError).WithMessage("migration table setup failed").WithSource(err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow(`SELECT COUNT(1) FROM _migrations WHERE name = ?`, m.Name).Scan(&count); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		if _, err := tx.Exec(m.Queries); err != nil {
			tx.Rollback()
			return axerr.New(axerr.DatabaseError).WithMessage("migration %s failed", m.Name).WithSource(err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (name) VALUES (?)`, m.Name); err != nil {
			tx.Rollback()
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		if err := tx.Commit(); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}
	return nil
}
