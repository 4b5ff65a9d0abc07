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

package finder

import (
	"database/sql"
	"path/filepath"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/storage/sqlitestore"
)

const insertChunkSize = 100

// Repo persists discovered node profiles. Rows are keyed by the profile's
// URI form; fetch order prefers heavier, fresher rows.
type Repo struct {
	db    *sql.DB
	clock base.Clock
}

func NewRepo(dir string, clock base.Clock) (*Repo, error) {
	db, err := sqlitestore.Open(filepath.Join(dir, "sqlite.db"))
	if err != nil {
		return nil, err
	}

	migrations := []sqlitestore.Migration{{
		Name: "2026-01-10_init",
		Queries: `
CREATE TABLE IF NOT EXISTS node_profiles (
    value TEXT NOT NULL PRIMARY KEY,
    weight INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`,
	}}
	if err := sqlitestore.Migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return &Repo{db: db, clock: clock}, nil
}

// Fetch returns all stored profiles ordered by (weight DESC, updatedAt
// DESC). Rows whose URI no longer decodes are skipped.
func (r *Repo) Fetch() ([]*common.NodeProfile, error) {
	rows, err := r.db.Query(`
SELECT value
    FROM node_profiles
    ORDER BY weight DESC, updated_at DESC
`)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	var res []*common.NodeProfile
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, axerr.New(axerr.DatabaseError).WithSource(err)
		}
		p, err := common.DecodeNodeProfileURI(value)
		if err != nil {
			continue
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

// InsertOrIgnore stores profiles idempotently with the given weight,
// batched in groups of 100.
func (r *Repo) InsertOrIgnore(profiles []*common.NodeProfile, weight int64) error {
	now := r.clock.Now()

	for start := 0; start < len(profiles); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(profiles) {
			end = len(profiles)
		}

		tx, err := r.db.Begin()
		if err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		stmt, err := tx.Prepare(`
INSERT OR IGNORE INTO node_profiles (value, weight, created_at, updated_at)
    VALUES (?, ?, ?, ?)
`)
		if err != nil {
			tx.Rollback()
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
		for _, p := range profiles[start:end] {
			value, err := common.EncodeNodeProfileURI(p)
			if err != nil {
				continue
			}
			if _, err := stmt.Exec(value, weight, now, now); err != nil {
				stmt.Close()
				tx.Rollback()
				return axerr.New(axerr.DatabaseError).WithSource(err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}
	return nil
}

// Shrink deletes the oldest rows beyond limit, by updatedAt.
func (r *Repo) Shrink(limit int) error {
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(1) FROM node_profiles`).Scan(&total); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	toDelete := total - limit
	if toDelete <= 0 {
		return nil
	}

	if _, err := r.db.Exec(`
DELETE FROM node_profiles
    WHERE rowid IN (
        SELECT rowid FROM node_profiles
        ORDER BY updated_at ASC, rowid ASC
        LIMIT ?
    )
`, toDelete); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}
