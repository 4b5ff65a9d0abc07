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

package filepublisher

import (
	"database/sql"
	"path/filepath"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/storage/sqlitestore"
)

// Repo persists the publisher's metadata: uncommitted requests and blocks
// on one side, committed files and blocks on the other.
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
CREATE TABLE IF NOT EXISTS uncommitted_files (
    id TEXT NOT NULL PRIMARY KEY,
    file_path TEXT NOT NULL,
    file_name TEXT NOT NULL,
    block_size INTEGER NOT NULL,
    attrs TEXT,
    priority INTEGER NOT NULL,
    status TEXT NOT NULL,
    failed_reason TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS uncommitted_blocks (
    file_id TEXT NOT NULL,
    block_hash TEXT NOT NULL,
    rank INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    UNIQUE (file_id, block_hash, rank, idx)
);
CREATE TABLE IF NOT EXISTS committed_files (
    root_hash TEXT NOT NULL PRIMARY KEY,
    file_name TEXT NOT NULL,
    block_size INTEGER NOT NULL,
    attrs TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS committed_blocks (
    root_hash TEXT NOT NULL,
    block_hash TEXT NOT NULL,
    rank INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    UNIQUE (root_hash, block_hash, rank, idx)
);
CREATE INDEX IF NOT EXISTS index_committed_blocks_by_root ON committed_blocks (root_hash, rank ASC, idx ASC);
`,
	}}
	if err := sqlitestore.Migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return &Repo{db: db, clock: clock}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) InsertUncommittedFile(f *UncommittedFile) error {
	_, err := r.db.Exec(`
INSERT INTO uncommitted_files (id, file_path, file_name, block_size, attrs, priority, status, failed_reason, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, f.ID, f.FilePath, f.FileName, f.BlockSize, nullable(f.Attrs), f.Priority, string(f.Status), nullable(f.FailedReason), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) UpdateUncommittedFileStatus(id string, status UncommittedFileStatus) error {
	_, err := r.db.Exec(`
UPDATE uncommitted_files SET status = ?, updated_at = ? WHERE id = ?
`, string(status), r.clock.Now(), id)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) SetUncommittedFileFailed(id string, reason string) error {
	_, err := r.db.Exec(`
UPDATE uncommitted_files SET status = ?, failed_reason = ?, updated_at = ? WHERE id = ?
`, string(UncommittedFileStatusFailed), reason, r.clock.Now(), id)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

// FindUncommittedFileByEncodingNext picks the next pending request:
// priority ASC, then created_at ASC.
func (r *Repo) FindUncommittedFileByEncodingNext() (*UncommittedFile, error) {
	row := r.db.QueryRow(`
SELECT id, file_path, file_name, block_size, attrs, priority, status, failed_reason, created_at, updated_at
    FROM uncommitted_files
    WHERE status = ?
    ORDER BY priority ASC, created_at ASC
    LIMIT 1
`, string(UncommittedFileStatusPending))
	return scanUncommittedFile(row)
}

func (r *Repo) FindUncommittedFileByID(id string) (*UncommittedFile, error) {
	row := r.db.QueryRow(`
SELECT id, file_path, file_name, block_size, attrs, priority, status, failed_reason, created_at, updated_at
    FROM uncommitted_files
    WHERE id = ?
`, id)
	return scanUncommittedFile(row)
}

func (r *Repo) ListUncommittedFiles() ([]*UncommittedFile, error) {
	rows, err := r.db.Query(`
SELECT id, file_path, file_name, block_size, attrs, priority, status, failed_reason, created_at, updated_at
    FROM uncommitted_files
`)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	var res []*UncommittedFile
	for rows.Next() {
		f, err := scanUncommittedFileRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

// DeleteUncommittedFile removes the request row and its block rows.
func (r *Repo) DeleteUncommittedFile(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM uncommitted_files WHERE id = ?`, id); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if _, err := tx.Exec(`DELETE FROM uncommitted_blocks WHERE file_id = ?`, id); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) InsertOrIgnoreUncommittedBlock(b *UncommittedBlock) error {
	_, err := r.db.Exec(`
INSERT OR IGNORE INTO uncommitted_blocks (file_id, block_hash, rank, idx)
    VALUES (?, ?, ?, ?)
`, b.FileID, b.BlockHash.String(), b.Rank, b.Index)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) FindUncommittedBlocksByFileID(fileID string) ([]*UncommittedBlock, error) {
	rows, err := r.db.Query(`
SELECT file_id, block_hash, rank, idx
    FROM uncommitted_blocks
    WHERE file_id = ?
    ORDER BY rank ASC, idx ASC
`, fileID)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	var res []*UncommittedBlock
	for rows.Next() {
		var b UncommittedBlock
		var hash string
		if err := rows.Scan(&b.FileID, &hash, &b.Rank, &b.Index); err != nil {
			return nil, axerr.New(axerr.DatabaseError).WithSource(err)
		}
		h, err := common.ParseOmniHash(hash)
		if err != nil {
			return nil, err
		}
		b.BlockHash = h
		res = append(res, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

func (r *Repo) FindCommittedFileByRootHash(rootHash common.OmniHash) (*CommittedFile, error) {
	row := r.db.QueryRow(`
SELECT root_hash, file_name, block_size, attrs, created_at, updated_at
    FROM committed_files
    WHERE root_hash = ?
`, rootHash.String())

	var f CommittedFile
	var hash string
	var attrs sql.NullString
	err := row.Scan(&hash, &f.FileName, &f.BlockSize, &attrs, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	h, err := common.ParseOmniHash(hash)
	if err != nil {
		return nil, err
	}
	f.RootHash = h
	f.Attrs = attrs.String
	return &f, nil
}

// CommitFileWithBlocks atomically inserts the committed file and blocks
// and removes the uncommitted rows.
func (r *Repo) CommitFileWithBlocks(f *CommittedFile, blocks []*CommittedBlock, uncommittedFileID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
INSERT INTO committed_files (root_hash, file_name, block_size, attrs, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?)
`, f.RootHash.String(), f.FileName, f.BlockSize, nullable(f.Attrs), f.CreatedAt, f.UpdatedAt); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	stmt, err := tx.Prepare(`
INSERT OR IGNORE INTO committed_blocks (root_hash, block_hash, rank, idx)
    VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	for _, b := range blocks {
		if _, err := stmt.Exec(b.RootHash.String(), b.BlockHash.String(), b.Rank, b.Index); err != nil {
			stmt.Close()
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}
	stmt.Close()

	if _, err := tx.Exec(`DELETE FROM uncommitted_files WHERE id = ?`, uncommittedFileID); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if _, err := tx.Exec(`DELETE FROM uncommitted_blocks WHERE file_id = ?`, uncommittedFileID); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

// CommitFileNameOnly handles the duplicate-root case: only the file name
// moves forward, and the uncommitted rows go away.
func (r *Repo) CommitFileNameOnly(rootHash common.OmniHash, fileName string, uncommittedFileID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
UPDATE committed_files SET file_name = ?, updated_at = ? WHERE root_hash = ?
`, fileName, r.clock.Now(), rootHash.String()); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if _, err := tx.Exec(`DELETE FROM uncommitted_files WHERE id = ?`, uncommittedFileID); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if _, err := tx.Exec(`DELETE FROM uncommitted_blocks WHERE file_id = ?`, uncommittedFileID); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) ListCommittedRootHashes() ([]common.OmniHash, error) {
	rows, err := r.db.Query(`SELECT root_hash FROM committed_files`)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	var res []common.OmniHash
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, axerr.New(axerr.DatabaseError).WithSource(err)
		}
		h, err := common.ParseOmniHash(hash)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

func (r *Repo) HasCommittedBlock(rootHash, blockHash common.OmniHash) (bool, error) {
	var count int
	err := r.db.QueryRow(`
SELECT COUNT(1) FROM committed_blocks WHERE root_hash = ? AND block_hash = ? LIMIT 1
`, rootHash.String(), blockHash.String()).Scan(&count)
	if err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return count > 0, nil
}

func scanUncommittedFile(row *sql.Row) (*UncommittedFile, error) {
	var f UncommittedFile
	var attrs, failedReason sql.NullString
	var status string
	err := row.Scan(&f.ID, &f.FilePath, &f.FileName, &f.BlockSize, &attrs, &f.Priority, &status, &failedReason, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	f.Attrs = attrs.String
	f.FailedReason = failedReason.String
	f.Status = UncommittedFileStatus(status)
	return &f, nil
}

func scanUncommittedFileRows(rows *sql.Rows) (*UncommittedFile, error) {
	var f UncommittedFile
	var attrs, failedReason sql.NullString
	var status string
	err := rows.Scan(&f.ID, &f.FilePath, &f.FileName, &f.BlockSize, &attrs, &f.Priority, &status, &failedReason, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	f.Attrs = attrs.String
	f.FailedReason = failedReason.String
	f.Status = UncommittedFileStatus(status)
	return &f, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
