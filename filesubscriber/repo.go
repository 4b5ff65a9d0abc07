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

package filesubscriber

import (
	"database/sql"
	"path/filepath"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/storage/sqlitestore"
)

// Repo persists subscription metadata and the per-layer block tracking
// rows.
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
CREATE TABLE IF NOT EXISTS files (
    id TEXT NOT NULL PRIMARY KEY,
    root_hash TEXT NOT NULL,
    file_path TEXT NOT NULL,
    rank INTEGER NOT NULL,
    block_count_downloaded INTEGER NOT NULL,
    block_count_total INTEGER NOT NULL,
    attrs TEXT,
    priority INTEGER NOT NULL,
    status TEXT NOT NULL,
    failed_reason TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS blocks (
    root_hash TEXT NOT NULL,
    block_hash TEXT NOT NULL,
    rank INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    downloaded INTEGER NOT NULL,
    PRIMARY KEY (root_hash, block_hash, rank, idx)
);
CREATE INDEX IF NOT EXISTS index_blocks_by_root_rank ON blocks (root_hash, rank ASC, idx ASC, downloaded);
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

// InsertFileWithBlocks creates the subscription row and its initial block
// set in one transaction.
func (r *Repo) InsertFileWithBlocks(f *File, blocks []*Block) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	if err := insertFileTx(tx, f); err != nil {
		return err
	}
	if err := upsertBlocksTx(tx, blocks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) FindFileByID(id string) (*File, error) {
	return scanFile(r.db.QueryRow(fileSelect+` WHERE id = ?`, id))
}

func (r *Repo) FindFileByRootHash(rootHash common.OmniHash) (*File, error) {
	return scanFile(r.db.QueryRow(fileSelect+` WHERE root_hash = ?`, rootHash.String()))
}

// FindFileByDecodingNext picks the next file ready to decode.
func (r *Repo) FindFileByDecodingNext() (*File, error) {
	return scanFile(r.db.QueryRow(fileSelect+`
    WHERE status = ?
    ORDER BY priority ASC, created_at ASC
    LIMIT 1
`, string(FileStatusDecoding)))
}

func (r *Repo) ListFiles() ([]*File, error) {
	rows, err := r.db.Query(fileSelect)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	var res []*File
	for rows.Next() {
		f, err := scanFileRows(rows)
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

func (r *Repo) UpdateFileStatus(id string, status FileStatus) error {
	_, err := r.db.Exec(`
UPDATE files SET status = ?, updated_at = ? WHERE id = ?
`, string(status), r.clock.Now(), id)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func (r *Repo) SetFileFailed(id string, reason string) error {
	_, err := r.db.Exec(`
UPDATE files SET status = ?, failed_reason = ?, updated_at = ? WHERE id = ?
`, string(FileStatusFailed), reason, r.clock.Now(), id)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

// MarkBlockDownloaded flags every matching block row downloaded and moves
// the owning file's counters, switching it to Decoding when the layer is
// complete. It reports whether the file's current layer is now complete,
// that is, whether the file switched to Decoding.
func (r *Repo) MarkBlockDownloaded(rootHash, blockHash common.OmniHash) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
UPDATE blocks SET downloaded = 1
    WHERE root_hash = ? AND block_hash = ? AND downloaded = 0
`, rootHash.String(), blockHash.String())
	if err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if affected == 0 {
		return false, nil
	}

	f, err := scanFile(tx.QueryRow(fileSelect+` WHERE root_hash = ?`, rootHash.String()))
	if err != nil {
		return false, err
	}
	if f == nil {
		return false, tx.Commit()
	}

	downloaded := f.BlockCountDownloaded + uint32(affected)
	status := FileStatusDownloading
	if downloaded >= f.BlockCountTotal {
		status = FileStatusDecoding
	}
	if _, err := tx.Exec(`
UPDATE files SET block_count_downloaded = ?, status = ?, updated_at = ? WHERE id = ?
`, downloaded, string(status), r.clock.Now(), f.ID); err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}

	if err := tx.Commit(); err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return status == FileStatusDecoding, nil
}

// HasBlock reports whether any subscription wants this block.
func (r *Repo) HasBlock(rootHash, blockHash common.OmniHash) (bool, error) {
	var count int
	err := r.db.QueryRow(`
SELECT COUNT(1) FROM blocks WHERE root_hash = ? AND block_hash = ? LIMIT 1
`, rootHash.String(), blockHash.String()).Scan(&count)
	if err != nil {
		return false, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return count > 0, nil
}

// FindBlocksByRootHashAndRank lists one layer's tracked blocks in index
// order.
func (r *Repo) FindBlocksByRootHashAndRank(rootHash common.OmniHash, rank uint32) ([]*Block, error) {
	rows, err := r.db.Query(`
SELECT root_hash, block_hash, rank, idx, downloaded
    FROM blocks
    WHERE root_hash = ? AND rank = ?
    ORDER BY idx ASC
`, rootHash.String(), rank)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// FindWantBlockHashes lists the not-yet-downloaded hashes of a layer.
func (r *Repo) FindWantBlockHashes(rootHash common.OmniHash, rank uint32) ([]common.OmniHash, error) {
	rows, err := r.db.Query(`
SELECT block_hash
    FROM blocks
    WHERE root_hash = ? AND rank = ? AND downloaded = 0
    ORDER BY idx ASC
`, rootHash.String(), rank)
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

// ReplaceFileLayer swaps the file's tracked blocks for the next layer
// down: counters reset, status back to Downloading.
func (r *Repo) ReplaceFileLayer(f *File, newRank uint32, newBlocks []*Block) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
UPDATE files
    SET rank = ?, block_count_downloaded = 0, block_count_total = ?, status = ?, updated_at = ?
    WHERE id = ?
`, newRank, len(newBlocks), string(FileStatusDownloading), r.clock.Now(), f.ID); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	if err := upsertBlocksTx(tx, newBlocks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

// DeleteFile removes the subscription and, when no other subscription
// references the same root hash, its block rows too.
func (r *Repo) DeleteFile(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer tx.Rollback()

	f, err := scanFile(tx.QueryRow(fileSelect+` WHERE id = ?`, id))
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}

	var remaining int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM files WHERE root_hash = ?`, f.RootHash.String()).Scan(&remaining); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(`DELETE FROM blocks WHERE root_hash = ?`, f.RootHash.String()); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

// LiveRootHashes lists the root hashes still referenced by any file row.
func (r *Repo) LiveRootHashes() (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT DISTINCT root_hash FROM files`)
	if err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer rows.Close()

	res := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, axerr.New(axerr.DatabaseError).WithSource(err)
		}
		res[hash] = true
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

const fileSelect = `
SELECT id, root_hash, file_path, rank, block_count_downloaded, block_count_total, attrs, priority, status, failed_reason, created_at, updated_at
    FROM files`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFileFrom(s rowScanner) (*File, error) {
	var f File
	var hash, status string
	var attrs, failedReason sql.NullString
	err := s.Scan(&f.ID, &hash, &f.FilePath, &f.Rank, &f.BlockCountDownloaded, &f.BlockCountTotal, &attrs, &f.Priority, &status, &failedReason, &f.CreatedAt, &f.UpdatedAt)
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
	f.FailedReason = failedReason.String
	f.Status = FileStatus(status)
	return &f, nil
}

func scanFile(row *sql.Row) (*File, error) {
	return scanFileFrom(row)
}

func scanFileRows(rows *sql.Rows) (*File, error) {
	return scanFileFrom(rows)
}

func scanBlocks(rows *sql.Rows) ([]*Block, error) {
	var res []*Block
	for rows.Next() {
		var b Block
		var rootHash, blockHash string
		var downloaded int
		if err := rows.Scan(&rootHash, &blockHash, &b.Rank, &b.Index, &downloaded); err != nil {
			return nil, axerr.New(axerr.DatabaseError).WithSource(err)
		}
		rh, err := common.ParseOmniHash(rootHash)
		if err != nil {
			return nil, err
		}
		bh, err := common.ParseOmniHash(blockHash)
		if err != nil {
			return nil, err
		}
		b.RootHash = rh
		b.BlockHash = bh
		b.Downloaded = downloaded != 0
		res = append(res, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return res, nil
}

func insertFileTx(tx *sql.Tx, f *File) error {
	if _, err := tx.Exec(`
INSERT INTO files (id, root_hash, file_path, rank, block_count_downloaded, block_count_total, attrs, priority, status, failed_reason, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, f.ID, f.RootHash.String(), f.FilePath, f.Rank, f.BlockCountDownloaded, f.BlockCountTotal, nullable(f.Attrs), f.Priority, string(f.Status), nullable(f.FailedReason), f.CreatedAt, f.UpdatedAt); err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	return nil
}

func upsertBlocksTx(tx *sql.Tx, blocks []*Block) error {
	stmt, err := tx.Prepare(`
INSERT INTO blocks (root_hash, block_hash, rank, idx, downloaded)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT (root_hash, block_hash, rank, idx) DO UPDATE SET downloaded = excluded.downloaded
`)
	if err != nil {
		return axerr.New(axerr.DatabaseError).WithSource(err)
	}
	defer stmt.Close()

	for _, b := range blocks {
		downloaded := 0
		if b.Downloaded {
			downloaded = 1
		}
		if _, err := stmt.Exec(b.RootHash.String(), b.BlockHash.String(), b.Rank, b.Index, downloaded); err != nil {
			return axerr.New(axerr.DatabaseError).WithSource(err)
		}
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
