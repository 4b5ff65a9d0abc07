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
	"time"

	"github.com/omnius-labs/axus/common"
)

// UncommittedFileStatus tracks a publish request until its commit.
type UncommittedFileStatus string

const (
	UncommittedFileStatusPending  UncommittedFileStatus = "Pending"
	UncommittedFileStatusEncoding UncommittedFileStatus = "Encoding"
	UncommittedFileStatusCanceled UncommittedFileStatus = "Canceled"
	UncommittedFileStatusFailed   UncommittedFileStatus = "Failed"
)

// UncommittedFile is a publish request that has not reached its root hash
// yet. The row lives only until commit.
type UncommittedFile struct {
	ID           string
	FilePath     string
	FileName     string
	BlockSize    uint32
	Attrs        string
	Priority     int64
	Status       UncommittedFileStatus
	FailedReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UncommittedBlock is one encoded block of an in-flight publish. Rank 0 is
// a leaf; rank r+1 holds the serialized hash list of rank r.
type UncommittedBlock struct {
	FileID    string
	BlockHash common.OmniHash
	Rank      uint32
	Index     uint32
}

// CommittedFile is a published file, keyed by its root hash. Only the file
// name and updatedAt may change afterwards.
type CommittedFile struct {
	RootHash  common.OmniHash
	FileName  string
	BlockSize uint32
	Attrs     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommittedBlock ties a block hash into a committed file's tree. Blocks
// may be shared across files carrying the same root hash.
type CommittedBlock struct {
	RootHash  common.OmniHash
	BlockHash common.OmniHash
	Rank      uint32
	Index     uint32
}

// Block store names: uncommitted blocks live under the file id, committed
// ones under the root hash. Commit is a rename between the two.
func uncommittedBlockName(fileID string, blockHash common.OmniHash) string {
	return "U/" + fileID + "/" + blockHash.String()
}

func committedBlockName(rootHash, blockHash common.OmniHash) string {
	return "C/" + rootHash.String() + "/" + blockHash.String()
}
