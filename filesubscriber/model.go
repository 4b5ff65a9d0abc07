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
	"time"

	"github.com/omnius-labs/axus/common"
)

// FileStatus tracks a subscription through download and decode.
type FileStatus string

const (
	FileStatusUnknown     FileStatus = "Unknown"
	FileStatusDownloading FileStatus = "Downloading"
	FileStatusDecoding    FileStatus = "Decoding"
	FileStatusCompleted   FileStatus = "Completed"
	FileStatusFailed      FileStatus = "Failed"
	FileStatusCanceled    FileStatus = "Canceled"
)

// topRankUnknown marks a freshly subscribed file: the tree depth is not
// known until the root block arrives and is parsed.
const topRankUnknown = ^uint32(0)

// File is one subscription. rank is the layer currently being assembled,
// walking the Merkle tree top-down until rank 0 decodes into the output
// file.
type File struct {
	ID                   string
	RootHash             common.OmniHash
	FilePath             string
	Rank                 uint32
	BlockCountDownloaded uint32
	BlockCountTotal      uint32
	Attrs                string
	Priority             int64
	Status               FileStatus
	FailedReason         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Block is one tracked block of a subscription's current layer.
type Block struct {
	RootHash   common.OmniHash
	BlockHash  common.OmniHash
	Rank       uint32
	Index      uint32
	Downloaded bool
}

func blockName(rootHash, blockHash common.OmniHash) string {
	return rootHash.String() + "/" + blockHash.String()
}
