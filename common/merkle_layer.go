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

package common

import (
	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

// MaxMerkleLayerHashes bounds the hash count of a decoded interior layer.
const MaxMerkleLayerHashes = 128

// MerkleLayer is the wire and disk form of one interior node of a file's
// Merkle tree: the ordered block hashes of the layer below it.
type MerkleLayer struct {
	Rank   uint32
	Hashes []OmniHash
}

func (m *MerkleLayer) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(m.Rank)
	w.PutU32(uint32(len(m.Hashes)))
	for _, h := range m.Hashes {
		if err := h.Pack(w, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (m *MerkleLayer) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	rank, err := r.GetU32()
	if err != nil {
		return err
	}
	n, err := r.GetU32()
	if err != nil {
		return err
	}
	if n > MaxMerkleLayerHashes {
		return tooLargeList(n)
	}
	hashes := make([]OmniHash, 0, n)
	for i := uint32(0); i < n; i++ {
		var h OmniHash
		if err := h.Unpack(r, depth+1); err != nil {
			return err
		}
		hashes = append(hashes, h)
	}
	m.Rank = rank
	m.Hashes = hashes
	return nil
}

func tooLargeList(n uint32) error {
	return axerr.New(axerr.TooLarge).WithMessage("list too large: %d", n)
}
