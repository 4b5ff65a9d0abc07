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
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/omnius-labs/axus/rocketpack"
)

const (
	maxNodeIDLen       = 32
	maxNodeAddrCount   = 128
	maxNodeAddrStrLen  = 1024
	maxAssetKeyTypeLen = 64
)

// NodeProfile identifies a peer on the overlay. The id is fixed at node
// creation; addrs may change between gossip rounds. Two profiles are equal
// iff their ids are equal.
type NodeProfile struct {
	ID    []byte
	Addrs []OmniAddr
}

func (p *NodeProfile) Equal(other *NodeProfile) bool {
	return other != nil && bytes.Equal(p.ID, other.ID)
}

// Key returns the session-map key form of the id.
func (p *NodeProfile) Key() string {
	return string(p.ID)
}

func (p *NodeProfile) String() string {
	addrs := make([]string, 0, len(p.Addrs))
	for _, a := range p.Addrs {
		addrs = append(addrs, a.String())
	}
	return hex.EncodeToString(p.ID) + "@" + strings.Join(addrs, ",")
}

func (p *NodeProfile) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutBytes(p.ID)
	w.PutU32(uint32(len(p.Addrs)))
	for _, a := range p.Addrs {
		w.PutString(string(a))
	}
	return nil
}

func (p *NodeProfile) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	id, err := r.GetBytes(maxNodeIDLen)
	if err != nil {
		return err
	}
	n, err := r.GetU32()
	if err != nil {
		return err
	}
	if n > maxNodeAddrCount {
		return tooLargeList(n)
	}
	addrs := make([]OmniAddr, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.GetString(maxNodeAddrStrLen)
		if err != nil {
			return err
		}
		addrs = append(addrs, OmniAddr(s))
	}
	p.ID = id
	p.Addrs = addrs
	return nil
}

// AssetKey is the typed root-hash reference used as the gossip key.
type AssetKey struct {
	Type string
	Hash OmniHash
}

// NewFileAssetKey wraps a root hash into the "file" asset namespace.
func NewFileAssetKey(rootHash OmniHash) AssetKey {
	return AssetKey{Type: "file", Hash: rootHash}
}

func (k AssetKey) Equal(other AssetKey) bool {
	return k.Type == other.Type && k.Hash.Equal(other.Hash)
}

// Key returns a map-key form.
func (k AssetKey) Key() string {
	return k.Type + "/" + k.Hash.String()
}

func (k AssetKey) String() string {
	return k.Key()
}

func (k AssetKey) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutString(k.Type)
	return k.Hash.Pack(w, depth+1)
}

func (k *AssetKey) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	typ, err := r.GetString(maxAssetKeyTypeLen)
	if err != nil {
		return err
	}
	var hash OmniHash
	if err := hash.Unpack(r, depth+1); err != nil {
		return err
	}
	k.Type = typ
	k.Hash = hash
	return nil
}
