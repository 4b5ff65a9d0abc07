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

package fileexchange

import (
	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/rocketpack"
)

type exchangerVersion uint32

const exchangerVersionV1 exchangerVersion = 1

const (
	maxExchangeListLen  = 128
	maxBlockValueLen    = 32 * 1024 * 1024
	maxRequestTypeValue = 2
)

type exchangerHelloMessage struct {
	Version exchangerVersion
}

func (m *exchangerHelloMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.Version))
	return nil
}

func (m *exchangerHelloMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	m.Version = exchangerVersion(v)
	return nil
}

// handshakeMessage binds a freshly accepted session to a root hash. The
// exchange type describes the initiator's local role.
type handshakeMessage struct {
	ExchangeType ExchangeType
	RootHash     common.OmniHash
}

func (m *handshakeMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.ExchangeType))
	return m.RootHash.Pack(w, depth+1)
}

func (m *handshakeMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	if v > maxRequestTypeValue {
		return axerr.New(axerr.InvalidFormat).WithMessage("invalid exchange type: %d", v)
	}
	m.ExchangeType = ExchangeType(v)
	return m.RootHash.Unpack(r, depth+1)
}

// wireBlock is one delivered block.
type wireBlock struct {
	Hash  common.OmniHash
	Value []byte
}

// blockMessage is the symmetric want/give round exchanged on a tick: the
// hashes this side still wants, and the blocks it serves in return.
type blockMessage struct {
	WantBlockHashes []common.OmniHash
	GivenBlocks     []wireBlock
}

func (m *blockMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(len(m.WantBlockHashes)))
	for _, h := range m.WantBlockHashes {
		if err := h.Pack(w, depth+1); err != nil {
			return err
		}
	}
	w.PutU32(uint32(len(m.GivenBlocks)))
	for _, b := range m.GivenBlocks {
		if err := b.Hash.Pack(w, depth+1); err != nil {
			return err
		}
		w.PutBytes(b.Value)
	}
	return nil
}

func (m *blockMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}

	n, err := r.GetU32()
	if err != nil {
		return err
	}
	if n > maxExchangeListLen {
		return axerr.New(axerr.TooLarge).WithMessage("want list too large: %d", n)
	}
	wants := make([]common.OmniHash, 0, n)
	for i := uint32(0); i < n; i++ {
		var h common.OmniHash
		if err := h.Unpack(r, depth+1); err != nil {
			return err
		}
		wants = append(wants, h)
	}

	n, err = r.GetU32()
	if err != nil {
		return err
	}
	if n > maxExchangeListLen {
		return axerr.New(axerr.TooLarge).WithMessage("block list too large: %d", n)
	}
	blocks := make([]wireBlock, 0, n)
	for i := uint32(0); i < n; i++ {
		var b wireBlock
		if err := b.Hash.Unpack(r, depth+1); err != nil {
			return err
		}
		value, err := r.GetBytes(maxBlockValueLen)
		if err != nil {
			return err
		}
		b.Value = value
		blocks = append(blocks, b)
	}

	m.WantBlockHashes = wants
	m.GivenBlocks = blocks
	return nil
}
