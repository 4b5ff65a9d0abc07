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

	"golang.org/x/crypto/sha3"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

// HashAlgorithm tags an OmniHash with the digest that produced it.
type HashAlgorithm uint8

const (
	HashAlgorithmUnknown HashAlgorithm = 0
	HashAlgorithmSha3256 HashAlgorithm = 1
)

func (a HashAlgorithm) String() string {
	switch a {
	case HashAlgorithmSha3256:
		return "sha3-256"
	default:
		return "unknown"
	}
}

const maxHashValueLen = 64

// OmniHash is a tagged digest. Blocks, root hashes and asset keys are all
// identified by these.
type OmniHash struct {
	Algorithm HashAlgorithm
	Value     []byte
}

// ComputeHash digests b with Sha3-256.
func ComputeHash(b []byte) OmniHash {
	sum := sha3.Sum256(b)
	return OmniHash{Algorithm: HashAlgorithmSha3256, Value: sum[:]}
}

func (h OmniHash) String() string {
	return h.Algorithm.String() + ":" + hex.EncodeToString(h.Value)
}

func (h OmniHash) Equal(other OmniHash) bool {
	return h.Algorithm == other.Algorithm && bytes.Equal(h.Value, other.Value)
}

func (h OmniHash) IsZero() bool {
	return h.Algorithm == HashAlgorithmUnknown && len(h.Value) == 0
}

// ParseOmniHash inverts String.
func ParseOmniHash(s string) (OmniHash, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return OmniHash{}, axerr.New(axerr.InvalidFormat).WithMessage("missing algorithm separator")
	}

	var algo HashAlgorithm
	switch s[:idx] {
	case "sha3-256":
		algo = HashAlgorithmSha3256
	default:
		return OmniHash{}, axerr.New(axerr.UnsupportedType).WithMessage("unsupported hash algorithm: %s", s[:idx])
	}

	value, err := hex.DecodeString(s[idx+1:])
	if err != nil {
		return OmniHash{}, axerr.New(axerr.InvalidFormat).WithMessage("invalid hash hex").WithSource(err)
	}
	return OmniHash{Algorithm: algo, Value: value}, nil
}

func (h OmniHash) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU8(uint8(h.Algorithm))
	w.PutBytes(h.Value)
	return nil
}

func (h *OmniHash) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	algo, err := r.GetU8()
	if err != nil {
		return err
	}
	value, err := r.GetBytes(maxHashValueLen)
	if err != nil {
		return err
	}
	h.Algorithm = HashAlgorithm(algo)
	h.Value = value
	return nil
}
