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
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

// Node profiles persist and travel over HTTP in a canonical URI form:
//
//	axus:node/<base64url(crc32c_le(body))>.<base64url(body)>.1
//
// where body is the packed NodeProfile. Decoding recomputes and verifies
// the checksum.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const nodeURIScheme = "axus:node/"

// EncodeNodeProfileURI renders p into its URI form.
func EncodeNodeProfileURI(p *NodeProfile) (string, error) {
	body, err := rocketpack.Encode(p)
	if err != nil {
		return "", err
	}

	var crc [4]byte
	binary.LittleEndian.PutUint32(crc[:], crc32.Checksum(body, castagnoli))

	var b strings.Builder
	b.WriteString(nodeURIScheme)
	b.WriteString(base64.RawURLEncoding.EncodeToString(crc[:]))
	b.WriteByte('.')
	b.WriteString(base64.RawURLEncoding.EncodeToString(body))
	b.WriteString(".1")
	return b.String(), nil
}

// DecodeNodeProfileURI inverts EncodeNodeProfileURI.
func DecodeNodeProfileURI(text string) (*NodeProfile, error) {
	if !strings.HasPrefix(text, nodeURIScheme) {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid schema")
	}
	text = text[len(nodeURIScheme):]

	idx := strings.LastIndexByte(text, '.')
	if idx < 0 {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("version separator not found")
	}
	version, err := strconv.ParseUint(text[idx+1:], 10, 32)
	if err != nil {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid version").WithSource(err)
	}
	if version != 1 {
		return nil, axerr.New(axerr.UnsupportedVersion).WithMessage("unsupported uri version: %d", version)
	}
	text = text[:idx]

	idx = strings.IndexByte(text, '.')
	if idx < 0 {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("body separator not found")
	}

	crc, err := base64.RawURLEncoding.DecodeString(text[:idx])
	if err != nil || len(crc) != 4 {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid crc")
	}
	body, err := base64.RawURLEncoding.DecodeString(text[idx+1:])
	if err != nil {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid body").WithSource(err)
	}

	if binary.LittleEndian.Uint32(crc) != crc32.Checksum(body, castagnoli) {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid checksum")
	}

	var p NodeProfile
	if err := rocketpack.Decode(&p, body); err != nil {
		return nil, err
	}
	return &p, nil
}
