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
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

func TestComputeHash(t *testing.T) {
	// Known Sha3-256 digest of "hello".
	want, _ := hex.DecodeString("3338be694f50c5f338814986cdf0686453a888b84f424d792af4b9202398f392")

	h := ComputeHash([]byte("hello"))
	assert.Equal(t, HashAlgorithmSha3256, h.Algorithm)
	assert.Equal(t, want, h.Value)
	assert.Equal(t, "sha3-256:3338be694f50c5f338814986cdf0686453a888b84f424d792af4b9202398f392", h.String())
}

func TestParseOmniHash(t *testing.T) {
	h := ComputeHash([]byte("round trip"))
	parsed, err := ParseOmniHash(h.String())
	require.NoError(t, err)
	assert.True(t, h.Equal(parsed))

	_, err = ParseOmniHash("nocolon")
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))

	_, err = ParseOmniHash("md5:abcd")
	assert.Equal(t, axerr.UnsupportedType, axerr.KindOf(err))

	_, err = ParseOmniHash("sha3-256:zzzz")
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))
}

func TestOmniHashPackUnpack(t *testing.T) {
	h := ComputeHash([]byte("packed"))
	b, err := rocketpack.Encode(&h)
	require.NoError(t, err)

	var got OmniHash
	require.NoError(t, rocketpack.Decode(&got, b))
	assert.True(t, h.Equal(got))
}
