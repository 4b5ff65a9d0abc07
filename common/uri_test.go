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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
)

func TestNodeProfileURIRoundTrip(t *testing.T) {
	p := &NodeProfile{
		ID:    []byte{1, 2, 3},
		Addrs: []OmniAddr{"a", "b", "c"},
	}

	s, err := EncodeNodeProfileURI(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "axus:node/"))
	assert.True(t, strings.HasSuffix(s, ".1"))

	got, err := DecodeNodeProfileURI(s)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Addrs, got.Addrs)
}

func TestNodeProfileURIBitFlip(t *testing.T) {
	p := &NodeProfile{
		ID:    []byte{9, 8, 7, 6},
		Addrs: []OmniAddr{"tcp(ip4(127.0.0.1),60000)"},
	}
	s, err := EncodeNodeProfileURI(p)
	require.NoError(t, err)

	// Flip one character inside the body part.
	idx := strings.IndexByte(s, '.') + 2
	flipped := []byte(s)
	if flipped[idx] == 'A' {
		flipped[idx] = 'B'
	} else {
		flipped[idx] = 'A'
	}

	_, err = DecodeNodeProfileURI(string(flipped))
	require.Error(t, err)
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))
}

func TestNodeProfileURIMalformed(t *testing.T) {
	_, err := DecodeNodeProfileURI("http://example.com")
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))

	_, err = DecodeNodeProfileURI("axus:node/AAAA")
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))

	_, err = DecodeNodeProfileURI("axus:node/AAAA.BBBB.9")
	assert.Equal(t, axerr.UnsupportedVersion, axerr.KindOf(err))
}
