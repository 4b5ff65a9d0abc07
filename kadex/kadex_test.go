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

package kadex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance([]byte{1, 1, 1, 1}, []byte{1, 1, 1, 1}))
	assert.Equal(t, 25, Distance([]byte{1, 1, 1, 1}, []byte{0, 1, 1, 1}))
	assert.Equal(t, 1, Distance([]byte{0, 0, 0, 1}, []byte{0, 0, 0, 0}))
	assert.Equal(t, 8, Distance([]byte{0, 0, 0, 0x80}, []byte{0, 0, 0, 0}))
}

func TestDistanceSymmetry(t *testing.T) {
	cases := [][2][]byte{
		{{0x12, 0x34}, {0x56, 0x78}},
		{{0, 0, 0}, {0xff, 0xff, 0xff}},
		{{0xaa}, {0x55}},
		{{1, 2, 3, 4, 5}, {1, 2, 3, 4, 6}},
	}
	for _, c := range cases {
		assert.Equal(t, Distance(c[0], c[1]), Distance(c[1], c[0]))
	}
}

func TestFind(t *testing.T) {
	base := []byte{0, 0}
	target := []byte{0, 1}
	peers := [][]byte{
		{0, 3},
		{0, 1},
		{0xff, 0},
		{0, 0}, // base itself, must be excluded
		{0, 5},
	}

	res := Find(base, target, peers, 3)
	assert.Len(t, res, 3)
	assert.Equal(t, []byte{0, 1}, res[0])

	// Ascending distance, base excluded.
	prev := -1
	for _, id := range res {
		d := Distance(id, target)
		assert.True(t, d >= prev)
		assert.NotEqual(t, base, id)
		prev = d
	}
}

func TestFindCardinality(t *testing.T) {
	base := []byte{9, 9}
	target := []byte{1, 2}
	peers := [][]byte{{1, 0}, {2, 0}, {3, 0}}

	assert.Len(t, Find(base, target, peers, 10), 3)
	assert.Len(t, Find(base, target, peers, 2), 2)
	assert.Len(t, Find(base, target, nil, 2), 0)
}

func TestFindTieBreakByInputOrder(t *testing.T) {
	base := []byte{0xff}
	target := []byte{0}
	// Both peers are at the same distance from the target.
	peers := [][]byte{{2}, {3}}

	res := Find(base, target, peers, 2)
	assert.Equal(t, []byte{2}, res[0])
	assert.Equal(t, []byte{3}, res[1])
}
