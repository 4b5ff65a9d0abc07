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
	"bytes"
	"math/bits"
	"sort"
)

// Distance returns the XOR distance between two ids: the position of the
// most significant differing bit plus one, counting from the final byte.
// Equal ids are at distance zero.
func Distance(x, y []byte) int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	for i := 0; i < n; i++ {
		v := x[i] ^ y[i]
		if v != 0 {
			return (8 - bits.LeadingZeros8(v)) + (n-(i+1))*8
		}
	}
	return 0
}

// Find returns the k ids among peers closest to target, ordered by
// ascending distance. The base id is excluded from the output; ties keep
// the input order.
func Find(base, target []byte, peers [][]byte, k int) [][]byte {
	type candidate struct {
		id    []byte
		dist  int
		order int
	}

	candidates := make([]candidate, 0, len(peers))
	for i, p := range peers {
		if bytes.Equal(p, base) {
			continue
		}
		candidates = append(candidates, candidate{id: p, dist: Distance(p, target), order: i})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].order < candidates[j].order
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	res := make([][]byte, 0, k)
	for _, c := range candidates[:k] {
		res = append(res, c.id)
	}
	return res
}
