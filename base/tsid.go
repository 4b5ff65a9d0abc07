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

package base

import (
	"encoding/hex"
	"fmt"
	"strconv"

	uuid "github.com/satori/go.uuid"
)

// TsidProvider produces time-sorted unique identifiers. Uncommitted file
// rows and blob-in-kv block ids are keyed by these.
type TsidProvider interface {
	Create() string
}

type tsidProvider struct {
	clock Clock
}

// NewTsidProvider returns a provider whose ids sort by creation time:
// a base36 unix-millisecond prefix followed by a random tail.
func NewTsidProvider(clock Clock) TsidProvider {
	return &tsidProvider{clock: clock}
}

func (p *tsidProvider) Create() string {
	millis := p.clock.Now().UnixNano() / int64(1e6)
	u := uuid.NewV4()
	return fmt.Sprintf("%012s-%s", strconv.FormatInt(millis, 36), hex.EncodeToString(u.Bytes()[:4]))
}

// FakeTsidProvider hands out a deterministic sequence for tests.
type FakeTsidProvider struct {
	prefix string
	n      int
}

func NewFakeTsidProvider(prefix string) *FakeTsidProvider {
	return &FakeTsidProvider{prefix: prefix}
}

func (p *FakeTsidProvider) Create() string {
	p.n++
	return fmt.Sprintf("%s-%08d", p.prefix, p.n)
}
