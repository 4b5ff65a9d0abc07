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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/omnius-labs/axus/base"
)

func TestVolatileSetTTL(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewVolatileSet[string](time.Minute, clock)

	s.Insert("a")

	clock.Advance(59 * time.Second)
	s.Refresh()
	assert.True(t, s.Contains("a"))

	clock.Advance(2 * time.Second)
	s.Refresh()
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())
}

func TestVolatileSetShrinkKeepsMostRecent(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewVolatileSet[string](time.Hour, clock)

	s.Insert("old")
	clock.Advance(time.Second)
	s.Insert("mid")
	clock.Advance(time.Second)
	s.Insert("new")

	s.Shrink(2)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains("old"))
	assert.True(t, s.Contains("mid"))
	assert.True(t, s.Contains("new"))
}

func TestVolatileMapTTL(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewVolatileMap[string, int](time.Minute, clock)

	m.Put("k", 7)
	v, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	clock.Advance(61 * time.Second)
	m.Refresh()
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestVolatileMapShrink(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewVolatileMap[string, int](time.Hour, clock)

	m.Put("a", 1)
	clock.Advance(time.Second)
	m.Put("b", 2)
	clock.Advance(time.Second)
	m.Put("c", 3)

	m.Shrink(1)
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get("c")
	assert.True(t, ok)
}
