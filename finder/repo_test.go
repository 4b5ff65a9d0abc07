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

package finder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
)

func TestRepoInsertFetchShrink(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo, err := NewRepo(t.TempDir(), clock)
	require.NoError(t, err)
	defer repo.Close()

	p1 := &common.NodeProfile{ID: []byte{0}, Addrs: []common.OmniAddr{"test"}}
	p2 := &common.NodeProfile{ID: []byte{1}, Addrs: []common.OmniAddr{"test"}}

	require.NoError(t, repo.InsertOrIgnore([]*common.NodeProfile{p1, p2}, 1))

	got, err := repo.Fetch()
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Idempotent: re-inserting the same rows changes nothing.
	require.NoError(t, repo.InsertOrIgnore([]*common.NodeProfile{p1}, 1))
	got, err = repo.Fetch()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, repo.Shrink(1))
	got, err = repo.Fetch()
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, repo.Shrink(0))
	got, err = repo.Fetch()
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestRepoFetchOrdering(t *testing.T) {
	clock := base.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo, err := NewRepo(t.TempDir(), clock)
	require.NoError(t, err)
	defer repo.Close()

	light := &common.NodeProfile{ID: []byte{10}, Addrs: []common.OmniAddr{"light"}}
	heavy := &common.NodeProfile{ID: []byte{20}, Addrs: []common.OmniAddr{"heavy"}}

	require.NoError(t, repo.InsertOrIgnore([]*common.NodeProfile{light}, 0))
	clock.Advance(time.Minute)
	require.NoError(t, repo.InsertOrIgnore([]*common.NodeProfile{heavy}, 5))

	got, err := repo.Fetch()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, heavy.ID, got[0].ID)
}
