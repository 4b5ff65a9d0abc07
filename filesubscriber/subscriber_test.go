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

package filesubscriber

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/filepublisher"
	"github.com/omnius-labs/axus/storage/blockstore"
)

func newTestSubscriber(t *testing.T) (*Subscriber, *Repo) {
	t.Helper()

	clock := base.NewSystemClock()
	repo, err := NewRepo(t.TempDir(), clock)
	require.NoError(t, err)

	blocks, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	s, err := New(repo, blocks, base.NewTsidProvider(clock), clock)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Shutdown()
		blocks.Close()
		repo.Close()
	})
	return s, repo
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// publishedBlocks publishes content through a real publisher and returns
// the root hash plus every committed block payload keyed by hash.
func publishedBlocks(t *testing.T, content []byte, blockSize uint32) (common.OmniHash, map[string][]byte) {
	t.Helper()

	clock := base.NewSystemClock()
	repo, err := filepublisher.NewRepo(t.TempDir(), clock)
	require.NoError(t, err)
	store, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p, err := filepublisher.New(repo, store, base.NewTsidProvider(clock), clock)
	require.NoError(t, err)
	defer func() {
		p.Shutdown()
		store.Close()
		repo.Close()
	}()

	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	_, err = p.Import(path, "src.bin", blockSize, "", 0)
	require.NoError(t, err)

	var root common.OmniHash
	waitFor(t, func() bool {
		roots, err := p.PublishedRootHashes()
		if err != nil || len(roots) != 1 {
			return false
		}
		root = roots[0]
		return true
	})

	blocks := make(map[string][]byte)
	it, err := store.Names()
	require.NoError(t, err)
	for it.Next() {
		name := it.Name()
		idx := strings.LastIndexByte(name, '/')
		require.True(t, idx >= 0)
		h, err := common.ParseOmniHash(name[idx+1:])
		require.NoError(t, err)
		v, ok, err := store.Get(name)
		require.NoError(t, err)
		require.True(t, ok)
		blocks[h.String()] = v
	}
	require.NoError(t, it.Error())
	it.Release()

	return root, blocks
}

func TestSingleBlockFileRoundTrip(t *testing.T) {
	s, _ := newTestSubscriber(t)

	content := []byte("hello")
	root := common.ComputeHash(content)
	outPath := filepath.Join(t.TempDir(), "out.bin")

	id, err := s.Subscribe(root, outPath, "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.WriteBlock(root, root, content))

	waitFor(t, func() bool {
		f, err := s.repo.FindFileByID(id)
		return err == nil && f != nil && f.Status == FileStatusCompleted
	})

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestPublishThenDecodeRoundTrip(t *testing.T) {
	testDecode(t, false)
}

func TestOutOfOrderBlockDelivery(t *testing.T) {
	testDecode(t, true)
}

func testDecode(t *testing.T, reverse bool) {
	content := bytes.Repeat([]byte{0x11}, 256)
	content = append(content, bytes.Repeat([]byte{0x22}, 256)...)
	content = append(content, bytes.Repeat([]byte{0x33}, 200)...)
	root, blocks := publishedBlocks(t, content, 256)

	s, _ := newTestSubscriber(t)
	outPath := filepath.Join(t.TempDir(), "out.bin")

	id, err := s.Subscribe(root, outPath, "", 0)
	require.NoError(t, err)

	// The root block first; it resolves the tree's leaf layer.
	require.NoError(t, s.WriteBlock(root, root, blocks[root.String()]))

	var wants []common.OmniHash
	waitFor(t, func() bool {
		wants, err = s.WantBlockHashes(root)
		return err == nil && len(wants) == 3
	})

	if reverse {
		for i, j := 0, len(wants)-1; i < j; i, j = i+1, j-1 {
			wants[i], wants[j] = wants[j], wants[i]
		}
	}
	for _, h := range wants {
		require.NoError(t, s.WriteBlock(root, h, blocks[h.String()]))
	}

	waitFor(t, func() bool {
		f, err := s.repo.FindFileByID(id)
		return err == nil && f != nil && f.Status == FileStatusCompleted
	})

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUnwantedBlockIsDropped(t *testing.T) {
	s, repo := newTestSubscriber(t)

	root := common.ComputeHash([]byte("tracked"))
	_, err := s.Subscribe(root, filepath.Join(t.TempDir(), "out"), "", 0)
	require.NoError(t, err)

	stray := []byte("nobody asked for this")
	err = s.WriteBlock(root, common.ComputeHash(stray), stray)
	require.NoError(t, err)

	f, err := repo.FindFileByRootHash(root)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), f.BlockCountDownloaded)
}

func TestCorruptBlockIsRejected(t *testing.T) {
	s, _ := newTestSubscriber(t)

	content := []byte("authentic")
	root := common.ComputeHash(content)
	_, err := s.Subscribe(root, filepath.Join(t.TempDir(), "out"), "", 0)
	require.NoError(t, err)

	err = s.WriteBlock(root, root, []byte("tampered"))
	require.Error(t, err)
}

func TestDeleteRemovesOrphanedBlocks(t *testing.T) {
	s, repo := newTestSubscriber(t)

	content := []byte("short-lived")
	root := common.ComputeHash(content)
	id, err := s.Subscribe(root, filepath.Join(t.TempDir(), "out"), "", 0)
	require.NoError(t, err)

	require.NoError(t, s.WriteBlock(root, root, content))

	waitFor(t, func() bool {
		f, err := repo.FindFileByID(id)
		return err == nil && f != nil && f.Status == FileStatusCompleted
	})

	require.NoError(t, s.Delete(id))

	f, err := repo.FindFileByID(id)
	require.NoError(t, err)
	assert.Nil(t, f)

	ok, err := s.blocks.Contains(blockName(root, root))
	require.NoError(t, err)
	assert.False(t, ok)
}
