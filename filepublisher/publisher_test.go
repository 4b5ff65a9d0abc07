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

package filepublisher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/rocketpack"
	"github.com/omnius-labs/axus/storage/blockstore"
)

func newTestPublisher(t *testing.T) (*Publisher, *Repo, blockstore.Store) {
	t.Helper()

	clock := base.NewSystemClock()
	repo, err := NewRepo(t.TempDir(), clock)
	require.NoError(t, err)

	blocks, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p, err := New(repo, blocks, base.NewTsidProvider(clock), clock)
	require.NoError(t, err)

	t.Cleanup(func() {
		p.Shutdown()
		blocks.Close()
		repo.Close()
	})
	return p, repo, blocks
}

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
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

func TestSingleBlockRootHashEqualsContentHash(t *testing.T) {
	p, _, _ := newTestPublisher(t)

	content := []byte("hello")
	path := writeTempFile(t, content)

	_, err := p.Import(path, "hello.txt", 1024, "", 0)
	require.NoError(t, err)

	waitFor(t, func() bool {
		roots, err := p.PublishedRootHashes()
		return err == nil && len(roots) == 1
	})

	roots, err := p.PublishedRootHashes()
	require.NoError(t, err)
	assert.True(t, common.ComputeHash(content).Equal(roots[0]))

	v, ok, err := p.ReadBlock(roots[0], roots[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, content, v)
}

func TestMerkleLayering(t *testing.T) {
	p, _, _ := newTestPublisher(t)

	// Three full rank-0 blocks; their hash list fits into one rank-1
	// block whose hash becomes the root.
	blockSize := uint32(256)
	content := bytes.Repeat([]byte{0xaa}, 256)
	content = append(content, bytes.Repeat([]byte{0xbb}, 256)...)
	content = append(content, bytes.Repeat([]byte{0xcc}, 256)...)
	path := writeTempFile(t, content)

	_, err := p.Import(path, "three.bin", blockSize, "", 0)
	require.NoError(t, err)

	waitFor(t, func() bool {
		roots, err := p.PublishedRootHashes()
		return err == nil && len(roots) == 1
	})

	leafHashes := []common.OmniHash{
		common.ComputeHash(content[:256]),
		common.ComputeHash(content[256:512]),
		common.ComputeHash(content[512:]),
	}
	layer := &common.MerkleLayer{Rank: 0, Hashes: leafHashes}
	raw, err := rocketpack.Encode(layer)
	require.NoError(t, err)
	wantRoot := common.ComputeHash(raw)

	roots, err := p.PublishedRootHashes()
	require.NoError(t, err)
	assert.True(t, wantRoot.Equal(roots[0]))

	// All four blocks are retrievable under the root.
	for _, h := range append(leafHashes, wantRoot) {
		ok, err := p.HasBlock(roots[0], h)
		require.NoError(t, err)
		assert.True(t, ok)
		_, stored, err := p.ReadBlock(roots[0], h)
		require.NoError(t, err)
		assert.True(t, stored)
	}
}

func TestDeterministicEncodingCoalesces(t *testing.T) {
	p, repo, _ := newTestPublisher(t)

	content := bytes.Repeat([]byte("xyz"), 100)
	pathA := writeTempFile(t, content)
	pathB := writeTempFile(t, content)

	_, err := p.Import(pathA, "a.bin", 256, "", 0)
	require.NoError(t, err)
	_, err = p.Import(pathB, "b.bin", 256, "", 0)
	require.NoError(t, err)

	waitFor(t, func() bool {
		files, err := repo.ListUncommittedFiles()
		return err == nil && len(files) == 0
	})

	roots, err := p.PublishedRootHashes()
	require.NoError(t, err)
	require.Len(t, roots, 1)

	f, err := repo.FindCommittedFileByRootHash(roots[0])
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "b.bin", f.FileName)
}

func TestStartupSweepsCanceledResidue(t *testing.T) {
	clock := base.NewSystemClock()
	repoDir := t.TempDir()
	repo, err := NewRepo(repoDir, clock)
	require.NoError(t, err)

	blocks, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Simulate an interrupted run: a canceled row with a leftover block.
	now := clock.Now()
	require.NoError(t, repo.InsertUncommittedFile(&UncommittedFile{
		ID:        "stale-0001",
		FilePath:  "/nowhere",
		FileName:  "stale.bin",
		BlockSize: 64,
		Status:    UncommittedFileStatusCanceled,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	h := common.ComputeHash([]byte("residue"))
	require.NoError(t, repo.InsertOrIgnoreUncommittedBlock(&UncommittedBlock{
		FileID: "stale-0001", BlockHash: h, Rank: 0, Index: 0,
	}))
	require.NoError(t, blocks.Put(uncommittedBlockName("stale-0001", h), []byte("residue"), false))
	// An orphan whose file row never existed.
	require.NoError(t, blocks.Put("U/ghost-0001/"+h.String(), []byte("orphan"), false))

	p, err := New(repo, blocks, base.NewTsidProvider(clock), clock)
	require.NoError(t, err)
	defer func() {
		p.Shutdown()
		blocks.Close()
		repo.Close()
	}()

	files, err := repo.ListUncommittedFiles()
	require.NoError(t, err)
	assert.Len(t, files, 0)

	ok, err := blocks.Contains(uncommittedBlockName("stale-0001", h))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = blocks.Contains("U/ghost-0001/" + h.String())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImportRejectsZeroBlockSize(t *testing.T) {
	p, _, _ := newTestPublisher(t)
	_, err := p.Import("/nowhere", "x", 0, "", 0)
	assert.Error(t, err)
}
