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
	"context"
	"os"
	"strings"
	"sync"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/event"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/rocketpack"
	"github.com/omnius-labs/axus/storage/blockstore"
)

// Subscriber tracks wanted files, ingests delivered blocks, and walks
// each file's Merkle tree top-down until the leaf layer decodes into the
// output file.
type Subscriber struct {
	repo   *Repo
	blocks blockstore.Store
	tsid   base.TsidProvider
	clock  base.Clock
	logger log.Logger

	currentMu       sync.Mutex
	currentFileID   string
	enqueueListener *event.Listener
	cancelListener  *event.Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the decoder task and sweeps block-store names whose root
// hash is no longer subscribed.
func New(repo *Repo, blocks blockstore.Store, tsid base.TsidProvider, clock base.Clock) (*Subscriber, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Subscriber{
		repo:            repo,
		blocks:          blocks,
		tsid:            tsid,
		clock:           clock,
		logger:          log.New("module", "filesubscriber"),
		enqueueListener: event.NewListener(),
		cancelListener:  event.NewListener(),
		cancel:          cancel,
	}

	if err := s.collectGarbage(); err != nil {
		s.logger.Warn("startup garbage collection failed", "err", err)
	}

	s.wg.Add(1)
	go s.decodeLoop(ctx)
	s.enqueueListener.Notify()

	return s, nil
}

func (s *Subscriber) Shutdown() {
	s.cancel()
	s.enqueueListener.Notify()
	s.wg.Wait()
}

// Subscribe registers interest in a root hash. The only block initially
// tracked is the root itself; its rank is resolved when it arrives.
func (s *Subscriber) Subscribe(rootHash common.OmniHash, filePath string, attrs string, priority int64) (string, error) {
	id := s.tsid.Create()
	now := s.clock.Now()

	file := &File{
		ID:                   id,
		RootHash:             rootHash,
		FilePath:             filePath,
		Rank:                 topRankUnknown,
		BlockCountDownloaded: 0,
		BlockCountTotal:      1,
		Attrs:                attrs,
		Priority:             priority,
		Status:               FileStatusDownloading,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	rootBlock := &Block{
		RootHash:  rootHash,
		BlockHash: rootHash,
		Rank:      topRankUnknown,
		Index:     0,
	}
	if err := s.repo.InsertFileWithBlocks(file, []*Block{rootBlock}); err != nil {
		return "", err
	}
	return id, nil
}

// SubscribedRootHashes enumerates the currently tracked files.
func (s *Subscriber) SubscribedRootHashes() ([]common.OmniHash, error) {
	files, err := s.repo.ListFiles()
	if err != nil {
		return nil, err
	}
	res := make([]common.OmniHash, 0, len(files))
	for _, f := range files {
		res = append(res, f.RootHash)
	}
	return res, nil
}

// WantBlockHashes lists the block hashes still missing for a root hash's
// current layer; the exchanger turns these into want requests.
func (s *Subscriber) WantBlockHashes(rootHash common.OmniHash) ([]common.OmniHash, error) {
	file, err := s.repo.FindFileByRootHash(rootHash)
	if err != nil || file == nil {
		return nil, err
	}
	return s.repo.FindWantBlockHashes(rootHash, file.Rank)
}

// WriteBlock ingests one block delivered by a peer. Blocks nobody asked
// for are silently dropped; a verified mismatch between hash and content
// never reaches the store.
func (s *Subscriber) WriteBlock(rootHash, blockHash common.OmniHash, value []byte) error {
	wanted, err := s.repo.HasBlock(rootHash, blockHash)
	if err != nil {
		return err
	}
	if !wanted {
		return nil
	}

	if !common.ComputeHash(value).Equal(blockHash) {
		return axerr.New(axerr.InvalidFormat).WithMessage("block content does not match its hash")
	}

	if err := s.blocks.Put(blockName(rootHash, blockHash), value, true); err != nil {
		return err
	}

	layerComplete, err := s.repo.MarkBlockDownloaded(rootHash, blockHash)
	if err != nil {
		return err
	}
	if layerComplete {
		s.enqueueListener.Notify()
	}
	return nil
}

// Cancel marks the subscription canceled and interrupts the decoder when
// it is mid-decode on the same file.
func (s *Subscriber) Cancel(fileID string) error {
	if err := s.repo.UpdateFileStatus(fileID, FileStatusCanceled); err != nil {
		return err
	}

	s.currentMu.Lock()
	current := s.currentFileID
	s.currentMu.Unlock()

	if current == fileID {
		s.cancelListener.Notify()
	}
	s.enqueueListener.Notify()
	return nil
}

// Delete removes the subscription. Orphaned block payloads are swept from
// the store when the last subscription of a root hash goes away.
func (s *Subscriber) Delete(fileID string) error {
	if err := s.repo.DeleteFile(fileID); err != nil {
		return err
	}
	return s.collectGarbage()
}

// collectGarbage shrinks the block store down to names whose root hash is
// still subscribed.
func (s *Subscriber) collectGarbage() error {
	live, err := s.repo.LiveRootHashes()
	if err != nil {
		return err
	}
	return s.blocks.Shrink(func(name string) bool {
		idx := strings.LastIndexByte(name, '/')
		if idx < 0 {
			return false
		}
		return live[name[:idx]]
	})
}

func (s *Subscriber) decodeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		for ctx.Err() == nil && s.decodeNext() {
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-s.enqueueListener.C():
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscriber) decodeNext() bool {
	file := s.pickup()
	if file == nil {
		return false
	}

	if err := s.decodeFile(file); err != nil {
		if axerr.KindOf(err) != axerr.Reject {
			s.logger.Warn("decode failed", "fileId", file.ID, "err", err)
			if err := s.repo.SetFileFailed(file.ID, err.Error()); err != nil {
				s.logger.Warn("failed-state update failed", "fileId", file.ID, "err", err)
			}
		}
	}

	s.currentMu.Lock()
	s.currentFileID = ""
	s.currentMu.Unlock()
	return true
}

func (s *Subscriber) pickup() *File {
	file, err := s.repo.FindFileByDecodingNext()
	if err != nil {
		s.logger.Warn("pickup query failed", "err", err)
		return nil
	}
	if file == nil {
		return nil
	}

	select {
	case <-s.cancelListener.C():
	default:
	}

	s.currentMu.Lock()
	s.currentFileID = file.ID
	s.currentMu.Unlock()

	file, err = s.repo.FindFileByID(file.ID)
	if err != nil {
		s.logger.Warn("pickup re-read failed", "err", err)
		return nil
	}
	if file == nil {
		s.currentMu.Lock()
		s.currentFileID = ""
		s.currentMu.Unlock()
		return nil
	}
	return file
}

func (s *Subscriber) canceled() bool {
	select {
	case <-s.cancelListener.C():
		return true
	default:
		return false
	}
}

// decodeFile runs one decode step. The leaf layer streams blocks into the
// output file; an interior layer is parsed and replaces the tracked block
// set with the layer below it.
func (s *Subscriber) decodeFile(file *File) error {
	if file.Status == FileStatusCanceled {
		if err := s.repo.DeleteFile(file.ID); err != nil {
			return err
		}
		return s.collectGarbage()
	}

	if file.Rank == topRankUnknown {
		return s.decodeTopBlock(file)
	}

	blocks, err := s.repo.FindBlocksByRootHashAndRank(file.RootHash, file.Rank)
	if err != nil {
		return err
	}

	if file.Rank == 0 {
		return s.decodeLeafLayer(file, blocks)
	}
	return s.decodeInteriorLayer(file, blocks)
}

// decodeTopBlock resolves a fresh subscription: the root block either
// parses as an interior layer or is the whole file.
func (s *Subscriber) decodeTopBlock(file *File) error {
	value, ok, err := s.blocks.Get(blockName(file.RootHash, file.RootHash))
	if err != nil {
		return err
	}
	if !ok {
		return axerr.New(axerr.NotFound).WithMessage("root block is not stored")
	}

	var layer common.MerkleLayer
	if err := rocketpack.Decode(&layer, value); err == nil && len(layer.Hashes) > 0 {
		return s.scheduleLayer(file, &layer)
	}

	// Single-block file: the root is the rank-0 block.
	if err := os.WriteFile(file.FilePath, value, 0o644); err != nil {
		return axerr.New(axerr.IoError).WithMessage("output write failed").WithSource(err)
	}
	if err := s.repo.UpdateFileStatus(file.ID, FileStatusCompleted); err != nil {
		return err
	}
	s.logger.Info("file completed", "fileId", file.ID, "path", file.FilePath)
	return nil
}

func (s *Subscriber) decodeLeafLayer(file *File, blocks []*Block) error {
	out, err := os.Create(file.FilePath)
	if err != nil {
		return axerr.New(axerr.IoError).WithMessage("cannot create %s", file.FilePath).WithSource(err)
	}
	defer out.Close()

	for _, b := range blocks {
		if s.canceled() {
			return axerr.New(axerr.Reject).WithMessage("decode canceled")
		}
		value, ok, err := s.blocks.Get(blockName(file.RootHash, b.BlockHash))
		if err != nil {
			return err
		}
		if !ok {
			return axerr.New(axerr.NotFound).WithMessage("block is not stored: %s", b.BlockHash)
		}
		if _, err := out.Write(value); err != nil {
			return axerr.New(axerr.IoError).WithMessage("output write failed").WithSource(err)
		}
	}
	if err := out.Sync(); err != nil {
		return axerr.New(axerr.IoError).WithSource(err)
	}

	if err := s.repo.UpdateFileStatus(file.ID, FileStatusCompleted); err != nil {
		return err
	}
	s.logger.Info("file completed", "fileId", file.ID, "path", file.FilePath)
	return nil
}

func (s *Subscriber) decodeInteriorLayer(file *File, blocks []*Block) error {
	var raw []byte
	for _, b := range blocks {
		value, ok, err := s.blocks.Get(blockName(file.RootHash, b.BlockHash))
		if err != nil {
			return err
		}
		if !ok {
			return axerr.New(axerr.NotFound).WithMessage("block is not stored: %s", b.BlockHash)
		}
		raw = append(raw, value...)
	}

	var layer common.MerkleLayer
	if err := rocketpack.Decode(&layer, raw); err != nil {
		return err
	}
	if layer.Rank != file.Rank-1 {
		return axerr.New(axerr.InvalidFormat).WithMessage("unexpected layer rank: %d", layer.Rank)
	}
	return s.scheduleLayer(file, &layer)
}

// scheduleLayer replaces the tracked blocks with the resolved layer's and
// sends the file back to Downloading.
func (s *Subscriber) scheduleLayer(file *File, layer *common.MerkleLayer) error {
	newBlocks := make([]*Block, 0, len(layer.Hashes))
	for i, h := range layer.Hashes {
		newBlocks = append(newBlocks, &Block{
			RootHash:  file.RootHash,
			BlockHash: h,
			Rank:      layer.Rank,
			Index:     uint32(i),
		})
	}
	if err := s.repo.ReplaceFileLayer(file, layer.Rank, newBlocks); err != nil {
		return err
	}
	s.logger.Info("layer scheduled", "fileId", file.ID, "rank", layer.Rank, "blocks", len(newBlocks))
	return nil
}
