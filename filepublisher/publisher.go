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
	"context"
	"io"
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

// Publisher encodes files into Merkle-tree blocks and commits them into
// the content-addressed store under their root hash. One file is encoded
// at a time; import only enqueues.
type Publisher struct {
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

// New starts the encoder task. Residue of interrupted encodes whose file
// row is gone or canceled is swept before the first pickup.
func New(repo *Repo, blocks blockstore.Store, tsid base.TsidProvider, clock base.Clock) (*Publisher, error) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Publisher{
		repo:            repo,
		blocks:          blocks,
		tsid:            tsid,
		clock:           clock,
		logger:          log.New("module", "filepublisher"),
		enqueueListener: event.NewListener(),
		cancelListener:  event.NewListener(),
		cancel:          cancel,
	}

	if err := p.collectGarbage(); err != nil {
		p.logger.Warn("startup garbage collection failed", "err", err)
	}

	p.wg.Add(1)
	go p.encodeLoop(ctx)

	// Anything left pending from the previous run resumes immediately.
	p.enqueueListener.Notify()

	return p, nil
}

// Shutdown aborts the encoder. Partial state stays on disk and is
// reclaimed on the next start.
func (p *Publisher) Shutdown() {
	p.cancel()
	p.enqueueListener.Notify()
	p.wg.Wait()
}

// Import enqueues a publish request and returns. The encoder picks it up
// in (priority, createdAt) order.
func (p *Publisher) Import(filePath, fileName string, blockSize uint32, attrs string, priority int64) (string, error) {
	if blockSize == 0 {
		return "", axerr.New(axerr.InvalidFormat).WithMessage("block size must not be zero")
	}

	id := p.tsid.Create()
	now := p.clock.Now()
	file := &UncommittedFile{
		ID:        id,
		FilePath:  filePath,
		FileName:  fileName,
		BlockSize: blockSize,
		Attrs:     attrs,
		Priority:  priority,
		Status:    UncommittedFileStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.repo.InsertUncommittedFile(file); err != nil {
		return "", err
	}

	p.enqueueListener.Notify()
	return id, nil
}

// Cancel marks the file canceled and, when it is the one currently being
// encoded, interrupts the encoder at its next suspension point.
func (p *Publisher) Cancel(fileID string) error {
	if err := p.repo.UpdateUncommittedFileStatus(fileID, UncommittedFileStatusCanceled); err != nil {
		return err
	}

	p.currentMu.Lock()
	current := p.currentFileID
	p.currentMu.Unlock()

	if current == fileID {
		p.cancelListener.Notify()
	}
	// Wake the encoder. Pickup takes Pending rows only, so a request
	// canceled before pickup stays as a Canceled row; the startup garbage
	// collection sweeps its uncommitted blocks.
	p.enqueueListener.Notify()
	return nil
}

// PublishedRootHashes enumerates the committed files.
func (p *Publisher) PublishedRootHashes() ([]common.OmniHash, error) {
	return p.repo.ListCommittedRootHashes()
}

// HasBlock reports whether this node can serve a committed block.
func (p *Publisher) HasBlock(rootHash, blockHash common.OmniHash) (bool, error) {
	return p.repo.HasCommittedBlock(rootHash, blockHash)
}

// ReadBlock fetches a committed block's bytes for serving to a peer.
func (p *Publisher) ReadBlock(rootHash, blockHash common.OmniHash) ([]byte, bool, error) {
	return p.blocks.Get(committedBlockName(rootHash, blockHash))
}

// collectGarbage deletes uncommitted store entries whose owning file row
// is absent or canceled.
func (p *Publisher) collectGarbage() error {
	files, err := p.repo.ListUncommittedFiles()
	if err != nil {
		return err
	}
	live := make(map[string]bool)
	for _, f := range files {
		if f.Status != UncommittedFileStatusCanceled {
			live[f.ID] = true
		} else {
			if err := p.repo.DeleteUncommittedFile(f.ID); err != nil {
				return err
			}
		}
	}

	return p.blocks.Shrink(func(name string) bool {
		if !strings.HasPrefix(name, "U/") {
			return true
		}
		rest := name[2:]
		idx := strings.IndexByte(rest, '/')
		if idx < 0 {
			return false
		}
		return live[rest[:idx]]
	})
}

func (p *Publisher) encodeLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		for ctx.Err() == nil && p.encodeNext(ctx) {
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-p.enqueueListener.C():
		case <-ctx.Done():
			return
		}
	}
}

// encodeNext picks one pending file and processes it. It reports whether
// anything was picked up.
func (p *Publisher) encodeNext(ctx context.Context) bool {
	file := p.pickup()
	if file == nil {
		return false
	}

	if err := p.encodeFile(ctx, file); err != nil {
		if axerr.KindOf(err) == axerr.Reject {
			// Canceled mid-encode; the cleanup already ran.
		} else {
			p.logger.Warn("encode failed", "fileId", file.ID, "err", err)
			if err := p.repo.SetUncommittedFileFailed(file.ID, err.Error()); err != nil {
				p.logger.Warn("failed-state update failed", "fileId", file.ID, "err", err)
			}
		}
	}

	p.currentMu.Lock()
	p.currentFileID = ""
	p.currentMu.Unlock()
	return true
}

// pickup latches the next pending id, then re-reads the row: the status
// may have moved while the latch was being set.
func (p *Publisher) pickup() *UncommittedFile {
	file, err := p.repo.FindUncommittedFileByEncodingNext()
	if err != nil {
		p.logger.Warn("pickup query failed", "err", err)
		return nil
	}
	if file == nil {
		return nil
	}

	// Disarm a cancel latch left over from an already-finished encode.
	select {
	case <-p.cancelListener.C():
	default:
	}

	p.currentMu.Lock()
	p.currentFileID = file.ID
	p.currentMu.Unlock()

	file, err = p.repo.FindUncommittedFileByID(file.ID)
	if err != nil {
		p.logger.Warn("pickup re-read failed", "err", err)
		return nil
	}
	if file == nil {
		p.currentMu.Lock()
		p.currentFileID = ""
		p.currentMu.Unlock()
		return nil
	}
	return file
}

// canceled reports whether the in-flight encode was canceled; it observes
// the cancel latch without blocking.
func (p *Publisher) canceled() bool {
	select {
	case <-p.cancelListener.C():
		return true
	default:
		return false
	}
}

func (p *Publisher) encodeFile(ctx context.Context, file *UncommittedFile) error {
	if file.Status == UncommittedFileStatusCanceled {
		return p.cleanupCanceled(file.ID)
	}

	if err := p.repo.UpdateUncommittedFileStatus(file.ID, UncommittedFileStatusEncoding); err != nil {
		return err
	}

	f, err := os.Open(file.FilePath)
	if err != nil {
		return axerr.New(axerr.IoError).WithMessage("cannot open %s", file.FilePath).WithSource(err)
	}

	var allBlocks []*UncommittedBlock
	blocks, err := p.encodeBytes(ctx, f, file.ID, file.BlockSize, 0)
	f.Close()
	if err != nil {
		return err
	}
	allBlocks = append(allBlocks, blocks...)
	if len(allBlocks) == 0 {
		return axerr.New(axerr.InvalidFormat).WithMessage("file is empty: %s", file.FilePath)
	}

	layerHashes := blockHashes(blocks)
	rank := uint32(1)
	for len(layerHashes) > 1 {
		// A rank-r block carries the serialized hash list of rank r-1.
		layer := &common.MerkleLayer{Rank: rank - 1, Hashes: layerHashes}
		raw, err := rocketpack.Encode(layer)
		if err != nil {
			return err
		}

		blocks, err = p.encodeBytes(ctx, bytes.NewReader(raw), file.ID, file.BlockSize, rank)
		if err != nil {
			return err
		}
		allBlocks = append(allBlocks, blocks...)

		// A block size below the per-layer overhead would never shrink the
		// tree; refuse instead of spinning.
		if len(blocks) >= len(layerHashes) {
			return axerr.New(axerr.InvalidFormat).WithMessage("block size %d too small to build a tree", file.BlockSize)
		}
		layerHashes = blockHashes(blocks)
		rank++
	}

	rootHash := layerHashes[0]
	return p.commit(file, rootHash, allBlocks)
}

// encodeBytes splits the reader into blocks of at most blockSize bytes,
// persisting each block row and its payload. Cancellation is observed
// between blocks.
func (p *Publisher) encodeBytes(ctx context.Context, r io.Reader, fileID string, blockSize uint32, rank uint32) ([]*UncommittedBlock, error) {
	var blocks []*UncommittedBlock
	index := uint32(0)
	buf := make([]byte, blockSize)

	for {
		if ctx.Err() != nil {
			return nil, axerr.New(axerr.UnexpectedError).WithMessage("encoder shut down").WithSource(ctx.Err())
		}
		if p.canceled() {
			if err := p.cleanupCanceled(fileID); err != nil {
				return nil, err
			}
			return nil, axerr.New(axerr.Reject).WithMessage("encode canceled")
		}

		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, axerr.New(axerr.IoError).WithMessage("block read failed").WithSource(err)
		}

		chunk := buf[:n]
		blockHash := common.ComputeHash(chunk)

		block := &UncommittedBlock{
			FileID:    fileID,
			BlockHash: blockHash,
			Rank:      rank,
			Index:     index,
		}
		if err := p.repo.InsertOrIgnoreUncommittedBlock(block); err != nil {
			return nil, err
		}
		if err := p.blocks.Put(uncommittedBlockName(fileID, blockHash), chunk, true); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		index++

		if n < int(blockSize) {
			break
		}
	}
	return blocks, nil
}

// commit finalizes an encode. A pre-existing file with the same root hash
// only takes the new name; its blocks already exist and the uncommitted
// copies are redundant.
func (p *Publisher) commit(file *UncommittedFile, rootHash common.OmniHash, allBlocks []*UncommittedBlock) error {
	existing, err := p.repo.FindCommittedFileByRootHash(rootHash)
	if err != nil {
		return err
	}
	if existing != nil {
		for _, b := range allBlocks {
			if err := p.blocks.Delete(uncommittedBlockName(file.ID, b.BlockHash)); err != nil {
				return err
			}
		}
		if existing.FileName == file.FileName {
			return p.repo.DeleteUncommittedFile(file.ID)
		}
		return p.repo.CommitFileNameOnly(rootHash, file.FileName, file.ID)
	}

	for _, b := range allBlocks {
		err := p.blocks.Rename(uncommittedBlockName(file.ID, b.BlockHash), committedBlockName(rootHash, b.BlockHash), true)
		if err != nil && axerr.KindOf(err) != axerr.NotFound {
			return err
		}
	}

	now := p.clock.Now()
	committedFile := &CommittedFile{
		RootHash:  rootHash,
		FileName:  file.FileName,
		BlockSize: file.BlockSize,
		Attrs:     file.Attrs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	committedBlocks := make([]*CommittedBlock, 0, len(allBlocks))
	for _, b := range allBlocks {
		committedBlocks = append(committedBlocks, &CommittedBlock{
			RootHash:  rootHash,
			BlockHash: b.BlockHash,
			Rank:      b.Rank,
			Index:     b.Index,
		})
	}

	if err := p.repo.CommitFileWithBlocks(committedFile, committedBlocks, file.ID); err != nil {
		return err
	}

	p.logger.Info("file committed", "fileName", file.FileName, "rootHash", rootHash.String(), "blocks", len(allBlocks))
	return nil
}

// cleanupCanceled removes the canceled request's rows and every block
// written so far.
func (p *Publisher) cleanupCanceled(fileID string) error {
	blocks, err := p.repo.FindUncommittedBlocksByFileID(fileID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(blocks))
	for _, b := range blocks {
		names = append(names, uncommittedBlockName(fileID, b.BlockHash))
	}
	if err := p.blocks.DeleteBulk(names); err != nil {
		return err
	}
	if err := p.repo.DeleteUncommittedFile(fileID); err != nil {
		return err
	}
	p.logger.Info("publish canceled", "fileId", fileID)
	return nil
}

func blockHashes(blocks []*UncommittedBlock) []common.OmniHash {
	res := make([]common.OmniHash, 0, len(blocks))
	for _, b := range blocks {
		res = append(res, b.BlockHash)
	}
	return res
}
