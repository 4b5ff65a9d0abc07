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

package fileexchange

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/filepublisher"
	"github.com/omnius-labs/axus/filesubscriber"
	"github.com/omnius-labs/axus/finder"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/networks/session"
	"github.com/omnius-labs/axus/storage/blockstore"
)

// testPeer is a full node built from the real components, driven by the
// fake sleeper so every background tick fires immediately.
type testPeer struct {
	tcpAccepter     connection.TcpAccepter
	sessionAccepter *session.Accepter
	nodeFinder      *finder.NodeFinder
	finderRepo      *finder.Repo
	publisher       *filepublisher.Publisher
	publisherRepo   *filepublisher.Repo
	publisherStore  blockstore.Store
	subscriber      *filesubscriber.Subscriber
	subscriberRepo  *filesubscriber.Repo
	subscriberStore blockstore.Store
	exchanger       *Exchanger
	addr            common.OmniAddr
}

func (p *testPeer) close() {
	p.exchanger.Shutdown()
	p.nodeFinder.Shutdown()
	p.tcpAccepter.Close()
	p.sessionAccepter.Shutdown()
	p.publisher.Shutdown()
	p.subscriber.Shutdown()
	p.publisherStore.Close()
	p.subscriberStore.Close()
	p.publisherRepo.Close()
	p.subscriberRepo.Close()
	p.finderRepo.Close()
}

func newTestPeer(t *testing.T, name string) *testPeer {
	t.Helper()

	clock := base.NewSystemClock()
	sleeper := base.FakeSleeper{}
	random := base.NewSystemRandomBytesProvider()
	tsid := base.NewTsidProvider(clock)

	tcpAccepter, err := connection.NewTcpAccepter(common.OmniAddr("tcp(ip4(127.0.0.1),0)"), nil)
	require.NoError(t, err)
	addr := common.CreateTCP(tcpAccepter.Addr().IP, uint16(tcpAccepter.Addr().Port))

	tcpConnector, err := connection.NewTcpConnector(connection.ProxyOption{Type: connection.ProxyTypeNone})
	require.NoError(t, err)

	signer, err := common.NewEd25519Signer(name)
	require.NoError(t, err)

	sessionAccepter := session.NewAccepter(tcpAccepter, signer, random, sleeper)
	sessionConnector := session.NewConnector(tcpConnector, signer, random)

	finderRepo, err := finder.NewRepo(t.TempDir(), clock)
	require.NoError(t, err)

	nodeFinder, err := finder.New(
		tcpAccepter, sessionConnector, sessionAccepter, finderRepo,
		&finder.StaticNodeProfileFetcher{},
		random, clock, sleeper,
		finder.Options{
			MaxConnectedSessionCount: 3,
			MaxAcceptedSessionCount:  3,
			AdvertisedAddrs:          []common.OmniAddr{addr},
		},
	)
	require.NoError(t, err)

	publisherRepo, err := filepublisher.NewRepo(t.TempDir(), clock)
	require.NoError(t, err)
	publisherStore, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	publisher, err := filepublisher.New(publisherRepo, publisherStore, tsid, clock)
	require.NoError(t, err)

	subscriberRepo, err := filesubscriber.NewRepo(t.TempDir(), clock)
	require.NoError(t, err)
	subscriberStore, err := blockstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	subscriber, err := filesubscriber.New(subscriberRepo, subscriberStore, tsid, clock)
	require.NoError(t, err)

	exchanger := New(
		sessionConnector, sessionAccepter, nodeFinder, publisher, subscriber,
		clock, sleeper,
		Options{
			MaxConnectedSessionForPublishCount:   2,
			MaxConnectedSessionForSubscribeCount: 2,
			MaxAcceptedSessionCount:              4,
		},
	)

	nodeFinder.ListenPushAssetKeys(func() []common.AssetKey {
		return assetKeys(publisher.PublishedRootHashes)
	})
	nodeFinder.ListenWantAssetKeys(func() []common.AssetKey {
		return assetKeys(subscriber.SubscribedRootHashes)
	})

	return &testPeer{
		tcpAccepter:     tcpAccepter,
		sessionAccepter: sessionAccepter,
		nodeFinder:      nodeFinder,
		finderRepo:      finderRepo,
		publisher:       publisher,
		publisherRepo:   publisherRepo,
		publisherStore:  publisherStore,
		subscriber:      subscriber,
		subscriberRepo:  subscriberRepo,
		subscriberStore: subscriberStore,
		exchanger:       exchanger,
		addr:            addr,
	}
}

func assetKeys(fetch func() ([]common.OmniHash, error)) []common.AssetKey {
	hashes, err := fetch()
	if err != nil {
		return nil
	}
	res := make([]common.AssetKey, 0, len(hashes))
	for _, h := range hashes {
		res = append(res, common.NewFileAssetKey(h))
	}
	return res
}

// A publishes a file, B subscribes to its root hash, and the overlay plus
// the exchanger move every block across until B holds an identical copy.
func TestTwoNodeFileTransfer(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	peerA := newTestPeer(t, "peer-a")
	defer peerA.close()
	peerB := newTestPeer(t, "peer-b")
	defer peerB.close()

	// Seed each finder with the other's listen address.
	require.NoError(t, peerA.finderRepo.InsertOrIgnore([]*common.NodeProfile{
		{ID: []byte("seed-b"), Addrs: []common.OmniAddr{peerB.addr}},
	}, 0))
	require.NoError(t, peerB.finderRepo.InsertOrIgnore([]*common.NodeProfile{
		{ID: []byte("seed-a"), Addrs: []common.OmniAddr{peerA.addr}},
	}, 0))

	content := bytes.Repeat([]byte{0xd0}, 256)
	content = append(content, bytes.Repeat([]byte{0x0d}, 100)...)

	srcPath := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))
	_, err := peerA.publisher.Import(srcPath, "src.bin", 256, "", 0)
	require.NoError(t, err)

	var root common.OmniHash
	waitUntil(t, time.Minute, func() bool {
		roots, err := peerA.publisher.PublishedRootHashes()
		if err != nil || len(roots) != 1 {
			return false
		}
		root = roots[0]
		return true
	})

	outPath := filepath.Join(t.TempDir(), "out.bin")
	id, err := peerB.subscriber.Subscribe(root, outPath, "", 0)
	require.NoError(t, err)

	waitUntil(t, 2*time.Minute, func() bool {
		f, err := peerB.subscriberRepo.FindFileByID(id)
		return err == nil && f != nil && f.Status == filesubscriber.FileStatusCompleted
	})

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
