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

	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/networks/session"
)

type testNode struct {
	finder      *NodeFinder
	tcpAccepter connection.TcpAccepter
	accepter    *session.Accepter
	repo        *Repo
	addr        common.OmniAddr
}

func (n *testNode) close() {
	n.finder.Shutdown()
	n.tcpAccepter.Close()
	n.accepter.Shutdown()
	n.repo.Close()
}

func newTestNode(t *testing.T, name string, seeds []*common.NodeProfile) *testNode {
	t.Helper()

	tcpAccepter, err := connection.NewTcpAccepter(common.OmniAddr("tcp(ip4(127.0.0.1),0)"), nil)
	require.NoError(t, err)

	tcpConnector, err := connection.NewTcpConnector(connection.ProxyOption{Type: connection.ProxyTypeNone})
	require.NoError(t, err)

	signer, err := common.NewEd25519Signer(name)
	require.NoError(t, err)

	random := base.NewSystemRandomBytesProvider()
	sleeper := base.FakeSleeper{}
	clock := base.NewSystemClock()

	accepter := session.NewAccepter(tcpAccepter, signer, random, sleeper)
	connector := session.NewConnector(tcpConnector, signer, random)

	repo, err := NewRepo(t.TempDir(), clock)
	require.NoError(t, err)

	f, err := New(
		tcpAccepter,
		connector,
		accepter,
		repo,
		&StaticNodeProfileFetcher{Profiles: seeds},
		random,
		clock,
		sleeper,
		Options{MaxConnectedSessionCount: 3, MaxAcceptedSessionCount: 3},
	)
	require.NoError(t, err)

	return &testNode{
		finder:      f,
		tcpAccepter: tcpAccepter,
		accepter:    accepter,
		repo:        repo,
		addr:        common.CreateTCP(tcpAccepter.Addr().IP, uint16(tcpAccepter.Addr().Port)),
	}
}

// Two nodes seeded with each other converge to a connected session pair
// and learn each other's real profile through gossip.
func TestTwoNodeConvergence(t *testing.T) {
	n1 := newTestNode(t, "n1", nil)
	defer n1.close()

	seed1 := &common.NodeProfile{ID: []byte("seed-of-n1"), Addrs: []common.OmniAddr{n1.addr}}
	n2 := newTestNode(t, "n2", []*common.NodeProfile{seed1})
	defer n2.close()

	seed2 := &common.NodeProfile{ID: []byte("seed-of-n2"), Addrs: []common.OmniAddr{n2.addr}}
	require.NoError(t, n1.repo.InsertOrIgnore([]*common.NodeProfile{seed2}, 0))

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if n1.finder.SessionCount() >= 1 && n2.finder.SessionCount() >= 1 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.True(t, n1.finder.SessionCount() >= 1, "n1 never connected")
	require.True(t, n2.finder.SessionCount() >= 1, "n2 never connected")

	// Gossip pushes each node's self profile; both stores end up with at
	// least the seed and the peer's real profile.
	for time.Now().Before(deadline) {
		p1, err := n1.repo.Fetch()
		require.NoError(t, err)
		p2, err := n2.repo.Fetch()
		require.NoError(t, err)
		if len(p1) >= 2 && len(p2) >= 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("profile stores did not converge")
}

func TestFindNodeProfilesFromGossip(t *testing.T) {
	n := newTestNode(t, "solo", nil)
	defer n.close()

	key := common.NewFileAssetKey(common.ComputeHash([]byte("asset")))

	// Nothing known yet.
	require.Len(t, n.finder.FindNodeProfiles(key), 0)
}
