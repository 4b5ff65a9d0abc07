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
	"context"
	"math/rand"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/event"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/networks/session"
)

const (
	nodeIDLen = 32

	connectTaskCount = 3
	acceptTaskCount  = 3

	connectTickDelay = time.Second
	acceptTickDelay  = time.Second
	computeTickDelay = 60 * time.Second

	connectedProfilesTTL = 180 * time.Second
	profileRepoLimit     = 1024
	maxPushProfilesIn    = 32
)

// Options bounds the finder's session mesh. AdvertisedAddrs are carried
// in this node's profile in addition to the detected global addresses.
type Options struct {
	MaxConnectedSessionCount int
	MaxAcceptedSessionCount  int
	AdvertisedAddrs          []common.OmniAddr
}

// NodeFinder maintains a bounded peer mesh and disseminates two overlays:
// known node profiles and which peers advertise which asset keys.
type NodeFinder struct {
	tcpAccepter      connection.TcpAccepter
	sessionConnector *session.Connector
	sessionAccepter  *session.Accepter
	repo             *Repo
	fetcher          NodeProfileFetcher
	clock            base.Clock
	sleeper          base.Sleeper
	options          Options
	logger           log.Logger

	profileMu sync.Mutex
	profile   *common.NodeProfile

	sessionsMu sync.RWMutex
	sessions   map[string]*sessionStatus

	connectedMu       sync.Mutex
	connectedProfiles *common.VolatileSet[string]

	wantHub *event.FnHub[struct{}, []common.AssetKey]
	pushHub *event.FnHub[struct{}, []common.AssetKey]

	pending chan *sessionStatus

	rngMu sync.Mutex
	rng   *rand.Rand

	sessionGauge metrics.Gauge
	gossipMeter  metrics.Meter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a finder with a fresh random node id and starts its
// background tasks.
func New(
	tcpAccepter connection.TcpAccepter,
	sessionConnector *session.Connector,
	sessionAccepter *session.Accepter,
	repo *Repo,
	fetcher NodeProfileFetcher,
	random base.RandomBytesProvider,
	clock base.Clock,
	sleeper base.Sleeper,
	options Options,
) (*NodeFinder, error) {
	id, err := random.GetBytes(nodeIDLen)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	f := &NodeFinder{
		tcpAccepter:       tcpAccepter,
		sessionConnector:  sessionConnector,
		sessionAccepter:   sessionAccepter,
		repo:              repo,
		fetcher:           fetcher,
		clock:             clock,
		sleeper:           sleeper,
		options:           options,
		logger:            log.New("module", "finder"),
		profile:           &common.NodeProfile{ID: id, Addrs: options.AdvertisedAddrs},
		sessions:          make(map[string]*sessionStatus),
		connectedProfiles: common.NewVolatileSet[string](connectedProfilesTTL, clock),
		wantHub:           event.NewFnHub[struct{}, []common.AssetKey](),
		pushHub:           event.NewFnHub[struct{}, []common.AssetKey](),
		pending:           make(chan *sessionStatus),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		sessionGauge:      metrics.NewRegisteredGauge("finder/sessions", nil),
		gossipMeter:       metrics.NewRegisteredMeter("finder/gossip/recv", nil),
		cancel:            cancel,
	}

	for i := 0; i < connectTaskCount; i++ {
		f.wg.Add(1)
		go f.connectLoop(ctx)
	}
	for i := 0; i < acceptTaskCount; i++ {
		f.wg.Add(1)
		go f.acceptLoop(ctx)
	}
	f.wg.Add(1)
	go f.dispatchLoop(ctx)
	f.wg.Add(1)
	go f.computeLoop(ctx)

	return f, nil
}

// Profile returns a snapshot of this node's profile.
func (f *NodeFinder) Profile() *common.NodeProfile {
	f.profileMu.Lock()
	defer f.profileMu.Unlock()
	return &common.NodeProfile{
		ID:    append([]byte(nil), f.profile.ID...),
		Addrs: append([]common.OmniAddr(nil), f.profile.Addrs...),
	}
}

// SessionCount reports the live session count.
func (f *NodeFinder) SessionCount() int {
	f.sessionsMu.RLock()
	defer f.sessionsMu.RUnlock()
	return len(f.sessions)
}

// ListenWantAssetKeys registers a supplier of asset keys this node wants;
// the computer polls it every tick. Release the handle to unregister.
func (f *NodeFinder) ListenWantAssetKeys(fn func() []common.AssetKey) *event.FnHandle {
	return f.wantHub.Listen(func(struct{}) []common.AssetKey { return fn() })
}

// ListenPushAssetKeys registers a supplier of asset keys this node
// advertises.
func (f *NodeFinder) ListenPushAssetKeys(fn func() []common.AssetKey) *event.FnHandle {
	return f.pushHub.Listen(func(struct{}) []common.AssetKey { return fn() })
}

// FindNodeProfiles returns the advertisers currently known for an asset
// key, drawn from every session's received give/push gossip.
func (f *NodeFinder) FindNodeProfiles(key common.AssetKey) []*common.NodeProfile {
	keyStr := key.Key()
	found := make(map[string]*common.NodeProfile)

	f.sessionsMu.RLock()
	defer f.sessionsMu.RUnlock()
	for _, status := range f.sessions {
		status.mu.Lock()
		if locs, ok := status.received.giveAssetKeyLocations.Get(keyStr); ok {
			for k, p := range locs.profiles {
				found[k] = p
			}
		}
		if locs, ok := status.received.pushAssetKeyLocations.Get(keyStr); ok {
			for k, p := range locs.profiles {
				found[k] = p
			}
		}
		status.mu.Unlock()
	}

	res := make([]*common.NodeProfile, 0, len(found))
	for _, p := range found {
		res = append(res, p)
	}
	return res
}

// Shutdown aborts every background task and tears down the sessions.
func (f *NodeFinder) Shutdown() {
	f.cancel()
	f.closeAllSessions()
	f.wg.Wait()
}

func (f *NodeFinder) closeAllSessions() {
	f.sessionsMu.Lock()
	defer f.sessionsMu.Unlock()
	for _, status := range f.sessions {
		status.sess.Stream.Close()
	}
}

func (f *NodeFinder) connectLoop(ctx context.Context) {
	defer f.wg.Done()
	for {
		if err := f.sleeper.Sleep(ctx, connectTickDelay); err != nil {
			return
		}
		if err := f.connectOne(ctx); err != nil {
			f.logger.Debug("connect failed", "err", err)
		}
	}
}

func (f *NodeFinder) connectOne(ctx context.Context) error {
	if f.countSessions(session.HandshakeTypeConnected) >= f.options.MaxConnectedSessionCount {
		return nil
	}

	f.connectedMu.Lock()
	f.connectedProfiles.Refresh()
	f.connectedMu.Unlock()

	profiles, err := f.repo.Fetch()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	f.rngMu.Lock()
	target := profiles[f.rng.Intn(len(profiles))]
	f.rngMu.Unlock()

	f.sessionsMu.RLock()
	_, inSessions := f.sessions[target.Key()]
	f.sessionsMu.RUnlock()
	if inSessions {
		return nil
	}

	f.connectedMu.Lock()
	recently := f.connectedProfiles.Contains(target.Key())
	f.connectedMu.Unlock()
	if recently {
		return nil
	}

	for _, addr := range target.Addrs {
		sess, err := f.sessionConnector.Connect(addr, session.TypeNodeFinder)
		if err != nil {
			continue
		}

		f.connectedMu.Lock()
		f.connectedProfiles.Insert(target.Key())
		f.connectedMu.Unlock()

		status := newSessionStatus(session.HandshakeTypeConnected, sess, nil, f.clock)
		select {
		case f.pending <- status:
		case <-ctx.Done():
			sess.Stream.Close()
			return nil
		}
		return nil
	}
	return axerr.New(axerr.NetworkError).WithMessage("all addresses unreachable: %s", target)
}

func (f *NodeFinder) acceptLoop(ctx context.Context) {
	defer f.wg.Done()
	for {
		if err := f.sleeper.Sleep(ctx, acceptTickDelay); err != nil {
			return
		}
		if err := f.acceptOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("accept failed", "err", err)
		}
	}
}

func (f *NodeFinder) acceptOne(ctx context.Context) error {
	if f.countSessions(session.HandshakeTypeAccepted) >= f.options.MaxAcceptedSessionCount {
		return nil
	}

	sess, err := f.sessionAccepter.Accept(ctx, session.TypeNodeFinder)
	if err != nil {
		return err
	}

	status := newSessionStatus(session.HandshakeTypeAccepted, sess, nil, f.clock)
	select {
	case f.pending <- status:
	case <-ctx.Done():
		sess.Stream.Close()
	}
	return nil
}

func (f *NodeFinder) dispatchLoop(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case status := <-f.pending:
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				if err := f.communicate(ctx, status); err != nil {
					f.logger.Warn("communicate failed", "err", err)
				}
			}()
		case <-ctx.Done():
			return
		}
	}
}

func (f *NodeFinder) countSessions(typ session.HandshakeType) int {
	f.sessionsMu.RLock()
	defer f.sessionsMu.RUnlock()
	n := 0
	for _, status := range f.sessions {
		if status.handshakeType == typ {
			n++
		}
	}
	return n
}
