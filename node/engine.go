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

package node

import (
	"path/filepath"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/event"
	"github.com/omnius-labs/axus/fileexchange"
	"github.com/omnius-labs/axus/filepublisher"
	"github.com/omnius-labs/axus/filesubscriber"
	"github.com/omnius-labs/axus/finder"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/networks/session"
	"github.com/omnius-labs/axus/storage/blockstore"
	"github.com/omnius-labs/axus/storage/kv"
)

// Engine wires the whole node together: transport, session layer, node
// finder, publisher, subscriber, and exchanger. Every capability lives in
// this value; nothing is module-global except the logging sink.
type Engine struct {
	config Config
	logger log.Logger

	clock   base.Clock
	sleeper base.Sleeper

	tcpAccepter      connection.TcpAccepter
	sessionAccepter  *session.Accepter
	sessionConnector *session.Connector

	finderRepo *finder.Repo
	nodeFinder *finder.NodeFinder

	publisherRepo   *filepublisher.Repo
	publisherBlocks blockstore.Store
	publisher       *filepublisher.Publisher

	subscriberRepo   *filesubscriber.Repo
	subscriberBlocks blockstore.Store
	subscriber       *filesubscriber.Subscriber

	exchanger *fileexchange.Exchanger

	hubHandles []*event.FnHandle
}

// NewEngine builds and starts a node from its configuration.
func NewEngine(config Config) (*Engine, error) {
	e := &Engine{
		config:  config,
		logger:  log.New("module", "node"),
		clock:   base.NewSystemClock(),
		sleeper: base.NewSystemSleeper(),
	}

	random := base.NewSystemRandomBytesProvider()
	tsid := base.NewTsidProvider(e.clock)

	signer, err := common.NewEd25519Signer("axus")
	if err != nil {
		return nil, err
	}

	var nat connection.NAT
	if config.UseUpnp {
		if nat, err = connection.ParseNAT("upnp"); err != nil {
			return nil, err
		}
	}

	e.tcpAccepter, err = connection.NewTcpAccepter(common.OmniAddr(config.PeerListenAddr), nat)
	if err != nil {
		return nil, err
	}

	proxyOption, err := config.proxyOption()
	if err != nil {
		e.tcpAccepter.Close()
		return nil, err
	}
	tcpConnector, err := connection.NewTcpConnector(proxyOption)
	if err != nil {
		e.tcpAccepter.Close()
		return nil, err
	}

	e.sessionAccepter = session.NewAccepter(e.tcpAccepter, signer, random, e.sleeper)
	e.sessionConnector = session.NewConnector(tcpConnector, signer, random)

	stateDir := config.StateDirPath

	e.finderRepo, err = finder.NewRepo(filepath.Join(stateDir, "finder", "repo"), e.clock)
	if err != nil {
		e.teardown()
		return nil, err
	}

	seeds, err := decodeSeedProfiles(config.SeedNodeProfiles)
	if err != nil {
		e.teardown()
		return nil, err
	}

	e.nodeFinder, err = finder.New(
		e.tcpAccepter,
		e.sessionConnector,
		e.sessionAccepter,
		e.finderRepo,
		&finder.StaticNodeProfileFetcher{Profiles: seeds},
		random,
		e.clock,
		e.sleeper,
		config.finderOptions(),
	)
	if err != nil {
		e.teardown()
		return nil, err
	}

	e.publisherRepo, err = filepublisher.NewRepo(filepath.Join(stateDir, "file_publisher", "repo"), e.clock)
	if err != nil {
		e.teardown()
		return nil, err
	}
	e.publisherBlocks, err = e.openBlockStore(filepath.Join(stateDir, "file_publisher", "blocks"), tsid)
	if err != nil {
		e.teardown()
		return nil, err
	}
	e.publisher, err = filepublisher.New(e.publisherRepo, e.publisherBlocks, tsid, e.clock)
	if err != nil {
		e.teardown()
		return nil, err
	}

	e.subscriberRepo, err = filesubscriber.NewRepo(filepath.Join(stateDir, "file_subscriber", "repo"), e.clock)
	if err != nil {
		e.teardown()
		return nil, err
	}
	e.subscriberBlocks, err = e.openBlockStore(filepath.Join(stateDir, "file_subscriber", "blocks"), tsid)
	if err != nil {
		e.teardown()
		return nil, err
	}
	e.subscriber, err = filesubscriber.New(e.subscriberRepo, e.subscriberBlocks, tsid, e.clock)
	if err != nil {
		e.teardown()
		return nil, err
	}

	e.exchanger = fileexchange.New(
		e.sessionConnector,
		e.sessionAccepter,
		e.nodeFinder,
		e.publisher,
		e.subscriber,
		e.clock,
		e.sleeper,
		config.exchangerOptions(),
	)

	// The overlay learns what this node holds and wants from the file
	// subsystems themselves.
	e.hubHandles = append(e.hubHandles,
		e.nodeFinder.ListenPushAssetKeys(func() []common.AssetKey {
			return assetKeysOf(e.publisher.PublishedRootHashes)
		}),
		e.nodeFinder.ListenWantAssetKeys(func() []common.AssetKey {
			return assetKeysOf(e.subscriber.SubscribedRootHashes)
		}),
	)

	e.logger.Info("engine started", "peerListen", config.PeerListenAddr, "stateDir", stateDir)
	return e, nil
}

func (e *Engine) openBlockStore(dir string, tsid base.TsidProvider) (blockstore.Store, error) {
	switch e.config.BlockStoreBackend {
	case "", "file":
		return blockstore.NewFileStore(dir)
	case "kv":
		var db kv.Store
		var err error
		switch e.config.KvBackend {
		case "", kv.BADGERDB:
			db, err = kv.NewBadgerDB(dir)
		case kv.LEVELDB:
			db, err = kv.NewLevelDB(dir)
		default:
			return nil, axerr.New(axerr.UnsupportedType).WithMessage("unknown kv backend: %s", e.config.KvBackend)
		}
		if err != nil {
			return nil, err
		}
		return blockstore.NewKvStore(db, tsid), nil
	default:
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unknown block store backend: %s", e.config.BlockStoreBackend)
	}
}

// Publisher exposes the file publisher API.
func (e *Engine) Publisher() *filepublisher.Publisher { return e.publisher }

// Subscriber exposes the file subscriber API.
func (e *Engine) Subscriber() *filesubscriber.Subscriber { return e.subscriber }

// Finder exposes the node finder API.
func (e *Engine) Finder() *finder.NodeFinder { return e.nodeFinder }

// Exchanger exposes the file exchanger API.
func (e *Engine) Exchanger() *fileexchange.Exchanger { return e.exchanger }

// Shutdown tears the node down outer-first: meshes, transport, session
// layer, then the file subsystems and their stores.
func (e *Engine) Shutdown() {
	for _, h := range e.hubHandles {
		h.Release()
	}
	if e.exchanger != nil {
		e.exchanger.Shutdown()
	}
	e.teardown()
	e.logger.Info("engine stopped")
}

func (e *Engine) teardown() {
	if e.nodeFinder != nil {
		e.nodeFinder.Shutdown()
		e.nodeFinder = nil
	}
	// Closing the listener first errors the session accept loops out of
	// their blocking accept; Shutdown then reaps them.
	if e.tcpAccepter != nil {
		e.tcpAccepter.Close()
		e.tcpAccepter = nil
	}
	if e.sessionAccepter != nil {
		e.sessionAccepter.Shutdown()
		e.sessionAccepter = nil
	}
	if e.publisher != nil {
		e.publisher.Shutdown()
		e.publisher = nil
	}
	if e.subscriber != nil {
		e.subscriber.Shutdown()
		e.subscriber = nil
	}
	if e.publisherBlocks != nil {
		e.publisherBlocks.Close()
		e.publisherBlocks = nil
	}
	if e.subscriberBlocks != nil {
		e.subscriberBlocks.Close()
		e.subscriberBlocks = nil
	}
	if e.publisherRepo != nil {
		e.publisherRepo.Close()
		e.publisherRepo = nil
	}
	if e.subscriberRepo != nil {
		e.subscriberRepo.Close()
		e.subscriberRepo = nil
	}
	if e.finderRepo != nil {
		e.finderRepo.Close()
		e.finderRepo = nil
	}
}

func decodeSeedProfiles(uris []string) ([]*common.NodeProfile, error) {
	res := make([]*common.NodeProfile, 0, len(uris))
	for _, uri := range uris {
		p, err := common.DecodeNodeProfileURI(uri)
		if err != nil {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid seed profile: %s", uri).WithSource(err)
		}
		res = append(res, p)
	}
	return res, nil
}

func assetKeysOf(fetch func() ([]common.OmniHash, error)) []common.AssetKey {
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
