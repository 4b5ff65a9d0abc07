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
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	set "gopkg.in/fatih/set.v0"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/filepublisher"
	"github.com/omnius-labs/axus/filesubscriber"
	"github.com/omnius-labs/axus/finder"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/networks/session"
)

const (
	connectTickDelay  = time.Second
	acceptTickDelay   = time.Second
	exchangeTickDelay = 20 * time.Second

	connectedProfilesTTL = 180 * time.Second
)

// Options bounds the exchanger's session mesh per direction.
type Options struct {
	MaxConnectedSessionForPublishCount   int
	MaxConnectedSessionForSubscribeCount int
	MaxAcceptedSessionCount              int
}

// Exchanger accepts or initiates file sessions, binds each to a root
// hash, and moves want lists and blocks between the publisher, the
// subscriber, and the wire.
type Exchanger struct {
	sessionConnector *session.Connector
	sessionAccepter  *session.Accepter
	nodeFinder       *finder.NodeFinder
	publisher        *filepublisher.Publisher
	subscriber       *filesubscriber.Subscriber
	clock            base.Clock
	sleeper          base.Sleeper
	options          Options
	logger           log.Logger

	sessionsMu sync.RWMutex
	sessions   map[string]*sessionStatus

	connectedMu       sync.Mutex
	connectedProfiles *common.VolatileSet[string]

	rngMu sync.Mutex
	rng   *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the accept loop and the two connect loops.
func New(
	sessionConnector *session.Connector,
	sessionAccepter *session.Accepter,
	nodeFinder *finder.NodeFinder,
	publisher *filepublisher.Publisher,
	subscriber *filesubscriber.Subscriber,
	clock base.Clock,
	sleeper base.Sleeper,
	options Options,
) *Exchanger {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Exchanger{
		sessionConnector:  sessionConnector,
		sessionAccepter:   sessionAccepter,
		nodeFinder:        nodeFinder,
		publisher:         publisher,
		subscriber:        subscriber,
		clock:             clock,
		sleeper:           sleeper,
		options:           options,
		logger:            log.New("module", "fileexchange"),
		sessions:          make(map[string]*sessionStatus),
		connectedProfiles: common.NewVolatileSet[string](connectedProfilesTTL, clock),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		cancel:            cancel,
	}

	e.wg.Add(1)
	go e.connectLoop(ctx, ExchangeTypePublish)
	e.wg.Add(1)
	go e.connectLoop(ctx, ExchangeTypeSubscribe)
	e.wg.Add(1)
	go e.acceptLoop(ctx)

	return e
}

// SessionCount reports the live session count.
func (e *Exchanger) SessionCount() int {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	return len(e.sessions)
}

// Shutdown aborts every loop and closes the sessions.
func (e *Exchanger) Shutdown() {
	e.cancel()
	e.sessionsMu.Lock()
	for _, status := range e.sessions {
		status.sess.Stream.Close()
	}
	e.sessionsMu.Unlock()
	e.wg.Wait()
}

func (e *Exchanger) connectLoop(ctx context.Context, exchangeType ExchangeType) {
	defer e.wg.Done()
	for {
		if err := e.sleeper.Sleep(ctx, connectTickDelay); err != nil {
			return
		}
		if err := e.connectOne(ctx, exchangeType); err != nil {
			e.logger.Debug("connect failed", "type", exchangeType.String(), "err", err)
		}
	}
}

func (e *Exchanger) connectOne(ctx context.Context, exchangeType ExchangeType) error {
	max := e.options.MaxConnectedSessionForSubscribeCount
	if exchangeType == ExchangeTypePublish {
		max = e.options.MaxConnectedSessionForPublishCount
	}
	if e.countSessions(session.HandshakeTypeConnected, exchangeType) >= max {
		return nil
	}

	var rootHashes []common.OmniHash
	var err error
	if exchangeType == ExchangeTypePublish {
		rootHashes, err = e.publisher.PublishedRootHashes()
	} else {
		rootHashes, err = e.subscriber.SubscribedRootHashes()
	}
	if err != nil {
		return err
	}
	if len(rootHashes) == 0 {
		return nil
	}

	e.connectedMu.Lock()
	e.connectedProfiles.Refresh()
	excluded := set.New()
	for _, key := range e.connectedProfiles.Keys() {
		excluded.Add(key)
	}
	e.connectedMu.Unlock()
	e.sessionsMu.RLock()
	for key := range e.sessions {
		excluded.Add(key)
	}
	e.sessionsMu.RUnlock()

	e.rngMu.Lock()
	e.rng.Shuffle(len(rootHashes), func(i, j int) {
		rootHashes[i], rootHashes[j] = rootHashes[j], rootHashes[i]
	})
	e.rngMu.Unlock()

	for _, rootHash := range rootHashes {
		assetKey := common.NewFileAssetKey(rootHash)

		var candidates []*common.NodeProfile
		for _, p := range e.nodeFinder.FindNodeProfiles(assetKey) {
			if !excluded.Has(p.Key()) {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		e.rngMu.Lock()
		target := candidates[e.rng.Intn(len(candidates))]
		e.rngMu.Unlock()

		for _, addr := range target.Addrs {
			sess, err := e.sessionConnector.Connect(addr, session.TypeFileExchanger)
			if err != nil {
				continue
			}

			status := newSessionStatus(exchangeType, sess, rootHash, e.clock)
			if err := e.connectHandshake(status); err != nil {
				sess.Stream.Close()
				return err
			}

			e.connectedMu.Lock()
			e.connectedProfiles.Insert(target.Key())
			e.connectedMu.Unlock()

			e.spawnCommunicate(ctx, target.Key(), status)
			return nil
		}
	}
	return axerr.New(axerr.NotFound).WithMessage("no reachable candidate")
}

func (e *Exchanger) acceptLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		if err := e.sleeper.Sleep(ctx, acceptTickDelay); err != nil {
			return
		}
		if err := e.acceptOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("accept failed", "err", err)
		}
	}
}

func (e *Exchanger) acceptOne(ctx context.Context) error {
	if e.countSessions(session.HandshakeTypeAccepted, ExchangeTypeUnknown) >= e.options.MaxAcceptedSessionCount {
		return nil
	}

	sess, err := e.sessionAccepter.Accept(ctx, session.TypeFileExchanger)
	if err != nil {
		return err
	}

	status, err := e.acceptHandshake(sess)
	if err != nil {
		sess.Stream.Close()
		return err
	}

	e.spawnCommunicate(ctx, "addr:"+string(sess.Addr), status)
	return nil
}

// connectHandshake sends our role and bound root hash.
func (e *Exchanger) connectHandshake(status *sessionStatus) error {
	stream := status.sess.Stream

	sendHello := exchangerHelloMessage{Version: exchangerVersionV1}
	if err := stream.SendMessage(&sendHello); err != nil {
		return err
	}
	var recvHello exchangerHelloMessage
	if err := stream.RecvMessage(&recvHello); err != nil {
		return err
	}
	if (sendHello.Version&recvHello.Version)&exchangerVersionV1 == 0 {
		return axerr.New(axerr.UnsupportedVersion).WithMessage("no common exchanger version")
	}

	return stream.SendMessage(&handshakeMessage{
		ExchangeType: status.exchangeType,
		RootHash:     status.rootHash,
	})
}

// acceptHandshake learns the peer's role and root hash and takes the
// opposite role.
func (e *Exchanger) acceptHandshake(sess *session.Session) (*sessionStatus, error) {
	stream := sess.Stream

	sendHello := exchangerHelloMessage{Version: exchangerVersionV1}
	if err := stream.SendMessage(&sendHello); err != nil {
		return nil, err
	}
	var recvHello exchangerHelloMessage
	if err := stream.RecvMessage(&recvHello); err != nil {
		return nil, err
	}
	if (sendHello.Version&recvHello.Version)&exchangerVersionV1 == 0 {
		return nil, axerr.New(axerr.UnsupportedVersion).WithMessage("no common exchanger version")
	}

	var handshake handshakeMessage
	if err := stream.RecvMessage(&handshake); err != nil {
		return nil, err
	}

	localType := handshake.ExchangeType.opposite()
	if localType == ExchangeTypeUnknown {
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("peer offered no usable role")
	}
	return newSessionStatus(localType, sess, handshake.RootHash, e.clock), nil
}

func (e *Exchanger) spawnCommunicate(ctx context.Context, key string, status *sessionStatus) {
	sessionKey := fmt.Sprintf("%s/%s/%s", key, status.exchangeType, status.rootHash)

	e.sessionsMu.Lock()
	if _, exists := e.sessions[sessionKey]; exists {
		e.sessionsMu.Unlock()
		status.sess.Stream.Close()
		return
	}
	e.sessions[sessionKey] = status
	e.sessionsMu.Unlock()

	e.logger.Info("file session established", "key", sessionKey, "direction", status.sess.HandshakeType.String())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			status.sess.Stream.Close()
			e.sessionsMu.Lock()
			delete(e.sessions, sessionKey)
			e.sessionsMu.Unlock()
			e.logger.Info("file session closed", "key", sessionKey)
		}()

		done := make(chan struct{}, 2)
		go func() {
			e.sendLoop(ctx, status)
			done <- struct{}{}
		}()
		go func() {
			e.recvLoop(ctx, status)
			done <- struct{}{}
		}()
		<-done
		status.sess.Stream.Close()
		<-done
	}()
}

// sendLoop emits one block message per tick: wants when subscribing,
// served blocks when publishing.
func (e *Exchanger) sendLoop(ctx context.Context, status *sessionStatus) {
	for {
		if err := e.sleeper.Sleep(ctx, exchangeTickDelay); err != nil {
			return
		}
		if err := e.sendOne(status); err != nil {
			if ctx.Err() == nil && axerr.KindOf(err) != axerr.EndOfStream {
				e.logger.Warn("exchange send failed", "err", err)
			}
			return
		}
	}
}

func (e *Exchanger) sendOne(status *sessionStatus) error {
	msg := &blockMessage{}

	switch status.exchangeType {
	case ExchangeTypeSubscribe:
		wants, err := e.subscriber.WantBlockHashes(status.rootHash)
		if err != nil {
			return err
		}
		status.mu.Lock()
		status.sentWant.Refresh()
		for _, h := range wants {
			if len(msg.WantBlockHashes) >= maxExchangeListLen {
				break
			}
			if status.sentWant.Contains(h.String()) {
				continue
			}
			status.sentWant.Insert(h.String())
			msg.WantBlockHashes = append(msg.WantBlockHashes, h)
		}
		status.mu.Unlock()

	case ExchangeTypePublish:
		status.mu.Lock()
		status.receivedWant.Refresh()
		status.sentBlock.Refresh()
		var pending []common.OmniHash
		status.receivedWant.Each(func(key string, h common.OmniHash) {
			if !status.sentBlock.Contains(key) {
				pending = append(pending, h)
			}
		})
		status.mu.Unlock()

		for _, h := range pending {
			if len(msg.GivenBlocks) >= maxExchangeListLen {
				break
			}
			value, ok, err := e.publisher.ReadBlock(status.rootHash, h)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			status.mu.Lock()
			status.sentBlock.Insert(h.String())
			status.mu.Unlock()
			msg.GivenBlocks = append(msg.GivenBlocks, wireBlock{Hash: h, Value: value})
		}
	}

	return status.sess.Stream.SendMessage(msg)
}

// recvLoop ingests one block message per round trip.
func (e *Exchanger) recvLoop(ctx context.Context, status *sessionStatus) {
	for {
		if err := e.recvOne(status); err != nil {
			if ctx.Err() != nil {
				return
			}
			if axerr.KindOf(err) == axerr.EndOfStream {
				e.logger.Info("peer disconnected", "peer", status.sess.Addr)
			} else {
				e.logger.Warn("exchange receive failed", "err", err)
			}
			return
		}
	}
}

func (e *Exchanger) recvOne(status *sessionStatus) error {
	var msg blockMessage
	if err := status.sess.Stream.RecvMessage(&msg); err != nil {
		return err
	}

	if len(msg.WantBlockHashes) > 0 {
		status.mu.Lock()
		for _, h := range msg.WantBlockHashes {
			status.receivedWant.Put(h.String(), h)
		}
		status.receivedWant.Shrink(maxExchangeListLen * 64)
		status.mu.Unlock()
	}

	for _, b := range msg.GivenBlocks {
		if err := e.subscriber.WriteBlock(status.rootHash, b.Hash, b.Value); err != nil {
			e.logger.Warn("block ingest failed", "hash", b.Hash.String(), "err", err)
		}
	}
	return nil
}

func (e *Exchanger) countSessions(handshakeType session.HandshakeType, exchangeType ExchangeType) int {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	n := 0
	for _, status := range e.sessions {
		if status.sess.HandshakeType != handshakeType {
			continue
		}
		if exchangeType != ExchangeTypeUnknown && status.exchangeType != exchangeType {
			continue
		}
		n++
	}
	return n
}
