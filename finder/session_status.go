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
	"sync"
	"time"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/session"
)

const (
	receivedDataTTL   = 30 * time.Minute
	maxGossipEntryCap = 1024 * 256
)

// assetLocations groups the advertisers known for one asset key.
type assetLocations struct {
	key      common.AssetKey
	profiles map[string]*common.NodeProfile
}

func newAssetLocations(key common.AssetKey) *assetLocations {
	return &assetLocations{key: key, profiles: make(map[string]*common.NodeProfile)}
}

func (l *assetLocations) add(profiles []*common.NodeProfile) {
	for _, p := range profiles {
		l.profiles[p.Key()] = p
	}
}

func (l *assetLocations) list() []*common.NodeProfile {
	res := make([]*common.NodeProfile, 0, len(l.profiles))
	for _, p := range l.profiles {
		res = append(res, p)
	}
	return res
}

// clone copies the advertiser map so the caller can read it without
// holding the owning session's lock.
func (l *assetLocations) clone() *assetLocations {
	c := newAssetLocations(l.key)
	for k, p := range l.profiles {
		c.profiles[k] = p
	}
	return c
}

// sendingData is the next outgoing gossip, rebuilt by the computer and
// drained once by the session sender.
type sendingData struct {
	pushNodeProfiles      []*common.NodeProfile
	wantAssetKeys         []common.AssetKey
	giveAssetKeyLocations map[string]*assetLocations
	pushAssetKeyLocations map[string]*assetLocations
}

func newSendingData() *sendingData {
	return &sendingData{
		giveAssetKeyLocations: make(map[string]*assetLocations),
		pushAssetKeyLocations: make(map[string]*assetLocations),
	}
}

// receivedData accumulates the peer's gossip. Entries expire after thirty
// minutes and each collection is capped by shrinking to the most recent
// entries.
type receivedData struct {
	wantAssetKeys         *common.VolatileMap[string, common.AssetKey]
	giveAssetKeyLocations *common.VolatileMap[string, *assetLocations]
	pushAssetKeyLocations *common.VolatileMap[string, *assetLocations]
}

func newReceivedData(clock base.Clock) *receivedData {
	return &receivedData{
		wantAssetKeys:         common.NewVolatileMap[string, common.AssetKey](receivedDataTTL, clock),
		giveAssetKeyLocations: common.NewVolatileMap[string, *assetLocations](receivedDataTTL, clock),
		pushAssetKeyLocations: common.NewVolatileMap[string, *assetLocations](receivedDataTTL, clock),
	}
}

// sessionStatus is the finder's per-peer state. The owning session map
// holds the only strong reference; tasks receive shared handles.
type sessionStatus struct {
	handshakeType session.HandshakeType
	sess          *session.Session
	profile       *common.NodeProfile

	mu       sync.Mutex
	sending  *sendingData
	received *receivedData
}

func newSessionStatus(handshakeType session.HandshakeType, sess *session.Session, profile *common.NodeProfile, clock base.Clock) *sessionStatus {
	return &sessionStatus{
		handshakeType: handshakeType,
		sess:          sess,
		profile:       profile,
		sending:       newSendingData(),
		received:      newReceivedData(clock),
	}
}

// drainSending hands the queued outgoing gossip to the sender, leaving an
// empty message behind.
func (s *sessionStatus) drainSending() *sendingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sending
	s.sending = newSendingData()
	return out
}

// replaceSending installs the computer's freshly derived message.
func (s *sessionStatus) replaceSending(data *sendingData) {
	s.mu.Lock()
	s.sending = data
	s.mu.Unlock()
}

// mergeReceived folds one incoming data message into the received state.
func (s *sessionStatus) mergeReceived(msg *dataMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range msg.WantAssetKeys {
		s.received.wantAssetKeys.Put(k.Key(), k)
	}
	merge := func(dst *common.VolatileMap[string, *assetLocations], src []assetKeyLocations) {
		for _, e := range src {
			locs, ok := dst.Get(e.Key.Key())
			if !ok {
				locs = newAssetLocations(e.Key)
			}
			locs.add(e.Profiles)
			dst.Put(e.Key.Key(), locs)
		}
	}
	merge(s.received.giveAssetKeyLocations, msg.GiveAssetKeyLocations)
	merge(s.received.pushAssetKeyLocations, msg.PushAssetKeyLocations)

	s.received.wantAssetKeys.Shrink(maxGossipEntryCap)
	s.received.giveAssetKeyLocations.Shrink(maxGossipEntryCap)
	s.received.pushAssetKeyLocations.Shrink(maxGossipEntryCap)
}

// receivedSnapshot is a private deep copy of the received state: the
// computer reads it lock-free while the receiver keeps mutating the live
// maps under the session lock.
type receivedSnapshot struct {
	wantAssetKeys         []common.AssetKey
	giveAssetKeyLocations []*assetLocations
	pushAssetKeyLocations []*assetLocations
}

func (s *sessionStatus) snapshotReceived() *receivedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &receivedSnapshot{}
	s.received.wantAssetKeys.Each(func(_ string, k common.AssetKey) {
		snap.wantAssetKeys = append(snap.wantAssetKeys, k)
	})
	s.received.giveAssetKeyLocations.Each(func(_ string, l *assetLocations) {
		snap.giveAssetKeyLocations = append(snap.giveAssetKeyLocations, l.clone())
	})
	s.received.pushAssetKeyLocations.Each(func(_ string, l *assetLocations) {
		snap.pushAssetKeyLocations = append(snap.pushAssetKeyLocations, l.clone())
	})
	return snap
}
