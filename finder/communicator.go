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
	"time"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
)

const gossipTickDelay = 20 * time.Second

// communicate runs one finder session: protocol hello, profile exchange,
// then the cooperating send/receive loops until either side fails.
func (f *NodeFinder) communicate(ctx context.Context, status *sessionStatus) error {
	defer status.sess.Stream.Close()

	peerProfile, err := f.exchangeProfiles(status)
	if err != nil {
		return err
	}
	status.profile = peerProfile

	key := peerProfile.Key()
	f.sessionsMu.Lock()
	if _, exists := f.sessions[key]; exists {
		f.sessionsMu.Unlock()
		return axerr.New(axerr.AlreadyConnected).WithMessage("session already exists: %s", peerProfile)
	}
	f.sessions[key] = status
	f.sessionGauge.Update(int64(len(f.sessions)))
	f.sessionsMu.Unlock()

	f.logger.Info("Session established", "peer", peerProfile.String(), "direction", status.handshakeType.String())

	done := make(chan struct{}, 2)
	go func() {
		f.sendLoop(ctx, status)
		done <- struct{}{}
	}()
	go func() {
		f.recvLoop(ctx, status)
		done <- struct{}{}
	}()
	<-done
	// Closing the stream errors the sibling loop out.
	status.sess.Stream.Close()
	<-done

	f.sessionsMu.Lock()
	delete(f.sessions, key)
	f.sessionGauge.Update(int64(len(f.sessions)))
	f.sessionsMu.Unlock()

	f.logger.Info("Session closed", "peer", peerProfile.String())
	return nil
}

func (f *NodeFinder) exchangeProfiles(status *sessionStatus) (*common.NodeProfile, error) {
	stream := status.sess.Stream

	sendHello := finderHelloMessage{Version: finderVersionV1}
	if err := stream.SendMessage(&sendHello); err != nil {
		return nil, err
	}
	var recvHello finderHelloMessage
	if err := stream.RecvMessage(&recvHello); err != nil {
		return nil, err
	}
	if (sendHello.Version&recvHello.Version)&finderVersionV1 == 0 {
		return nil, axerr.New(axerr.UnsupportedVersion).WithMessage("no common finder version")
	}

	if err := stream.SendMessage(&profileMessage{NodeProfile: *f.Profile()}); err != nil {
		return nil, err
	}
	var recvProfile profileMessage
	if err := stream.RecvMessage(&recvProfile); err != nil {
		return nil, err
	}
	return &recvProfile.NodeProfile, nil
}

// sendLoop drains the session's queued gossip every tick and writes one
// data message.
func (f *NodeFinder) sendLoop(ctx context.Context, status *sessionStatus) {
	for {
		if err := f.sleeper.Sleep(ctx, gossipTickDelay); err != nil {
			return
		}
		if err := f.sendOne(status); err != nil {
			if ctx.Err() == nil && axerr.KindOf(err) != axerr.EndOfStream {
				f.logger.Warn("gossip send failed", "err", err)
			}
			return
		}
	}
}

func (f *NodeFinder) sendOne(status *sessionStatus) error {
	sending := status.drainSending()

	msg := &dataMessage{
		PushNodeProfiles: truncateProfiles(sending.pushNodeProfiles, maxGossipListLen),
		WantAssetKeys:    truncateKeys(sending.wantAssetKeys, maxGossipListLen),
	}
	for _, locs := range sending.giveAssetKeyLocations {
		if len(msg.GiveAssetKeyLocations) >= maxGossipListLen {
			break
		}
		msg.GiveAssetKeyLocations = append(msg.GiveAssetKeyLocations, assetKeyLocations{
			Key:      locs.key,
			Profiles: truncateProfiles(locs.list(), maxGossipListLen),
		})
	}
	for _, locs := range sending.pushAssetKeyLocations {
		if len(msg.PushAssetKeyLocations) >= maxGossipListLen {
			break
		}
		msg.PushAssetKeyLocations = append(msg.PushAssetKeyLocations, assetKeyLocations{
			Key:      locs.key,
			Profiles: truncateProfiles(locs.list(), maxGossipListLen),
		})
	}

	return status.sess.Stream.SendMessage(msg)
}

// recvLoop reads one data message every tick, persists pushed profiles and
// merges the rest into the session's received state.
func (f *NodeFinder) recvLoop(ctx context.Context, status *sessionStatus) {
	for {
		if err := f.sleeper.Sleep(ctx, gossipTickDelay); err != nil {
			return
		}
		if err := f.recvOne(status); err != nil {
			if ctx.Err() != nil {
				return
			}
			if axerr.KindOf(err) == axerr.EndOfStream {
				f.logger.Info("peer disconnected", "peer", status.sess.Addr)
			} else {
				f.logger.Warn("gossip receive failed", "err", err)
			}
			return
		}
	}
}

func (f *NodeFinder) recvOne(status *sessionStatus) error {
	var msg dataMessage
	if err := status.sess.Stream.RecvMessage(&msg); err != nil {
		return err
	}
	f.gossipMeter.Mark(1)

	pushed := msg.PushNodeProfiles
	if len(pushed) > maxPushProfilesIn {
		pushed = pushed[:maxPushProfilesIn]
	}
	if err := f.repo.InsertOrIgnore(pushed, 0); err != nil {
		return err
	}
	if err := f.repo.Shrink(profileRepoLimit); err != nil {
		return err
	}

	status.mergeReceived(&msg)
	return nil
}

func truncateProfiles(ps []*common.NodeProfile, max int) []*common.NodeProfile {
	if len(ps) > max {
		return ps[:max]
	}
	return ps
}

func truncateKeys(ks []common.AssetKey, max int) []common.AssetKey {
	if len(ks) > max {
		return ks[:max]
	}
	return ks
}
