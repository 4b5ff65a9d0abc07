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

	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/kadex"
)

// computeLoop seeds the repo once, then re-derives every session's
// outgoing gossip on a fixed cadence.
func (f *NodeFinder) computeLoop(ctx context.Context) {
	defer f.wg.Done()

	if err := f.seedInitialProfiles(); err != nil {
		f.logger.Warn("initial profile seeding failed", "err", err)
	}

	for {
		if err := f.sleeper.Sleep(ctx, computeTickDelay); err != nil {
			return
		}
		f.refreshMyAddrs()
		if err := f.compute(); err != nil {
			f.logger.Warn("compute failed", "err", err)
		}
	}
}

func (f *NodeFinder) seedInitialProfiles() error {
	profiles, err := f.fetcher.Fetch()
	if err != nil {
		return err
	}
	return f.repo.InsertOrIgnore(profiles, 0)
}

// refreshMyAddrs folds the accepter's global addresses into this node's
// profile.
func (f *NodeFinder) refreshMyAddrs() {
	ips, err := f.tcpAccepter.GlobalIPAddresses()
	if err != nil {
		f.logger.Debug("global ip lookup failed", "err", err)
		return
	}
	port := uint16(f.tcpAccepter.Addr().Port)

	addrs := append([]common.OmniAddr(nil), f.options.AdvertisedAddrs...)
	for _, ip := range ips {
		addrs = append(addrs, common.CreateTCP(ip, port))
	}

	f.profileMu.Lock()
	f.profile.Addrs = addrs
	f.profileMu.Unlock()
}

// compute fuses the gossip received on every session into each session's
// next outgoing message:
//
//	push profiles  -> everyone
//	want keys      -> the single Kadex-closest session per key
//	give locations -> sessions that asked in their latest received want
//	push locations -> the single Kadex-closest session per key
func (f *NodeFinder) compute() error {
	myProfile := f.Profile()

	cloudProfiles, err := f.repo.Fetch()
	if err != nil {
		return err
	}

	myWantKeys := flattenKeys(f.wantHub.Call(struct{}{}))
	myPushKeys := flattenKeys(f.pushHub.Call(struct{}{}))

	// Snapshot every session's received state under the read lock, then
	// work lock-free.
	type sessionSnap struct {
		id       string
		status   *sessionStatus
		received *receivedSnapshot
	}
	var snaps []sessionSnap
	f.sessionsMu.RLock()
	for id, status := range f.sessions {
		snaps = append(snaps, sessionSnap{id: id, status: status, received: status.snapshotReceived()})
	}
	f.sessionsMu.RUnlock()

	ids := make([][]byte, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, []byte(s.id))
	}

	// Distributed to all sessions.
	pushProfiles := map[string]*common.NodeProfile{myProfile.Key(): myProfile}
	for _, p := range cloudProfiles {
		pushProfiles[p.Key()] = p
	}

	// Wants: mine plus everything peers asked through us.
	wantKeys := make(map[string]common.AssetKey)
	for _, k := range myWantKeys {
		wantKeys[k.Key()] = k
	}
	for _, s := range snaps {
		for _, k := range s.received.wantAssetKeys {
			wantKeys[k.Key()] = k
		}
	}

	// Gives: advertisers for everything we publish or heard advertised.
	giveLocations := make(map[string]*assetLocations)
	for _, k := range myPushKeys {
		locs := newAssetLocations(k)
		locs.add([]*common.NodeProfile{myProfile})
		giveLocations[k.Key()] = locs
	}
	for _, s := range snaps {
		for _, src := range append(s.received.pushAssetKeyLocations, s.received.giveAssetKeyLocations...) {
			locs, ok := giveLocations[src.key.Key()]
			if !ok {
				locs = newAssetLocations(src.key)
				giveLocations[src.key.Key()] = locs
			}
			locs.add(src.list())
		}
	}

	// Pushes: restricted to what this node itself advertises.
	pushLocations := make(map[string]*assetLocations)
	for _, k := range myPushKeys {
		locs := newAssetLocations(k)
		locs.add([]*common.NodeProfile{myProfile})
		if heard, ok := giveLocations[k.Key()]; ok {
			locs.add(heard.list())
		}
		pushLocations[k.Key()] = locs
	}

	// Route wants to the closest session per key.
	sendingWant := make(map[string][]common.AssetKey)
	for _, k := range wantKeys {
		for _, id := range kadex.Find(myProfile.ID, k.Hash.Value, ids, 1) {
			sendingWant[string(id)] = append(sendingWant[string(id)], k)
		}
	}

	// Serve gives to the sessions that asked for them.
	sendingGive := make(map[string]map[string]*assetLocations)
	for _, s := range snaps {
		for _, k := range s.received.wantAssetKeys {
			if locs, ok := giveLocations[k.Key()]; ok {
				if sendingGive[s.id] == nil {
					sendingGive[s.id] = make(map[string]*assetLocations)
				}
				sendingGive[s.id][k.Key()] = locs
			}
		}
	}

	// Route pushes to the closest session per key.
	sendingPush := make(map[string]map[string]*assetLocations)
	for _, locs := range pushLocations {
		for _, id := range kadex.Find(myProfile.ID, locs.key.Hash.Value, ids, 1) {
			if sendingPush[string(id)] == nil {
				sendingPush[string(id)] = make(map[string]*assetLocations)
			}
			sendingPush[string(id)][locs.key.Key()] = locs
		}
	}

	pushProfileList := make([]*common.NodeProfile, 0, len(pushProfiles))
	for _, p := range pushProfiles {
		pushProfileList = append(pushProfileList, p)
	}

	for _, s := range snaps {
		data := newSendingData()
		data.pushNodeProfiles = pushProfileList
		data.wantAssetKeys = capKeys(sendingWant[s.id], maxGossipEntryCap)
		data.giveAssetKeyLocations = capLocations(sendingGive[s.id], maxGossipEntryCap)
		data.pushAssetKeyLocations = capLocations(sendingPush[s.id], maxGossipEntryCap)
		s.status.replaceSending(data)
	}

	return nil
}

func flattenKeys(lists [][]common.AssetKey) []common.AssetKey {
	var res []common.AssetKey
	for _, l := range lists {
		res = append(res, l...)
	}
	return res
}

func capKeys(ks []common.AssetKey, max int) []common.AssetKey {
	if len(ks) > max {
		return ks[:max]
	}
	return ks
}

func capLocations(m map[string]*assetLocations, max int) map[string]*assetLocations {
	if m == nil {
		return make(map[string]*assetLocations)
	}
	if len(m) <= max {
		return m
	}
	res := make(map[string]*assetLocations, max)
	for k, v := range m {
		if len(res) >= max {
			break
		}
		res[k] = v
	}
	return res
}
