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
	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/rocketpack"
)

// finderVersion is the node-finder protocol bitset exchanged after the
// session handshake.
type finderVersion uint32

const finderVersionV1 finderVersion = 1

// maxGossipListLen bounds every list length field of a data message on
// read.
const maxGossipListLen = 128

type finderHelloMessage struct {
	Version finderVersion
}

func (m *finderHelloMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.Version))
	return nil
}

func (m *finderHelloMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	m.Version = finderVersion(v)
	return nil
}

type profileMessage struct {
	NodeProfile common.NodeProfile
}

func (m *profileMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	return m.NodeProfile.Pack(w, depth+1)
}

func (m *profileMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	return m.NodeProfile.Unpack(r, depth+1)
}

// assetKeyLocations is the wire pairing of an asset key and its known
// advertisers.
type assetKeyLocations struct {
	Key      common.AssetKey
	Profiles []*common.NodeProfile
}

// dataMessage is one gossip round: profiles pushed to everyone, wanted
// asset keys, and the give/push advertiser maps.
type dataMessage struct {
	PushNodeProfiles      []*common.NodeProfile
	WantAssetKeys         []common.AssetKey
	GiveAssetKeyLocations []assetKeyLocations
	PushAssetKeyLocations []assetKeyLocations
}

func (m *dataMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}

	w.PutU32(uint32(len(m.PushNodeProfiles)))
	for _, p := range m.PushNodeProfiles {
		if err := p.Pack(w, depth+1); err != nil {
			return err
		}
	}

	w.PutU32(uint32(len(m.WantAssetKeys)))
	for _, k := range m.WantAssetKeys {
		if err := k.Pack(w, depth+1); err != nil {
			return err
		}
	}

	packLocations := func(entries []assetKeyLocations) error {
		w.PutU32(uint32(len(entries)))
		for _, e := range entries {
			if err := e.Key.Pack(w, depth+1); err != nil {
				return err
			}
			w.PutU32(uint32(len(e.Profiles)))
			for _, p := range e.Profiles {
				if err := p.Pack(w, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := packLocations(m.GiveAssetKeyLocations); err != nil {
		return err
	}
	return packLocations(m.PushAssetKeyLocations)
}

func (m *dataMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}

	n, err := r.GetU32()
	if err != nil {
		return err
	}
	if n > maxGossipListLen {
		return gossipListTooLarge(n)
	}
	profiles := make([]*common.NodeProfile, 0, n)
	for i := uint32(0); i < n; i++ {
		var p common.NodeProfile
		if err := p.Unpack(r, depth+1); err != nil {
			return err
		}
		profiles = append(profiles, &p)
	}

	n, err = r.GetU32()
	if err != nil {
		return err
	}
	if n > maxGossipListLen {
		return gossipListTooLarge(n)
	}
	wants := make([]common.AssetKey, 0, n)
	for i := uint32(0); i < n; i++ {
		var k common.AssetKey
		if err := k.Unpack(r, depth+1); err != nil {
			return err
		}
		wants = append(wants, k)
	}

	unpackLocations := func() ([]assetKeyLocations, error) {
		n, err := r.GetU32()
		if err != nil {
			return nil, err
		}
		if n > maxGossipListLen {
			return nil, gossipListTooLarge(n)
		}
		entries := make([]assetKeyLocations, 0, n)
		for i := uint32(0); i < n; i++ {
			var e assetKeyLocations
			if err := e.Key.Unpack(r, depth+1); err != nil {
				return nil, err
			}
			count, err := r.GetU32()
			if err != nil {
				return nil, err
			}
			if count > maxGossipListLen {
				return nil, gossipListTooLarge(count)
			}
			e.Profiles = make([]*common.NodeProfile, 0, count)
			for j := uint32(0); j < count; j++ {
				var p common.NodeProfile
				if err := p.Unpack(r, depth+1); err != nil {
					return nil, err
				}
				e.Profiles = append(e.Profiles, &p)
			}
			entries = append(entries, e)
		}
		return entries, nil
	}

	gives, err := unpackLocations()
	if err != nil {
		return err
	}
	pushes, err := unpackLocations()
	if err != nil {
		return err
	}

	m.PushNodeProfiles = profiles
	m.WantAssetKeys = wants
	m.GiveAssetKeyLocations = gives
	m.PushAssetKeyLocations = pushes
	return nil
}

func gossipListTooLarge(n uint32) error {
	return axerr.New(axerr.TooLarge).WithMessage("gossip list too large: %d", n)
}
