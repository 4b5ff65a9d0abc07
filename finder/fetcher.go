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

import "github.com/omnius-labs/axus/common"

// NodeProfileFetcher supplies the initial seed profiles inserted before
// the first compute tick.
type NodeProfileFetcher interface {
	Fetch() ([]*common.NodeProfile, error)
}

// StaticNodeProfileFetcher serves a fixed profile list; the daemon feeds
// it from configuration, tests from literals.
type StaticNodeProfileFetcher struct {
	Profiles []*common.NodeProfile
}

func (f *StaticNodeProfileFetcher) Fetch() ([]*common.NodeProfile, error) {
	return f.Profiles, nil
}
