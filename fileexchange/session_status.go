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
	"sync"
	"time"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/session"
)

// ExchangeType is the local role on a file session: the Publish side is
// the source, the Subscribe side the sink.
type ExchangeType uint32

const (
	ExchangeTypeUnknown   ExchangeType = 0
	ExchangeTypePublish   ExchangeType = 1
	ExchangeTypeSubscribe ExchangeType = 2
)

func (t ExchangeType) String() string {
	switch t {
	case ExchangeTypePublish:
		return "publish"
	case ExchangeTypeSubscribe:
		return "subscribe"
	default:
		return "unknown"
	}
}

// opposite flips the role for the accepting side of a handshake.
func (t ExchangeType) opposite() ExchangeType {
	switch t {
	case ExchangeTypePublish:
		return ExchangeTypeSubscribe
	case ExchangeTypeSubscribe:
		return ExchangeTypePublish
	default:
		return ExchangeTypeUnknown
	}
}

const dedupTTL = 30 * time.Minute

// sessionStatus is the exchanger's per-session state: the bound root hash
// and three rolling dedup sets suppressing duplicate requests and serves.
type sessionStatus struct {
	exchangeType ExchangeType
	sess         *session.Session
	rootHash     common.OmniHash

	mu           sync.Mutex
	sentWant     *common.VolatileSet[string]
	sentBlock    *common.VolatileSet[string]
	receivedWant *common.VolatileMap[string, common.OmniHash]
}

func newSessionStatus(exchangeType ExchangeType, sess *session.Session, rootHash common.OmniHash, clock base.Clock) *sessionStatus {
	return &sessionStatus{
		exchangeType: exchangeType,
		sess:         sess,
		rootHash:     rootHash,
		sentWant:     common.NewVolatileSet[string](dedupTTL, clock),
		sentBlock:    common.NewVolatileSet[string](dedupTTL, clock),
		receivedWant: common.NewVolatileMap[string, common.OmniHash](dedupTTL, clock),
	}
}
