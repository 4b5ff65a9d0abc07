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
	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/fileexchange"
	"github.com/omnius-labs/axus/finder"
	"github.com/omnius-labs/axus/networks/connection"
)

// ProxyConfig selects the outbound dialer policy.
type ProxyConfig struct {
	Type string // "none" | "socks5"
	Addr string
}

// FinderConfig bounds the node finder's mesh.
type FinderConfig struct {
	MaxConnectedSessionCount int
	MaxAcceptedSessionCount  int
}

// ExchangerConfig bounds the file exchanger's mesh.
type ExchangerConfig struct {
	MaxConnectedSessionForPublishCount   int
	MaxConnectedSessionForSubscribeCount int
	MaxAcceptedSessionCount              int
}

// Config is the engine configuration. ListenAddr binds the control RPC;
// PeerListenAddr binds the peer transport in OmniAddr form.
type Config struct {
	ListenAddr     string
	PeerListenAddr string

	Proxy   ProxyConfig
	UseUpnp bool

	StateDirPath string

	// BlockStoreBackend selects the block payload store: "kv" (badger or
	// leveldb via KvBackend) or "file" (sqlite keys + fan-out files).
	BlockStoreBackend string
	KvBackend         string

	// SeedNodeProfiles are node URIs inserted before the first gossip
	// round.
	SeedNodeProfiles []string

	// AdvertisedAddrs are OmniAddr strings gossiped in this node's
	// profile in addition to the detected global addresses.
	AdvertisedAddrs []string

	Finder    FinderConfig
	Exchanger ExchangerConfig
}

// DefaultConfig is the daemon's baseline; the TOML file overrides it.
var DefaultConfig = Config{
	ListenAddr:        "127.0.0.1:4040",
	PeerListenAddr:    "tcp(ip4(0.0.0.0),4050)",
	Proxy:             ProxyConfig{Type: "none"},
	UseUpnp:           false,
	StateDirPath:      "state",
	BlockStoreBackend: "file",
	KvBackend:         "badger",
	Finder: FinderConfig{
		MaxConnectedSessionCount: 6,
		MaxAcceptedSessionCount:  6,
	},
	Exchanger: ExchangerConfig{
		MaxConnectedSessionForPublishCount:   4,
		MaxConnectedSessionForSubscribeCount: 4,
		MaxAcceptedSessionCount:              8,
	},
}

func (c *Config) proxyOption() (connection.ProxyOption, error) {
	switch c.Proxy.Type {
	case "", "none":
		return connection.ProxyOption{Type: connection.ProxyTypeNone}, nil
	case "socks5":
		return connection.ProxyOption{Type: connection.ProxyTypeSocks5, Addr: c.Proxy.Addr}, nil
	default:
		return connection.ProxyOption{}, axerr.New(axerr.UnsupportedType).WithMessage("unknown proxy type: %s", c.Proxy.Type)
	}
}

func (c *Config) finderOptions() finder.Options {
	addrs := make([]common.OmniAddr, 0, len(c.AdvertisedAddrs))
	for _, a := range c.AdvertisedAddrs {
		addrs = append(addrs, common.OmniAddr(a))
	}
	return finder.Options{
		MaxConnectedSessionCount: c.Finder.MaxConnectedSessionCount,
		MaxAcceptedSessionCount:  c.Finder.MaxAcceptedSessionCount,
		AdvertisedAddrs:          addrs,
	}
}

func (c *Config) exchangerOptions() fileexchange.Options {
	return fileexchange.Options{
		MaxConnectedSessionForPublishCount:   c.Exchanger.MaxConnectedSessionForPublishCount,
		MaxConnectedSessionForSubscribeCount: c.Exchanger.MaxConnectedSessionForSubscribeCount,
		MaxAcceptedSessionCount:              c.Exchanger.MaxAcceptedSessionCount,
	}
}
