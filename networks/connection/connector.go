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

package connection

import (
	"net"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
)

// ProxyType selects the outbound dialer policy.
type ProxyType int

const (
	ProxyTypeNone ProxyType = iota
	ProxyTypeSocks5
)

// ProxyOption configures the connector. Socks5 requires Addr.
type ProxyOption struct {
	Type ProxyType
	Addr string
}

const dialTimeout = 10 * time.Second

// TcpConnector is the dialing half of the transport capability.
type TcpConnector interface {
	Connect(addr common.OmniAddr) (*FramedStream, error)
}

type tcpConnector struct {
	dialer xproxy.Dialer
}

// NewTcpConnector builds a connector for the given proxy policy.
func NewTcpConnector(option ProxyOption) (TcpConnector, error) {
	switch option.Type {
	case ProxyTypeNone:
		return &tcpConnector{dialer: &net.Dialer{Timeout: dialTimeout}}, nil
	case ProxyTypeSocks5:
		if option.Addr == "" {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("socks5 proxy address is not configured")
		}
		dialer, err := xproxy.SOCKS5("tcp", option.Addr, nil, &net.Dialer{Timeout: dialTimeout})
		if err != nil {
			return nil, axerr.New(axerr.NetworkError).WithMessage("socks5 dialer setup failed").WithSource(err)
		}
		return &tcpConnector{dialer: dialer}, nil
	default:
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unknown proxy type")
	}
}

func (c *tcpConnector) Connect(addr common.OmniAddr) (*FramedStream, error) {
	tcpAddr, err := addr.ParseTCP()
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.Dial("tcp", tcpAddr.String())
	if err != nil {
		return nil, axerr.New(axerr.NetworkError).WithMessage("dial failed: %s", tcpAddr).WithSource(err)
	}
	return NewFramedStream(conn, MaxFrameLen), nil
}
