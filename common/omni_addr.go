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

package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/omnius-labs/axus/axerr"
)

// OmniAddr is the opaque textual form of a transport endpoint, e.g.
// tcp(ip4(127.0.0.1),60000). Only the TCP variants are parseable; unknown
// forms travel through gossip untouched and fail only when dialed.
type OmniAddr string

// CreateTCP renders a socket address into its OmniAddr form.
func CreateTCP(ip net.IP, port uint16) OmniAddr {
	if ip4 := ip.To4(); ip4 != nil {
		return OmniAddr(fmt.Sprintf("tcp(ip4(%s),%d)", ip4.String(), port))
	}
	return OmniAddr(fmt.Sprintf("tcp(ip6(%s),%d)", ip.String(), port))
}

func (a OmniAddr) String() string {
	return string(a)
}

// ParseTCP yields the host:port socket address of a TCP variant.
func (a OmniAddr) ParseTCP() (*net.TCPAddr, error) {
	s := string(a)
	inner, ok := unwrap(s, "tcp")
	if !ok {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("not a tcp address: %s", s)
	}

	idx := strings.LastIndexByte(inner, ',')
	if idx < 0 {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("missing port: %s", s)
	}
	hostPart := strings.TrimSpace(inner[:idx])
	portPart := strings.TrimSpace(inner[idx+1:])

	port, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid port: %s", portPart).WithSource(err)
	}

	var host string
	if v, ok := unwrap(hostPart, "ip4"); ok {
		host = v
	} else if v, ok := unwrap(hostPart, "ip6"); ok {
		host = v
	} else {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("unknown host form: %s", hostPart)
	}

	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid ip: %s", host)
	}

	return &net.TCPAddr{IP: ip, Port: int(port)}, nil
}

// unwrap peels "tag(...)" and returns the inside.
func unwrap(s, tag string) (string, bool) {
	if !strings.HasPrefix(s, tag+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(tag)+1 : len(s)-1], true
}
