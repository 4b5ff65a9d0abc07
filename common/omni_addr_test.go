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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
)

func TestParseTCPv4(t *testing.T) {
	addr, err := OmniAddr("tcp(ip4(127.0.0.1),60000)").ParseTCP()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", addr.IP.String())
	assert.Equal(t, 60000, addr.Port)
}

func TestParseTCPv6(t *testing.T) {
	addr, err := OmniAddr("tcp(ip6(::1),8080)").ParseTCP()
	require.NoError(t, err)
	assert.Equal(t, "::1", addr.IP.String())
	assert.Equal(t, 8080, addr.Port)
}

func TestParseTCPUnknownForms(t *testing.T) {
	for _, s := range []string{
		"udp(ip4(127.0.0.1),60000)",
		"tcp(dns(example.com),60000)",
		"tcp(ip4(127.0.0.1))",
		"tcp(ip4(not-an-ip),60000)",
		"tcp(ip4(127.0.0.1),notaport)",
		"garbage",
	} {
		_, err := OmniAddr(s).ParseTCP()
		assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err), s)
	}
}

func TestCreateTCPRoundTrip(t *testing.T) {
	a := CreateTCP(net.ParseIP("192.168.1.10"), 4050)
	assert.Equal(t, OmniAddr("tcp(ip4(192.168.1.10),4050)"), a)

	addr, err := a.ParseTCP()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", addr.IP.String())
	assert.Equal(t, 4050, addr.Port)
}
