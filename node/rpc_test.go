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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/rocketpack"
)

func TestHealthRPC(t *testing.T) {
	server, err := NewRpcServer("127.0.0.1:0", AppInfo{Name: "axusd", GitTag: "v1.2.3"})
	require.NoError(t, err)

	go server.Serve()
	defer server.Close()

	addr := server.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	stream := connection.NewFramedStream(conn, connection.MaxControlFrameLen)
	defer stream.Close()

	w := rocketpack.NewWriter()
	w.PutU32(healthFunctionID)
	require.NoError(t, stream.Send(w.Bytes()))

	var res healthResponse
	require.NoError(t, stream.RecvMessage(&res))
	assert.Equal(t, "v1.2.3", res.GitTag)
}

func TestUnknownFunctionIsIgnored(t *testing.T) {
	server, err := NewRpcServer("127.0.0.1:0", AppInfo{Name: "axusd", GitTag: "dev"})
	require.NoError(t, err)

	go server.Serve()
	defer server.Close()

	conn, err := net.Dial("tcp", server.listener.Addr().String())
	require.NoError(t, err)

	stream := connection.NewFramedStream(conn, connection.MaxControlFrameLen)
	defer stream.Close()

	w := rocketpack.NewWriter()
	w.PutU32(9999)
	require.NoError(t, stream.Send(w.Bytes()))

	// The server logs a warning and closes without replying.
	_, err = stream.Recv()
	assert.Error(t, err)
}
