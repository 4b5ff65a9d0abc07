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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/rocketpack"
)

type textMessage struct {
	Value string
}

func (m *textMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutString(m.Value)
	return nil
}

func (m *textMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetString(1024)
	if err != nil {
		return err
	}
	m.Value = v
	return nil
}

func TestHandshakeAndExchange(t *testing.T) {
	tcpAccepter, err := connection.NewTcpAccepter(common.OmniAddr("tcp(ip4(127.0.0.1),0)"), nil)
	require.NoError(t, err)

	tcpConnector, err := connection.NewTcpConnector(connection.ProxyOption{Type: connection.ProxyTypeNone})
	require.NoError(t, err)

	serverSigner, err := common.NewEd25519Signer("server")
	require.NoError(t, err)
	clientSigner, err := common.NewEd25519Signer("client")
	require.NoError(t, err)

	random := base.NewSystemRandomBytesProvider()
	sleeper := base.FakeSleeper{}

	accepter := NewAccepter(tcpAccepter, serverSigner, random, sleeper)
	t.Cleanup(func() {
		tcpAccepter.Close()
		accepter.Shutdown()
	})
	connector := NewConnector(tcpConnector, clientSigner, random)

	addr := common.CreateTCP(tcpAccepter.Addr().IP, uint16(tcpAccepter.Addr().Port))

	clientDone := make(chan *Session, 1)
	go func() {
		sess, err := connector.Connect(addr, TypeNodeFinder)
		if err != nil {
			t.Error(err)
			clientDone <- nil
			return
		}
		clientDone <- sess
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server, err := accepter.Accept(ctx, TypeNodeFinder)
	require.NoError(t, err)
	defer server.Stream.Close()

	client := <-clientDone
	require.NotNil(t, client)
	defer client.Stream.Close()

	assert.Equal(t, HandshakeTypeConnected, client.HandshakeType)
	assert.Equal(t, HandshakeTypeAccepted, server.HandshakeType)
	assert.Equal(t, TypeNodeFinder, server.Type)
	assert.Equal(t, "server", client.Cert.Name)
	assert.Equal(t, "client", server.Cert.Name)

	require.NoError(t, client.Stream.SendMessage(&textMessage{Value: "Hello, World!"}))
	var got textMessage
	require.NoError(t, server.Stream.RecvMessage(&got))
	assert.Equal(t, "Hello, World!", got.Value)
}

func TestCertVerification(t *testing.T) {
	signer, err := common.NewEd25519Signer("me")
	require.NoError(t, err)

	cert, err := signer.Sign([]byte("nonce-bytes"))
	require.NoError(t, err)

	assert.NoError(t, cert.Verify([]byte("nonce-bytes")))
	assert.Error(t, cert.Verify([]byte("other-bytes")))
}
