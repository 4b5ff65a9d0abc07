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
	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/connection"
)

// Connector runs the client side of the session handshake.
type Connector struct {
	tcpConnector connection.TcpConnector
	signer       common.Signer
	random       base.RandomBytesProvider
}

func NewConnector(tcpConnector connection.TcpConnector, signer common.Signer, random base.RandomBytesProvider) *Connector {
	return &Connector{
		tcpConnector: tcpConnector,
		signer:       signer,
		random:       random,
	}
}

// Connect dials addr and negotiates a session of the given type.
func (c *Connector) Connect(addr common.OmniAddr, typ Type) (*Session, error) {
	stream, err := c.tcpConnector.Connect(addr)
	if err != nil {
		return nil, err
	}

	session, err := c.handshake(stream, addr, typ)
	if err != nil {
		stream.Close()
		return nil, err
	}
	return session, nil
}

func (c *Connector) handshake(stream *connection.FramedStream, addr common.OmniAddr, typ Type) (*Session, error) {
	sendHello := helloMessage{Version: VersionV1}
	if err := stream.SendMessage(&sendHello); err != nil {
		return nil, err
	}
	var recvHello helloMessage
	if err := stream.RecvMessage(&recvHello); err != nil {
		return nil, err
	}

	version := sendHello.Version & recvHello.Version
	if version&VersionV1 == 0 {
		return nil, axerr.New(axerr.UnsupportedVersion).WithMessage("no common session version: %d", version)
	}

	nonce, err := c.random.GetBytes(challengeNonceLen)
	if err != nil {
		return nil, err
	}
	var sendChallenge challengeMessage
	copy(sendChallenge.Nonce[:], nonce)
	if err := stream.SendMessage(&sendChallenge); err != nil {
		return nil, err
	}
	var recvChallenge challengeMessage
	if err := stream.RecvMessage(&recvChallenge); err != nil {
		return nil, err
	}

	cert, err := c.signer.Sign(recvChallenge.Nonce[:])
	if err != nil {
		return nil, err
	}
	if err := stream.SendMessage(&signatureMessage{Cert: *cert}); err != nil {
		return nil, err
	}
	var recvSignature signatureMessage
	if err := stream.RecvMessage(&recvSignature); err != nil {
		return nil, err
	}
	if err := recvSignature.Cert.Verify(sendChallenge.Nonce[:]); err != nil {
		return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid signature").WithSource(err)
	}

	var reqType requestType
	switch typ {
	case TypeNodeFinder:
		reqType = requestTypeNodeFinder
	case TypeFileExchanger:
		reqType = requestTypeFileExchanger
	default:
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unsupported session type: %s", typ)
	}
	if err := stream.SendMessage(&requestMessage{RequestType: reqType}); err != nil {
		return nil, err
	}

	var recvResult resultMessage
	if err := stream.RecvMessage(&recvResult); err != nil {
		return nil, err
	}
	if recvResult.ResultType != resultTypeAccept {
		return nil, axerr.New(axerr.Reject).WithMessage("session rejected by peer")
	}

	return &Session{
		Type:          typ,
		Addr:          addr,
		HandshakeType: HandshakeTypeConnected,
		Cert:          &recvSignature.Cert,
		Stream:        stream,
	}, nil
}
