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
	"net"
	"sync"
	"time"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/base"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/networks/connection"
)

const (
	// acceptQueueCap bounds the half-accepted sessions waiting per type.
	// A full queue rejects further requests of that type.
	acceptQueueCap = 20

	acceptTaskCount = 3
	acceptTickDelay = time.Second
)

// Accepter runs the server side of the session handshake and hands
// accepted sessions to the receiver channel registered for their type.
type Accepter struct {
	tcpAccepter connection.TcpAccepter
	signer      common.Signer
	random      base.RandomBytesProvider
	sleeper     base.Sleeper
	logger      log.Logger

	// queues hold accepted sessions per type; slots are the matching
	// reservation permits. A permit is taken before the Accept result is
	// sent and released when the session is dequeued, so a queue send
	// after a successful reservation never blocks.
	queues map[Type]chan *Session
	slots  map[Type]chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAccepter starts the accept loops immediately.
func NewAccepter(tcpAccepter connection.TcpAccepter, signer common.Signer, random base.RandomBytesProvider, sleeper base.Sleeper) *Accepter {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Accepter{
		tcpAccepter: tcpAccepter,
		signer:      signer,
		random:      random,
		sleeper:     sleeper,
		logger:      log.New("module", "session"),
		queues: map[Type]chan *Session{
			TypeNodeFinder:    make(chan *Session, acceptQueueCap),
			TypeFileExchanger: make(chan *Session, acceptQueueCap),
		},
		slots: map[Type]chan struct{}{
			TypeNodeFinder:    make(chan struct{}, acceptQueueCap),
			TypeFileExchanger: make(chan struct{}, acceptQueueCap),
		},
		cancel: cancel,
	}

	for i := 0; i < acceptTaskCount; i++ {
		a.wg.Add(1)
		go a.acceptLoop(ctx)
	}

	return a
}

// Accept pulls one established session of the given type. It blocks until
// a session arrives or the accepter shuts down.
func (a *Accepter) Accept(ctx context.Context, typ Type) (*Session, error) {
	queue, ok := a.queues[typ]
	if !ok {
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unsupported session type: %s", typ)
	}
	select {
	case s := <-queue:
		<-a.slots[typ]
		return s, nil
	case <-ctx.Done():
		return nil, axerr.New(axerr.EndOfStream).WithMessage("accepter closed").WithSource(ctx.Err())
	}
}

// Shutdown aborts the accept loops. Close the TCP accepter first: its
// accept error is what unblocks a loop stuck inside Accept.
func (a *Accepter) Shutdown() {
	a.cancel()
	a.wg.Wait()
}

func (a *Accepter) acceptLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		if err := a.sleeper.Sleep(ctx, acceptTickDelay); err != nil {
			return
		}
		if err := a.acceptOne(); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("accept failed", "err", err)
		}
	}
}

func (a *Accepter) acceptOne() error {
	stream, peerAddr, err := a.tcpAccepter.Accept()
	if err != nil {
		return err
	}

	session, err := a.handshake(stream, peerAddr)
	if err != nil {
		stream.Close()
		return err
	}
	if session == nil {
		// Rejected for backpressure; the result message is already sent.
		stream.Close()
		return nil
	}
	return nil
}

// handshake runs the server side of the protocol of §session: hello,
// challenge, signature, request, result. A nil session with nil error means
// the request was rejected.
func (a *Accepter) handshake(stream *connection.FramedStream, peerAddr net.Addr) (*Session, error) {
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

	nonce, err := a.random.GetBytes(challengeNonceLen)
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

	cert, err := a.signer.Sign(recvChallenge.Nonce[:])
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

	var recvRequest requestMessage
	if err := stream.RecvMessage(&recvRequest); err != nil {
		return nil, err
	}
	var typ Type
	switch recvRequest.RequestType {
	case requestTypeNodeFinder:
		typ = TypeNodeFinder
	case requestTypeFileExchanger:
		typ = TypeFileExchanger
	default:
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unsupported request type: %d", recvRequest.RequestType)
	}

	// Reserve a queue slot first; the Accept result goes on the wire
	// before the session becomes visible to any consumer, so the peer
	// always reads it ahead of the protocol's first message.
	select {
	case a.slots[typ] <- struct{}{}:
	default:
		if err := stream.SendMessage(&resultMessage{ResultType: resultTypeReject}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := stream.SendMessage(&resultMessage{ResultType: resultTypeAccept}); err != nil {
		<-a.slots[typ]
		return nil, err
	}

	session := &Session{
		Type:          typ,
		Addr:          omniAddrOf(peerAddr),
		HandshakeType: HandshakeTypeAccepted,
		Cert:          &recvSignature.Cert,
		Stream:        stream,
	}
	a.queues[typ] <- session
	return session, nil
}

func omniAddrOf(addr net.Addr) common.OmniAddr {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return common.CreateTCP(tcpAddr.IP, uint16(tcpAddr.Port))
	}
	return common.OmniAddr(addr.String())
}
