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
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

const (
	// MaxFrameLen is the frame cap of peer sessions.
	MaxFrameLen = 64 * 1024 * 1024
	// MaxControlFrameLen is the frame cap of the control RPC surface.
	MaxControlFrameLen = 1 * 1024 * 1024
)

// FramedStream carries length-prefixed frames over a byte stream: a
// little-endian 4-byte length, then the payload. Send and Recv each hold
// their own lock, so one writer and one reader may run concurrently while
// frame boundaries stay intact.
type FramedStream struct {
	conn        io.ReadWriteCloser
	maxFrameLen uint32

	sendMu sync.Mutex
	recvMu sync.Mutex
}

func NewFramedStream(conn io.ReadWriteCloser, maxFrameLen uint32) *FramedStream {
	return &FramedStream{conn: conn, maxFrameLen: maxFrameLen}
}

func (s *FramedStream) Send(payload []byte) error {
	if uint32(len(payload)) > s.maxFrameLen {
		return axerr.New(axerr.TooLarge).WithMessage("frame too large: %d", len(payload))
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var head [4]byte
	binary.LittleEndian.PutUint32(head[:], uint32(len(payload)))
	if _, err := s.conn.Write(head[:]); err != nil {
		return wrapIOErr(err)
	}
	if _, err := s.conn.Write(payload); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

func (s *FramedStream) Recv() ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	var head [4]byte
	if _, err := io.ReadFull(s.conn, head[:]); err != nil {
		return nil, wrapIOErr(err)
	}

	n := binary.LittleEndian.Uint32(head[:])
	if n > s.maxFrameLen {
		return nil, axerr.New(axerr.TooLarge).WithMessage("declared frame length too large: %d", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return nil, wrapIOErr(err)
	}
	return payload, nil
}

// SendMessage serializes exactly one message into one frame.
func (s *FramedStream) SendMessage(m rocketpack.Message) error {
	b, err := rocketpack.Encode(m)
	if err != nil {
		return err
	}
	return s.Send(b)
}

// RecvMessage reads exactly one frame and parses it. Any parse error is an
// InvalidFormat that terminates the stream's usefulness.
func (s *FramedStream) RecvMessage(m rocketpack.Message) error {
	b, err := s.Recv()
	if err != nil {
		return err
	}
	if err := rocketpack.Decode(m, b); err != nil {
		if axerr.KindOf(err) == axerr.Unknown {
			return axerr.New(axerr.InvalidFormat).WithSource(err)
		}
		return err
	}
	return nil
}

func (s *FramedStream) Close() error {
	return s.conn.Close()
}

func wrapIOErr(err error) error {
	if err == io.EOF {
		return axerr.New(axerr.EndOfStream).WithSource(err)
	}
	if ne, ok := err.(net.Error); ok {
		return axerr.New(axerr.NetworkError).WithSource(ne)
	}
	if err == io.ErrUnexpectedEOF {
		return axerr.New(axerr.EndOfStream).WithSource(err)
	}
	return axerr.New(axerr.IoError).WithSource(err)
}
