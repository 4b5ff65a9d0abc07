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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
)

func pipeStreams(maxFrameLen uint32) (*FramedStream, *FramedStream) {
	a, b := net.Pipe()
	return NewFramedStream(a, maxFrameLen), NewFramedStream(b, maxFrameLen)
}

func TestFrameRoundTrip(t *testing.T) {
	a, b := pipeStreams(1024)
	defer a.Close()
	defer b.Close()

	go func() {
		a.Send([]byte("payload"))
	}()

	got, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestEmptyFrame(t *testing.T) {
	a, b := pipeStreams(1024)
	defer a.Close()
	defer b.Close()

	go func() {
		a.Send(nil)
	}()

	got, err := b.Recv()
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestOversizeSendRejected(t *testing.T) {
	a, _ := pipeStreams(8)
	defer a.Close()

	err := a.Send(make([]byte, 9))
	assert.Equal(t, axerr.TooLarge, axerr.KindOf(err))
}

func TestOversizeDeclaredLengthRejectedBeforeRead(t *testing.T) {
	rawA, rawB := net.Pipe()
	b := NewFramedStream(rawB, 16)
	defer b.Close()
	defer rawA.Close()

	go func() {
		var head [4]byte
		binary.LittleEndian.PutUint32(head[:], 1<<30)
		rawA.Write(head[:])
	}()

	_, err := b.Recv()
	assert.Equal(t, axerr.TooLarge, axerr.KindOf(err))
}

func TestRecvOnClosedStream(t *testing.T) {
	a, b := pipeStreams(64)
	a.Close()

	_, err := b.Recv()
	kind := axerr.KindOf(err)
	assert.True(t, kind == axerr.EndOfStream || kind == axerr.IoError || kind == axerr.NetworkError)
}
