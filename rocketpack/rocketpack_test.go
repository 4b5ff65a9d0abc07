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

package rocketpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnius-labs/axus/axerr"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutU8(0xab)
	w.PutU32(0xdeadbeef)
	w.PutU64(0x0102030405060708)
	w.PutI64(-42)
	w.PutBool(true)
	w.PutBytes([]byte{1, 2, 3})
	w.PutString("こんにちは")

	r := NewReader(w.Bytes())

	v8, err := r.GetU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xab), v8)

	v32, err := r.GetU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	v64, err := r.GetU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)

	i64, err := r.GetI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), i64)

	b, err := r.GetBool()
	require.NoError(t, err)
	assert.True(t, b)

	bs, err := r.GetBytes(16)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bs)

	s, err := r.GetString(64)
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", s)

	assert.Equal(t, 0, r.Len())
}

func TestOversizeDeclaredLength(t *testing.T) {
	w := NewWriter()
	w.PutBytes(make([]byte, 100))

	r := NewReader(w.Bytes())
	_, err := r.GetBytes(10)
	assert.Equal(t, axerr.TooLarge, axerr.KindOf(err))
}

func TestTruncatedInput(t *testing.T) {
	w := NewWriter()
	w.PutU32(8) // declares eight bytes, delivers none

	r := NewReader(w.Bytes())
	_, err := r.GetBytes(64)
	assert.Equal(t, axerr.EndOfStream, axerr.KindOf(err))

	r = NewReader([]byte{1, 2})
	_, err = r.GetU32()
	assert.Equal(t, axerr.EndOfStream, axerr.KindOf(err))
}

func TestInvalidString(t *testing.T) {
	w := NewWriter()
	w.PutBytes([]byte{0xff, 0xfe})

	r := NewReader(w.Bytes())
	_, err := r.GetString(16)
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))
}

func TestCheckDepth(t *testing.T) {
	assert.NoError(t, CheckDepth(0))
	assert.NoError(t, CheckDepth(MaxDepth))
	assert.Error(t, CheckDepth(MaxDepth+1))
}

type testMessage struct {
	Value string
}

func (m *testMessage) Pack(w *Writer, depth uint32) error {
	if err := CheckDepth(depth); err != nil {
		return err
	}
	w.PutString(m.Value)
	return nil
}

func (m *testMessage) Unpack(r *Reader, depth uint32) error {
	if err := CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetString(1024)
	if err != nil {
		return err
	}
	m.Value = v
	return nil
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode(&testMessage{Value: "Hello, World!"})
	require.NoError(t, err)

	var m testMessage
	require.NoError(t, Decode(&m, b))
	assert.Equal(t, "Hello, World!", m.Value)

	// Trailing bytes are not tolerated.
	err = Decode(&m, append(b, 0x00))
	assert.Equal(t, axerr.InvalidFormat, axerr.KindOf(err))
}
