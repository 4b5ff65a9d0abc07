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
	"encoding/binary"
	"unicode/utf8"

	"github.com/omnius-labs/axus/axerr"
)

// MaxDepth bounds structural recursion while packing or unpacking nested
// messages.
const MaxDepth = 32

// Message is one wire value: exactly one message is serialized per frame.
type Message interface {
	Pack(w *Writer, depth uint32) error
	Unpack(r *Reader, depth uint32) error
}

// CheckDepth guards every nested Pack/Unpack call.
func CheckDepth(depth uint32) error {
	if depth > MaxDepth {
		return axerr.New(axerr.InvalidFormat).WithMessage("depth limit exceeded")
	}
	return nil
}

// Encode serializes a message into a fresh byte slice.
func Encode(m Message) ([]byte, error) {
	w := NewWriter()
	if err := m.Pack(w, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode parses exactly one message out of b. Trailing bytes are an error.
func Decode(m Message, b []byte) error {
	r := NewReader(b)
	if err := m.Unpack(r, 0); err != nil {
		return err
	}
	if r.Len() != 0 {
		return axerr.New(axerr.InvalidFormat).WithMessage("trailing bytes after message")
	}
	return nil
}

// Writer appends little-endian primitives to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) {
	w.PutU64(uint64(v))
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
}

func (w *Writer) PutBytes(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutString(s string) {
	w.PutU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Reader consumes little-endian primitives from a byte slice. Declared
// lengths are validated against both the caller's maximum and the remaining
// input before any allocation happens.
type Reader struct {
	buf []byte
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Len() int {
	return len(r.buf)
}

func (r *Reader) take(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, axerr.New(axerr.EndOfStream).WithMessage("unexpected end of input")
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *Reader) GetU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) GetU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) GetU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	return int64(v), err
}

func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, axerr.New(axerr.InvalidFormat).WithMessage("invalid bool")
	}
}

func (r *Reader) GetBytes(maxLen int) ([]byte, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	if int(n) > maxLen {
		return nil, axerr.New(axerr.TooLarge).WithMessage("bytes too large: %d > %d", n, maxLen)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) GetString(maxLen int) (string, error) {
	b, err := r.GetBytes(maxLen)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", axerr.New(axerr.InvalidFormat).WithMessage("invalid utf-8 string")
	}
	return string(b), nil
}
