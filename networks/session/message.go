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
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/rocketpack"
)

// Version is the session-protocol version bitset carried by hello
// messages. The agreed version is the bitwise AND of both sides' sets.
type Version uint32

const VersionV1 Version = 1

const challengeNonceLen = 32

type helloMessage struct {
	Version Version
}

func (m *helloMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.Version))
	return nil
}

func (m *helloMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	m.Version = Version(v)
	return nil
}

type challengeMessage struct {
	Nonce [challengeNonceLen]byte
}

func (m *challengeMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutBytes(m.Nonce[:])
	return nil
}

func (m *challengeMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	b, err := r.GetBytes(challengeNonceLen)
	if err != nil {
		return err
	}
	if len(b) != challengeNonceLen {
		return axerr.New(axerr.InvalidFormat).WithMessage("invalid nonce length: %d", len(b))
	}
	copy(m.Nonce[:], b)
	return nil
}

type signatureMessage struct {
	Cert common.OmniCert
}

func (m *signatureMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	return m.Cert.Pack(w, depth+1)
}

func (m *signatureMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	return m.Cert.Unpack(r, depth+1)
}

type requestType uint32

const (
	requestTypeUnknown       requestType = 0
	requestTypeNodeFinder    requestType = 1
	requestTypeFileExchanger requestType = 2
)

type requestMessage struct {
	RequestType requestType
}

func (m *requestMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.RequestType))
	return nil
}

func (m *requestMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	m.RequestType = requestType(v)
	return nil
}

type resultType uint32

const (
	resultTypeUnknown resultType = 0
	resultTypeAccept  resultType = 1
	resultTypeReject  resultType = 2
)

type resultMessage struct {
	ResultType resultType
}

func (m *resultMessage) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU32(uint32(m.ResultType))
	return nil
}

func (m *resultMessage) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	v, err := r.GetU32()
	if err != nil {
		return err
	}
	m.ResultType = resultType(v)
	return nil
}
