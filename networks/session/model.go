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
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/networks/connection"
)

// Type identifies the protocol multiplexed over an established session.
type Type int

const (
	TypeUnknown Type = iota
	TypeNodeFinder
	TypeFileExchanger
)

func (t Type) String() string {
	switch t {
	case TypeNodeFinder:
		return "node_finder"
	case TypeFileExchanger:
		return "file_exchanger"
	default:
		return "unknown"
	}
}

// HandshakeType records which side initiated the TCP connection.
type HandshakeType int

const (
	HandshakeTypeUnknown HandshakeType = iota
	HandshakeTypeConnected
	HandshakeTypeAccepted
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeTypeConnected:
		return "connected"
	case HandshakeTypeAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Session is an authenticated framed stream bound to one protocol type.
// It lives from a successful handshake until an I/O error, cancellation,
// or duplicate detection tears it down.
type Session struct {
	Type          Type
	Addr          common.OmniAddr
	HandshakeType HandshakeType
	Cert          *common.OmniCert
	Stream        *connection.FramedStream
}
