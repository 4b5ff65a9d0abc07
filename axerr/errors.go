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

package axerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags an Error with its failure class. Background tasks log and
// continue on any kind; session loops terminate on protocol kinds.
type Kind int

const (
	Unknown Kind = iota
	IoError
	SerdeError
	DatabaseError
	HttpClientError
	CryptoError
	UpnpError
	NetworkError
	TimeError
	UnexpectedError
	InvalidFormat
	EndOfStream
	UnsupportedVersion
	UnsupportedType
	Reject
	NotFound
	AlreadyConnected
	AlreadyExists
	RateLimitExceeded
	TooLarge
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "I/O error"
	case SerdeError:
		return "serde error"
	case DatabaseError:
		return "database error"
	case HttpClientError:
		return "http client error"
	case CryptoError:
		return "crypto error"
	case UpnpError:
		return "upnp error"
	case NetworkError:
		return "network error"
	case TimeError:
		return "time conversion error"
	case UnexpectedError:
		return "unexpected error"
	case InvalidFormat:
		return "invalid format"
	case EndOfStream:
		return "end of stream"
	case UnsupportedVersion:
		return "unsupported version"
	case UnsupportedType:
		return "unsupported type"
	case Reject:
		return "reject"
	case NotFound:
		return "not found"
	case AlreadyConnected:
		return "already connected"
	case AlreadyExists:
		return "already exists"
	case RateLimitExceeded:
		return "rate limit exceeded"
	case TooLarge:
		return "too large"
	default:
		return "unknown error"
	}
}

// Error is the single error type crossing package boundaries. The source
// chain is preserved through pkg/errors so callers keep stack traces.
type Error struct {
	kind    Kind
	message string
	source  error
}

func New(kind Kind) *Error {
	return &Error{kind: kind}
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	e.message = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) WithSource(source error) *Error {
	if source != nil {
		e.source = errors.WithStack(source)
	}
	return e
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Error() string {
	switch {
	case e.message != "" && e.source != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.source)
	case e.message != "":
		return fmt.Sprintf("%s: %s", e.kind, e.message)
	case e.source != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.source)
	default:
		return e.kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.source
}

// KindOf recovers the kind from an error chain. Non-axerr errors map to
// Unknown.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
