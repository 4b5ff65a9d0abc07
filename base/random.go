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

package base

import (
	"crypto/rand"
	"sync"

	"github.com/omnius-labs/axus/axerr"
)

// RandomBytesProvider supplies nonces and node ids. The session layer and
// node finder never reach for a CSPRNG directly.
type RandomBytesProvider interface {
	GetBytes(n int) ([]byte, error)
}

type systemRandomBytesProvider struct{}

func (systemRandomBytesProvider) GetBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, axerr.New(axerr.CryptoError).WithMessage("random read failed").WithSource(err)
	}
	return b, nil
}

// NewSystemRandomBytesProvider returns the crypto/rand-backed provider.
func NewSystemRandomBytesProvider() RandomBytesProvider {
	return systemRandomBytesProvider{}
}

// FakeRandomBytesProvider replays a fixed sequence for tests.
type FakeRandomBytesProvider struct {
	mu    sync.Mutex
	next  byte
	queue [][]byte
}

func NewFakeRandomBytesProvider() *FakeRandomBytesProvider {
	return &FakeRandomBytesProvider{}
}

// Enqueue pins the next GetBytes result.
func (p *FakeRandomBytesProvider) Enqueue(b []byte) {
	p.mu.Lock()
	p.queue = append(p.queue, b)
	p.mu.Unlock()
}

func (p *FakeRandomBytesProvider) GetBytes(n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) > 0 {
		b := p.queue[0]
		p.queue = p.queue[1:]
		if len(b) != n {
			return nil, axerr.New(axerr.UnexpectedError).WithMessage("queued bytes length mismatch")
		}
		return b, nil
	}

	b := make([]byte, n)
	for i := range b {
		b[i] = p.next
		p.next++
	}
	return b, nil
}
