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

package event

// Listener is a single-slot binary latch. Notify makes the next Wait
// return immediately; repeated notifications coalesce into one. Exactly one
// goroutine may Wait at a time.
type Listener struct {
	ch chan struct{}
}

func NewListener() *Listener {
	return &Listener{ch: make(chan struct{}, 1)}
}

// Notify arms the latch. Safe to call from any goroutine.
func (l *Listener) Notify() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the latch is armed, then disarms it.
func (l *Listener) Wait() {
	<-l.ch
}

// C exposes the latch channel for use inside select statements.
func (l *Listener) C() <-chan struct{} {
	return l.ch
}
