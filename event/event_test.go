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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListenerNotifyBeforeWait(t *testing.T) {
	l := NewListener()
	l.Notify()

	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after notify")
	}
}

func TestListenerCoalesces(t *testing.T) {
	l := NewListener()
	l.Notify()
	l.Notify()
	l.Notify()

	l.Wait()

	select {
	case <-l.C():
		t.Fatal("repeated notifications must coalesce into one")
	default:
	}
}

func TestFnHubCallCollects(t *testing.T) {
	hub := NewFnHub[int, int]()
	h1 := hub.Listen(func(v int) int { return v + 1 })
	h2 := hub.Listen(func(v int) int { return v * 2 })
	defer h1.Release()
	defer h2.Release()

	res := hub.Call(10)
	assert.ElementsMatch(t, []int{11, 20}, res)
}

func TestFnHubReleaseUnregisters(t *testing.T) {
	hub := NewFnHub[struct{}, int]()
	h := hub.Listen(func(struct{}) int { return 42 })
	assert.Len(t, hub.Call(struct{}{}), 1)

	h.Release()
	h.Release() // releasing twice is harmless
	assert.Len(t, hub.Call(struct{}{}), 0)
}
