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
	"context"
	"time"
)

// Sleeper abstracts the tick delay of background loops. Every long-running
// task sleeps through this interface so tests can collapse time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type systemSleeper struct{}

func (systemSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewSystemSleeper returns the real sleeper.
func NewSystemSleeper() Sleeper {
	return systemSleeper{}
}

// FakeSleeper yields to the scheduler without consuming wall time. Tick
// loops driven by it spin as fast as the runtime allows.
type FakeSleeper struct{}

func (FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	// Yield briefly so sibling goroutines make progress.
	t := time.NewTimer(time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
