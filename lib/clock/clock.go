// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// timing-sensitive parts of loom: resize coalescing in the signal
// router, render throttling in the byte stream pump, and session age
// computation in the registry.
//
// Production code holds a Clock field set to Real(). Tests use Fake(),
// which only moves when Advance is called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go router.Run(...)        // goroutine sleeps on the fake clock
//	fake.WaitForTimers(1)     // block until the sleep is registered
//	fake.Advance(50 * time.Millisecond)
package clock

import "time"

// Clock abstracts the handful of time operations loom depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
