// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "time"

// ThrottleConfig tunes render scheduling.
type ThrottleConfig struct {
	// RenderDelay is how long after a chunk the pump waits for more
	// output before rendering.
	RenderDelay time.Duration

	// BackpressureThreshold is the render send latency above which the
	// consumer counts as backed up.
	BackpressureThreshold time.Duration

	// GapStep is the minimum gap used the first time the consumer backs
	// up. Gaps that halve below it collapse to zero.
	GapStep time.Duration

	// MaxGap caps the minimum gap.
	MaxGap time.Duration
}

// DefaultThrottleConfig returns the production tuning.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		RenderDelay:           5 * time.Millisecond,
		BackpressureThreshold: 50 * time.Millisecond,
		GapStep:               30 * time.Millisecond,
		MaxGap:                500 * time.Millisecond,
	}
}

// Throttle tracks when the next render is due and how far apart renders
// must be. It holds no clock; callers pass the current time.
type Throttle struct {
	config ThrottleConfig

	lastRender time.Time
	deadline   time.Time
	minimumGap time.Duration
	backedUp   bool
}

// NewThrottle returns a Throttle with no render pending and a zero gap.
func NewThrottle(config ThrottleConfig) *Throttle {
	return &Throttle{config: config}
}

// Deadline returns when the pending render is due, or false if none is
// pending.
func (t *Throttle) Deadline() (time.Time, bool) {
	return t.deadline, !t.deadline.IsZero()
}

// ScheduleRender arms the render deadline after output arrived at now.
// An already armed deadline is left alone so a steady stream of chunks
// cannot postpone the render forever.
func (t *Throttle) ScheduleRender(now time.Time) {
	if !t.deadline.IsZero() {
		return
	}
	deadline := now.Add(t.config.RenderDelay)
	if earliest := t.lastRender.Add(t.minimumGap); !t.lastRender.IsZero() && earliest.After(deadline) {
		deadline = earliest
	}
	t.deadline = deadline
}

// Rendered records a render sent at now whose send took latency, clears
// the deadline, and adapts the minimum gap.
func (t *Throttle) Rendered(now time.Time, latency time.Duration) {
	t.lastRender = now
	t.deadline = time.Time{}

	if latency > t.config.BackpressureThreshold {
		t.backedUp = true
		gap := t.minimumGap * 2
		if gap < t.config.GapStep {
			gap = t.config.GapStep
		}
		if gap > t.config.MaxGap {
			gap = t.config.MaxGap
		}
		t.minimumGap = gap
		return
	}

	t.backedUp = false
	gap := t.minimumGap / 2
	if gap < t.config.GapStep {
		gap = 0
	}
	t.minimumGap = gap
}

// MinimumGap returns the current minimum time between renders.
func (t *Throttle) MinimumGap() time.Duration { return t.minimumGap }

// BackedUp reports whether the last render send was slow.
func (t *Throttle) BackedUp() bool { return t.backedUp }
