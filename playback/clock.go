// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package playback

import "time"

// Clock is the virtual playhead of a preview session. It advances by
// scaled wall-clock deltas while playing and is set directly on seek, so
// the timeline position never depends on any media source's own notion
// of time.
//
// Clock is not thread-safe; the owning Synchronizer serializes access.
type Clock struct {
	seconds float64
}

// Seconds returns the current playhead position in timeline seconds.
func (c *Clock) Seconds() float64 { return c.seconds }

// Set moves the playhead to t. Negative values clamp to zero.
func (c *Clock) Set(t float64) {
	if t < 0 {
		t = 0
	}
	c.seconds = t
}

// Advance moves the playhead forward by wall scaled by rate and returns
// the new position. Non-positive wall deltas and rates advance nothing,
// so a stalled or skewed ticker cannot move the playhead backwards.
func (c *Clock) Advance(wall time.Duration, rate float64) float64 {
	if wall <= 0 || rate <= 0 {
		return c.seconds
	}
	c.seconds += wall.Seconds() * rate
	return c.seconds
}
