// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package playback

import (
	"math"
	"testing"
	"time"
)

func approxEq(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestClockZeroValue(t *testing.T) {
	var c Clock
	if got := c.Seconds(); got != 0 {
		t.Errorf("Seconds() = %v, want 0", got)
	}
}

func TestClockAdvance(t *testing.T) {
	var c Clock

	got := c.Advance(100*time.Millisecond, 1)
	if !approxEq(got, 0.1, 1e-9) {
		t.Errorf("Advance(100ms, 1) = %v, want 0.1", got)
	}

	got = c.Advance(100*time.Millisecond, 2)
	if !approxEq(got, 0.3, 1e-9) {
		t.Errorf("second Advance(100ms, 2) = %v, want 0.3", got)
	}
	if !approxEq(c.Seconds(), got, 1e-12) {
		t.Errorf("Seconds() = %v, want %v", c.Seconds(), got)
	}
}

func TestClockAdvanceGuards(t *testing.T) {
	var c Clock
	c.Set(1)

	tests := []struct {
		name string
		wall time.Duration
		rate float64
	}{
		{"negative wall", -time.Second, 1},
		{"zero wall", 0, 1},
		{"zero rate", time.Second, 0},
		{"negative rate", time.Second, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Advance(tt.wall, tt.rate); got != 1 {
				t.Errorf("Advance(%v, %v) = %v, want 1", tt.wall, tt.rate, got)
			}
		})
	}
}

func TestClockSet(t *testing.T) {
	var c Clock

	c.Set(5.5)
	if got := c.Seconds(); got != 5.5 {
		t.Errorf("Seconds() = %v, want 5.5", got)
	}

	c.Set(-1)
	if got := c.Seconds(); got != 0 {
		t.Errorf("Seconds() after Set(-1) = %v, want 0", got)
	}
}
