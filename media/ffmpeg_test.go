// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"strings"
	"testing"
)

func TestStreamOutputParsesProgressBlocks(t *testing.T) {
	// Two progress blocks the way -progress pipe:2 emits them,
	// interleaved with ordinary log lines.
	raw := strings.Join([]string{
		"Input #0, mov,mp4, from 'in.mp4':",
		"frame=30",
		"fps=29.97",
		"bitrate=1200.5kbits/s",
		"time=00:00:01.00",
		"speed=1.02x",
		"progress=continue",
		"frame=60",
		"fps=30.00",
		"bitrate=1190.0kbits/s",
		"time=00:00:02.00",
		"speed=1.01x",
		"progress=end",
	}, "\n")

	var got []Progress
	var lines int
	streamOutput(strings.NewReader(raw), func(p *Progress) {
		got = append(got, *p)
	}, func(string) {
		lines++
	})

	if len(got) != 2 {
		t.Fatalf("progress blocks = %d, want 2", len(got))
	}
	if got[0].Frame != 30 || got[1].Frame != 60 {
		t.Errorf("frames = %d, %d, want 30, 60", got[0].Frame, got[1].Frame)
	}
	if got[1].FPS != 30.0 {
		t.Errorf("FPS = %v, want 30", got[1].FPS)
	}
	if got[0].Time != "00:00:01.00" {
		t.Errorf("Time = %q, want %q", got[0].Time, "00:00:01.00")
	}
	if got[0].Speed != "1.02x" {
		t.Errorf("Speed = %q, want %q", got[0].Speed, "1.02x")
	}
	if lines != 13 {
		t.Errorf("log lines = %d, want 13", lines)
	}
}

func TestStreamOutputSkipsEmptyBlocks(t *testing.T) {
	// A progress terminator with no frame data must not fire the
	// handler; ffmpeg emits one for streams that produce no video.
	raw := "bitrate=N/A\nprogress=end\n"

	calls := 0
	streamOutput(strings.NewReader(raw), func(*Progress) { calls++ }, nil)
	if calls != 0 {
		t.Errorf("handler calls = %d, want 0", calls)
	}
}

func TestValueAfter(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"speed=1.5x", "1.5x"},
		{"time=  00:00:01.00 ", "00:00:01.00"},
		{"bitrate=", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := valueAfter(tt.line); got != tt.want {
			t.Errorf("valueAfter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestFmtSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000000"},
		{1.5, "1.500000"},
		{0.0333333, "0.033333"},
		{125, "125.000000"},
	}
	for _, tt := range tests {
		if got := fmtSeconds(tt.in); got != tt.want {
			t.Errorf("fmtSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
