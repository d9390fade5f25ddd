// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

func TestGIFEncoderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	enc := NewGIFEncoder()
	info := StreamInfo{
		Width: 16, Height: 16, FPS: 10,
		Path:   filepath.Join(dir, "out.gif"),
		Config: Config{Format: FormatGIF},
	}
	if err := enc.Begin(context.Background(), info); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	frame := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < 5; i++ {
		for p := 3; p < len(frame.Pix); p += 4 {
			frame.Pix[p] = 0xff
		}
		if err := enc.WriteFrame(context.Background(), frame, ptsMicros(i, 10), i == 0); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}

	path, err := enc.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(g.Image) != 5 {
		t.Errorf("decoded %d frames, want 5", len(g.Image))
	}
	// 10 fps is exactly 10 centiseconds per frame.
	for i, d := range g.Delay {
		if d != 10 {
			t.Errorf("frame %d delay = %d, want 10", i, d)
		}
	}
}

func TestGIFEncoderSwapsExtension(t *testing.T) {
	dir := t.TempDir()
	enc := NewGIFEncoder()
	info := StreamInfo{
		Width: 8, Height: 8, FPS: 5,
		Path:   filepath.Join(dir, "out.mp4"),
		Config: Config{Format: FormatGIF},
	}
	if err := enc.Begin(context.Background(), info); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := enc.WriteFrame(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)), 0, true); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	path, err := enc.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if filepath.Ext(path) != ".gif" {
		t.Errorf("path = %q, want .gif extension", path)
	}
}

func TestGIFDelayAccumulation(t *testing.T) {
	// 30 fps does not divide 100 centiseconds evenly; the fractional
	// remainder must carry so one second of frames sums to one second.
	enc := NewGIFEncoder()
	info := StreamInfo{Width: 2, Height: 2, FPS: 30, Path: "unused.gif", Config: Config{Format: FormatGIF}}
	if err := enc.Begin(context.Background(), info); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	frame := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 30; i++ {
		if err := enc.WriteFrame(context.Background(), frame, 0, false); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	sum := 0
	for _, d := range enc.delays {
		if d != 3 && d != 4 {
			t.Errorf("delay = %d, want 3 or 4", d)
		}
		sum += d
	}
	if sum != 100 {
		t.Errorf("sum of 30 delays = %d centiseconds, want 100", sum)
	}
	enc.Abort()
}

func TestGIFEncoderFinishWithoutFrames(t *testing.T) {
	enc := NewGIFEncoder()
	info := StreamInfo{Width: 2, Height: 2, FPS: 10, Path: "never.gif", Config: Config{Format: FormatGIF}}
	if err := enc.Begin(context.Background(), info); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := enc.Finish(context.Background()); err == nil {
		t.Error("Finish with no frames succeeded")
	}
}
