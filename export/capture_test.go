// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/reel/compositor"
	"github.com/gogpu/reel/playback"
)

func TestCaptureStepsUntilTransportEnds(t *testing.T) {
	tl := colorTimeline(1.0)
	comp, err := compositor.New(32, 18)
	if err != nil {
		t.Fatalf("compositor: %v", err)
	}
	defer comp.Close()
	sync := playback.New(tl)
	rec := NewCapture(sync, comp)

	enc := newStubEncoder()
	info := StreamInfo{
		Width: 32, Height: 18, FPS: 10,
		Path:   filepath.Join(t.TempDir(), "cap.avi"),
		Config: testConfig(10),
	}
	if err := enc.Begin(context.Background(), info); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sync.Seek(0)
	sync.Play()
	dst := comp.NewFrame()
	base := time.Unix(1000, 0)

	// Synthetic ticks at exactly frame cadence: the transport crosses
	// the one second mark on the eleventh tick and stops.
	ended := false
	for i := 0; i < 15 && !ended; i++ {
		now := base.Add(time.Duration(i) * 100 * time.Millisecond)
		ended, err = rec.step(context.Background(), tl, now, enc, dst, len(enc.pts), 10)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if !ended {
		t.Fatal("transport never ended")
	}
	if len(enc.pts) != 10 {
		t.Errorf("captured %d frames, want 10", len(enc.pts))
	}
	if sync.State() != playback.Stopped {
		t.Errorf("state = %v, want stopped", sync.State())
	}
	// Red first half, blue second half.
	if enc.sums[0] == enc.sums[9] {
		t.Error("first and last captured frames identical")
	}
	// Capture marks every frame a keyframe.
	for i, k := range enc.keys {
		if !k {
			t.Errorf("frame %d not a keyframe", i)
		}
	}
}

func TestCaptureRecordRealClock(t *testing.T) {
	tl := colorTimeline(0.3)
	comp, err := compositor.New(16, 16)
	if err != nil {
		t.Fatalf("compositor: %v", err)
	}
	defer comp.Close()
	sync := playback.New(tl)

	rec := NewCapture(sync, comp)
	enc := newStubEncoder()
	rec.enc = enc

	path, err := rec.Record(context.Background(), tl, testConfig(10),
		filepath.Join(t.TempDir(), "live.mp4"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if path != enc.info.Path {
		t.Errorf("path = %q, want %q", path, enc.info.Path)
	}
	if !enc.finished {
		t.Error("encoder not finished")
	}
	if len(enc.pts) == 0 {
		t.Error("no frames captured")
	}
	if sync.State() != playback.Stopped {
		t.Errorf("state = %v, want stopped", sync.State())
	}
	// Canvas size comes from the live session, not the config.
	if enc.info.Width != 16 || enc.info.Height != 16 {
		t.Errorf("stream = %dx%d, want 16x16", enc.info.Width, enc.info.Height)
	}
}

func TestCaptureRecordCancelled(t *testing.T) {
	tl := colorTimeline(5.0)
	comp, err := compositor.New(16, 16)
	if err != nil {
		t.Fatalf("compositor: %v", err)
	}
	defer comp.Close()
	rec := NewCapture(playback.New(tl), comp)
	enc := newStubEncoder()
	rec.enc = enc

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rec.Record(ctx, tl, testConfig(10), filepath.Join(t.TempDir(), "x.avi"))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Record = %v, want ErrCancelled", err)
	}
	if !enc.aborted {
		t.Error("encoder not aborted on cancel")
	}
}

func TestCaptureRecordEmptyTimeline(t *testing.T) {
	tl := colorTimeline(0)
	comp, err := compositor.New(16, 16)
	if err != nil {
		t.Fatalf("compositor: %v", err)
	}
	defer comp.Close()
	rec := NewCapture(playback.New(tl), comp)

	if _, err := rec.Record(context.Background(), tl, testConfig(10), "never.avi"); err == nil {
		t.Error("Record of empty timeline succeeded")
	}
}
