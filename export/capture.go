// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/compositor"
	"github.com/gogpu/reel/playback"
)

// CaptureExporter records a live playback session in real time: it
// drives the synchronizer at frame cadence off the wall clock and
// encodes whatever the compositor shows, buffering stalls included.
// That makes it wall-clock bound and lower fidelity than a Job, which
// is why it is the last resort, kept for hosts whose sources cannot
// seek, like live inputs.
//
// The exporter owns the transport while Record runs; pausing or
// seeking the synchronizer from elsewhere stalls the recording.
type CaptureExporter struct {
	sync *playback.Synchronizer
	comp *compositor.Compositor
	enc  Encoder
}

// NewCapture returns an exporter recording the given session. The
// synchronizer and compositor must be built over the same timeline and
// stay alive for the whole recording.
func NewCapture(sync *playback.Synchronizer, comp *compositor.Compositor) *CaptureExporter {
	return &CaptureExporter{sync: sync, comp: comp}
}

// Record plays the timeline from the start and encodes every tick
// until the transport ends. The canvas size comes from the live
// session; cfg supplies rate, quality and format. Audio is not
// captured. Returns the path of the finished file.
func (c *CaptureExporter) Record(ctx context.Context, tl *reel.Timeline, cfg Config, path string) (string, error) {
	cfg = cfg.normalize()
	dur := tl.Duration()
	if dur <= 0 {
		return "", fmt.Errorf("export: timeline is empty")
	}

	w, h := c.comp.Size()
	enc := c.enc
	if enc == nil {
		enc = NewMJPEGEncoder()
	}
	info := StreamInfo{Width: w, Height: h, FPS: cfg.FPS, Path: path, Config: cfg}
	if err := enc.Begin(ctx, info); err != nil {
		return "", err
	}

	reel.Logger().Info("export: real-time capture started",
		"size", fmt.Sprintf("%dx%d", w, h), "fps", cfg.FPS, "duration", dur)

	c.sync.SetLoop(false)
	c.sync.Seek(0)
	c.sync.Play()

	dst := c.comp.NewFrame()
	interval := time.Duration(float64(time.Second) / cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Stalled decoders make the transport run long; give the capture
	// one extra second before cutting it off.
	maxFrames := frameCount(dur, cfg.FPS) + int(cfg.FPS)

	for i := 0; i < maxFrames; i++ {
		var now time.Time
		select {
		case <-ctx.Done():
			enc.Abort()
			c.sync.Pause()
			return "", ErrCancelled
		case now = <-ticker.C:
		}

		ended, err := c.step(ctx, tl, now, enc, dst, i, cfg.FPS)
		if err != nil {
			enc.Abort()
			c.sync.Pause()
			return "", err
		}
		if ended {
			break
		}
	}
	return enc.Finish(ctx)
}

// step advances the transport one tick and encodes the frame it
// lands on. The tick that crosses the end stops the transport and
// rewinds its clock, so that one is not encoded; step reports true
// instead.
func (c *CaptureExporter) step(ctx context.Context, tl *reel.Timeline, now time.Time, enc Encoder, dst *image.NRGBA, i int, fps float64) (bool, error) {
	c.sync.Tick(now)
	if c.sync.State() == playback.Stopped {
		return true, nil
	}
	t := c.sync.Position()
	if err := c.comp.RenderFrame(ctx, tl, t, dst); err != nil {
		return false, err
	}
	if err := enc.WriteFrame(ctx, dst, ptsMicros(i, fps), true); err != nil {
		return false, err
	}
	return false, nil
}
