// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"image"
	"math"

	"github.com/gogpu/reel/media"
)

// keyframeInterval is the keyframe cadence in frames. Every fifteenth
// frame starts a new group, which keeps seeking in the output snappy
// without bloating the stream.
const keyframeInterval = 15

// StreamInfo describes the stream an encoder is about to receive.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64

	// Path is the requested output location. An encoder whose
	// container differs from the requested format may swap the
	// extension; Finish reports the path actually written.
	Path string

	Config Config

	// Audio is the mixed soundtrack, nil when the timeline has no
	// audible clips. Encoders that cannot mux audio drop it with a
	// warning.
	Audio *media.PCM
}

// Encoder consumes rendered frames and produces the output container.
// Calls arrive from one goroutine in order: Begin once, WriteFrame per
// frame, then exactly one of Finish or Abort.
type Encoder interface {
	Name() string

	// Begin prepares the encoder. An ErrUnavailable return means the
	// encoder cannot run here and the job should try the next one;
	// any other error is fatal.
	Begin(ctx context.Context, info StreamInfo) error

	// WriteFrame appends one frame. pts is the presentation time in
	// microseconds; keyframe asks for a new group to start here.
	// Frames arrive in presentation order with strictly increasing
	// pts.
	WriteFrame(ctx context.Context, frame *image.NRGBA, pts int64, keyframe bool) error

	// Finish flushes the stream, muxes audio when supported, and
	// returns the path of the finished file.
	Finish(ctx context.Context) (string, error)

	// Abort discards partial output. Safe after any Begin that
	// succeeded.
	Abort()
}

// ptsMicros returns the presentation timestamp of frame i in
// microseconds. Timestamps are computed from the index alone, never
// accumulated, so rounding cannot drift over a long render.
func ptsMicros(i int, fps float64) int64 {
	return int64(math.Round(float64(i) * 1e6 / fps))
}

// frameCount returns how many frames a timeline of the given duration
// produces: one per frame interval, the trailing partial interval
// included.
func frameCount(duration, fps float64) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(duration * fps))
}
