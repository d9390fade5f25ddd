// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package export renders a timeline to a video file.
//
// A Job owns one export run: it resolves and composites every frame at
// exact frame times, feeds them to an encoder, mixes the audible clips
// into a single track, and reports progress through phases. Frame
// timing is derived purely from the frame index and the configured
// rate, so two runs over the same timeline produce identical output.
//
// Encoders form a fallback chain. A configured render server takes the
// whole job when reachable; otherwise frames are piped to a local
// ffmpeg, and when no ffmpeg is installed the motion JPEG writer keeps
// export working with nothing but Go. CaptureExporter is the separate
// real-time path for hosts whose sources cannot seek.
package export

import "errors"

var (
	// ErrCancelled reports that the job was cancelled, either through
	// Job.Cancel or the run context. Partial output is removed and
	// caches are released before Run returns it.
	ErrCancelled = errors.New("export: cancelled")

	// ErrEncoder reports an encoder failure after frames were already
	// accepted. The job cannot switch encoders mid-stream, so this is
	// fatal for the run.
	ErrEncoder = errors.New("export: encoder failed")

	// ErrUnavailable reports that an encoder cannot run in this
	// environment. The job moves on to the next encoder in the chain.
	ErrUnavailable = errors.New("export: encoder unavailable")
)
