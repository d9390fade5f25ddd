// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package media resolves clip source references to pixels and samples.
//
// Assets live behind a Store (directory tree, in-memory blobs). Video and
// audio decode through ffmpeg subprocesses: an Executor locates the tools
// and streams progress, a Prober reads container metadata, VideoReader
// serves frame-exact decodes for export, and StreamPlayer feeds the live
// preview. Still images decode in process via image.Decode.
//
// The package has no opinion about timelines; callers map timeline time
// to media time before asking for frames.
package media

import "errors"

// Package errors. Decode failures wrap ErrDecode so callers can separate
// broken assets from missing ones.
var (
	// ErrToolNotFound reports that ffmpeg or ffprobe is not on PATH.
	ErrToolNotFound = errors.New("media: tool not found")

	// ErrNotFound reports that a store has no asset for the ref.
	ErrNotFound = errors.New("media: asset not found")

	// ErrDecode reports that an asset exists but could not be decoded.
	ErrDecode = errors.New("media: decode failed")

	// ErrNoVideo reports that an asset has no video stream.
	ErrNoVideo = errors.New("media: no video stream")

	// ErrNoAudio reports that an asset has no audio stream.
	ErrNoAudio = errors.New("media: no audio stream")
)
