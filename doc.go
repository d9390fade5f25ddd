// Package reel provides a timeline composition and rendering engine for Go.
//
// # Overview
//
// reel models a video-editor timeline: stacked tracks holding clips of
// video, image, text, solid color, and audio media on a shared time axis.
// It resolves which clips are visible at any instant, computes how each is
// transformed and styled (transitions between adjacent clips, animation
// curves within a clip), and renders the result either as a live preview
// or as a deterministic frame-by-frame export.
//
// # Quick Start
//
//	import "github.com/gogpu/reel"
//
//	tl := &reel.Timeline{Tracks: []*reel.Track{track}}
//
//	// What is on screen at t=5.5s, and how is it styled?
//	layers := reel.ResolveLayers(tl.Tracks, 5.5)
//	for _, l := range layers {
//		style := reel.LayerStyle(l, 5.5)
//		_ = style
//	}
//
// # Architecture
//
// The library is organized into:
//   - Root package: timeline model, layer resolution, style computation.
//     Pure functions over the model, no I/O, testable with synthetic times.
//   - compositor: draws resolved layers into RGBA frames, with a software
//     path and an optional GPU path (compositor/wgpu).
//   - playback: drift-correcting live preview synchronizer.
//   - export: deterministic frame-exact export and encoding pipeline.
//   - media: asset probing and frame-exact decoding via ffmpeg.
//
// # Coordinate System
//
// Placement coordinates are percentages of the canvas, so a timeline
// renders identically at any output resolution. Rotation is in degrees.
// The compositor converts both to pixels and radians at the drawing edge.
//
// # Logging
//
// reel produces no log output by default. Call SetLogger to enable it.
package reel

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
