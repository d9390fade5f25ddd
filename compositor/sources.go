// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/reel"
)

// Source errors.
var (
	// ErrSourceNotReady reports that a source cannot produce pixels
	// for the requested instant yet. The session skips the layer for
	// this frame and tries again on the next one.
	ErrSourceNotReady = errors.New("compositor: source not ready")

	// ErrNoSource reports that no frame source is registered for the
	// clip's media kind.
	ErrNoSource = errors.New("compositor: no source for media kind")
)

// Request identifies the pixels a layer needs for one frame.
type Request struct {
	// Clip is the clip being drawn.
	Clip *reel.Clip

	// MediaTime is the source-media instant in seconds, already
	// offset- and speed-adjusted.
	MediaTime float64

	// CanvasW and CanvasH are the frame dimensions, for sources that
	// raster at canvas-relative sizes (text) or pick decode
	// resolutions.
	CanvasW, CanvasH int
}

// FrameSource produces source pixels for clips of one media kind.
// Implementations must be safe for concurrent use; the returned image
// is treated as read-only by the compositor.
type FrameSource interface {
	// Frame returns the pixels for the request. Returning
	// ErrSourceNotReady (possibly wrapped) skips the layer for this
	// frame without failing it.
	Frame(ctx context.Context, req Request) (*image.NRGBA, error)
}

// SourceSet routes frame requests to the source registered for each
// media kind. A new set starts with built-in sources for color fills
// and text; hosts register video and image sources from the media
// package and may replace any built-in.
type SourceSet struct {
	mu     sync.RWMutex
	byKind map[reel.MediaKind]FrameSource
}

// NewSourceSet returns a set with the built-in color and text sources
// registered.
func NewSourceSet() *SourceSet {
	s := &SourceSet{byKind: make(map[reel.MediaKind]FrameSource)}
	s.Register(reel.MediaColor, newColorSource())
	s.Register(reel.MediaText, NewTextSource())
	return s
}

// Register installs src as the source for kind, replacing any previous
// registration.
func (s *SourceSet) Register(kind reel.MediaKind, src FrameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKind[kind] = src
}

// Lookup returns the source registered for kind, or nil.
func (s *SourceSet) Lookup(kind reel.MediaKind) FrameSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKind[kind]
}

// Frame resolves the request through the registered source.
func (s *SourceSet) Frame(ctx context.Context, req Request) (*image.NRGBA, error) {
	s.mu.RLock()
	src := s.byKind[req.Clip.Kind]
	s.mu.RUnlock()

	if src == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSource, req.Clip.Kind)
	}
	return src.Frame(ctx, req)
}

// colorSource renders solid fills. Frames are tiny uniform tiles; the
// layer transform stretches them to the placed size.
type colorSource struct {
	mu    sync.Mutex
	tiles map[reel.RGBA]*image.NRGBA
}

func newColorSource() *colorSource {
	return &colorSource{tiles: make(map[reel.RGBA]*image.NRGBA)}
}

func (c *colorSource) Frame(_ context.Context, req Request) (*image.NRGBA, error) {
	fill := req.Clip.Fill

	c.mu.Lock()
	defer c.mu.Unlock()

	if tile, ok := c.tiles[fill]; ok {
		return tile, nil
	}
	tile := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	clearFrame(tile, fill)
	c.tiles[fill] = tile
	return tile, nil
}
