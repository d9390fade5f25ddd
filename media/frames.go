// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/cache"
	"github.com/gogpu/reel/compositor"
)

// VideoFrames serves frame-exact video decodes to the compositor. It is
// the export-side source: a missing or broken asset fails the frame
// instead of skipping it. Readers are created lazily per ref and share
// one frame cache.
type VideoFrames struct {
	exec  *Executor
	store Store
	cache *FrameCache

	mu      sync.Mutex
	readers map[string]*VideoReader
}

// NewVideoFrames creates a video source over store. A nil cache gets a
// default-budget one.
func NewVideoFrames(exec *Executor, store Store, fc *FrameCache) *VideoFrames {
	if fc == nil {
		fc = NewFrameCache(0)
	}
	return &VideoFrames{
		exec:    exec,
		store:   store,
		cache:   fc,
		readers: make(map[string]*VideoReader),
	}
}

// Frame decodes the exact frame for the request.
func (v *VideoFrames) Frame(ctx context.Context, req compositor.Request) (*image.NRGBA, error) {
	r, err := v.reader(ctx, req.Clip.Source)
	if err != nil {
		return nil, err
	}
	return r.FrameAt(ctx, req.MediaTime)
}

func (v *VideoFrames) reader(ctx context.Context, ref string) (*VideoReader, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if r, ok := v.readers[ref]; ok {
		return r, nil
	}
	r, err := NewVideoReader(ctx, v.exec, v.store, ref, WithFrameCache(v.cache))
	if err != nil {
		return nil, err
	}
	v.readers[ref] = r
	return r, nil
}

// Cache exposes the shared frame cache for release hooks.
func (v *VideoFrames) Cache() *FrameCache { return v.cache }

// Release drops cached frames and readers. Export calls this between
// jobs and on cancellation.
func (v *VideoFrames) Release() {
	v.mu.Lock()
	v.readers = make(map[string]*VideoReader)
	v.mu.Unlock()
	v.cache.Clear()
}

// ImageFrames serves still images to the compositor, decoding each ref
// once.
type ImageFrames struct {
	store Store
	cache *cache.ShardedCache[string, *image.NRGBA]

	mu sync.Mutex
}

// NewImageFrames creates an image source over store.
func NewImageFrames(store Store) *ImageFrames {
	return &ImageFrames{
		store: store,
		cache: cache.NewSharded(0, cache.StringHasher, frameCost),
	}
}

// Frame returns the decoded image for the clip's source ref.
func (s *ImageFrames) Frame(_ context.Context, req compositor.Request) (*image.NRGBA, error) {
	ref := req.Clip.Source
	if img, ok := s.cache.Get(ref); ok {
		return img, nil
	}

	// One decode per ref; concurrent requests for distinct refs still
	// serialize here, which is fine for stills.
	s.mu.Lock()
	defer s.mu.Unlock()
	if img, ok := s.cache.Get(ref); ok {
		return img, nil
	}
	img, err := LoadImage(s.store, ref)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ref, img)
	return img, nil
}

// StreamFrames serves live preview frames from stream players attached
// per clip. A clip with no attached player, or one whose player has
// nothing decoded yet, skips its layer for the frame.
type StreamFrames struct {
	mu      sync.RWMutex
	players map[string]*StreamPlayer
}

// NewStreamFrames creates an empty preview source.
func NewStreamFrames() *StreamFrames {
	return &StreamFrames{players: make(map[string]*StreamPlayer)}
}

// Attach binds a player to a clip ID, replacing any previous binding.
func (s *StreamFrames) Attach(clipID string, p *StreamPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[clipID] = p
}

// Detach removes the binding for clip ID.
func (s *StreamFrames) Detach(clipID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, clipID)
}

// Frame returns the attached player's current frame.
func (s *StreamFrames) Frame(_ context.Context, req compositor.Request) (*image.NRGBA, error) {
	s.mu.RLock()
	p := s.players[req.Clip.ID]
	s.mu.RUnlock()

	if p == nil {
		return nil, fmt.Errorf("%w: clip %q has no stream", compositor.ErrSourceNotReady, req.Clip.ID)
	}
	img := p.CurrentFrame()
	if !p.Ready() || img == nil {
		return nil, fmt.Errorf("%w: clip %q is still buffering", compositor.ErrSourceNotReady, req.Clip.ID)
	}
	return img, nil
}

// RegisterExportSources wires frame-exact video and image sources into
// a source set. Export sessions call this on a set of their own.
func RegisterExportSources(set *compositor.SourceSet, exec *Executor, store Store, fc *FrameCache) *VideoFrames {
	video := NewVideoFrames(exec, store, fc)
	set.Register(reel.MediaVideo, video)
	set.Register(reel.MediaImage, NewImageFrames(store))
	return video
}

// RegisterPreviewSources wires streaming video and image sources into a
// source set for live playback.
func RegisterPreviewSources(set *compositor.SourceSet, streams *StreamFrames, store Store) {
	set.Register(reel.MediaVideo, streams)
	set.Register(reel.MediaImage, NewImageFrames(store))
}
