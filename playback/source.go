// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package playback

import (
	"sort"
	"sync"

	"github.com/gogpu/reel"
)

// MediaSource is a playable media stream bound to one clip. Implementations
// decode asynchronously: Play and Pause are best-effort requests, Position
// reports wherever decode actually is, and Ready reports whether the
// source can serve frames right now. The synchronizer reconciles Position
// against the clip's target media time every tick.
type MediaSource interface {
	// Play requests the source to advance in real time.
	Play()
	// Pause requests the source to hold its current position.
	Pause()
	// SeekTo requests decode to jump to mediaTime seconds.
	SeekTo(mediaTime float64)
	// Position returns the source's current media time in seconds.
	Position() float64
	// Duration returns the source's total media duration in seconds,
	// or 0 when unknown.
	Duration() float64
	// Ready reports whether the source can serve frames at its current
	// position. An unready source still accepts transport requests.
	Ready() bool
}

// binding ties a clip to its media source for reconciliation.
type binding struct {
	clip *reel.Clip
	src  MediaSource
}

type registryOp struct {
	clipID string
	add    bool
	b      binding
}

// Registry holds the clip-to-source bindings the synchronizer reconciles.
// Register and Unregister are safe at any time: mutations issued while a
// tick is iterating the bindings are queued and applied when the next
// tick begins, so a source callback may unregister itself without
// corrupting the iteration.
type Registry struct {
	mu      sync.Mutex
	bound   map[string]binding
	pending []registryOp
	inTick  bool
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{bound: make(map[string]binding)}
}

// Register binds src to clip, keyed by the clip ID. Re-registering a
// clip ID replaces the previous binding.
func (r *Registry) Register(clip *reel.Clip, src MediaSource) {
	if clip == nil || src == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	op := registryOp{clipID: clip.ID, add: true, b: binding{clip: clip, src: src}}
	if r.inTick {
		r.pending = append(r.pending, op)
		return
	}
	r.applyLocked(op)
}

// Unregister removes the binding for clipID, if any.
func (r *Registry) Unregister(clipID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op := registryOp{clipID: clipID}
	if r.inTick {
		r.pending = append(r.pending, op)
		return
	}
	r.applyLocked(op)
}

// Len returns the number of applied bindings. Queued mutations do not
// count until the next tick applies them.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

// Source returns the registered source for clipID.
func (r *Registry) Source(clipID string) (MediaSource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bound[clipID]
	if !ok {
		return nil, false
	}
	return b.src, true
}

func (r *Registry) applyLocked(op registryOp) {
	if op.add {
		r.bound[op.clipID] = op.b
		return
	}
	delete(r.bound, op.clipID)
}

// beginTick applies queued mutations, marks the registry as iterating,
// and returns a stable snapshot ordered by clip ID.
func (r *Registry) beginTick() []binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.pending {
		r.applyLocked(op)
	}
	r.pending = r.pending[:0]
	r.inTick = true

	snap := make([]binding, 0, len(r.bound))
	for _, b := range r.bound {
		snap = append(snap, b)
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].clip.ID < snap[j].clip.ID })
	return snap
}

// endTick marks the iteration as finished. Mutations queued during the
// tick stay pending until the next beginTick.
func (r *Registry) endTick() {
	r.mu.Lock()
	r.inTick = false
	r.mu.Unlock()
}
