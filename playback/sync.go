// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package playback drives the live timeline preview. A Synchronizer
// advances a virtual clock by scaled wall-clock deltas and reconciles
// registered media sources against it using drift thresholds: live
// preview trades exactness for latency, the opposite bargain from the
// export pipeline.
package playback

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/reel"
)

// Drift thresholds in seconds. A source is reseeked only when its
// reported position strays further than the active threshold from the
// clip's target media time. Playing tolerates more drift because a
// reseek mid-playback stutters; paused scrubbing needs the displayed
// frame to track the playhead closely.
const (
	DriftPlaying = 0.25
	DriftPaused  = 0.04
)

// DefaultTickInterval is the preview loop cadence used by Run when no
// WithTickInterval option is given (about 30 ticks per second).
const DefaultTickInterval = 33 * time.Millisecond

// endEpsilon absorbs the binary rounding left over from summing tick
// deltas, so a playhead that lands within it of the timeline end counts
// as having reached it. Ten 100ms ticks sum to 0.9999999999999999, not
// 1.0. Far below any frame interval, so no real frame is swallowed.
const endEpsilon = 1e-9

// State is the synchronizer transport state.
type State int32

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Synchronizer reconciles media sources to a virtual clock. Construct
// one per preview session with New, register sources on Sources(), then
// drive it either with Run on a real ticker or by calling Tick directly
// with synthetic times.
//
// The timeline must not be mutated while the synchronizer is running;
// take it out of service around edits.
type Synchronizer struct {
	timeline *reel.Timeline
	sources  *Registry
	interval time.Duration

	state   atomic.Int32
	running atomic.Bool

	mu        sync.Mutex
	clock     Clock
	rate      float64
	loop      bool
	lastTick  time.Time
	forceSync bool
	onTick    func(t float64)
	onEnded   func()
}

// Option configures a Synchronizer during creation.
type Option func(*Synchronizer)

// WithTickInterval sets the cadence Run ticks at. Non-positive values
// keep the default.
func WithTickInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates a stopped synchronizer for tl with an empty source
// registry.
func New(tl *reel.Timeline, opts ...Option) *Synchronizer {
	if tl == nil {
		tl = &reel.Timeline{}
	}
	s := &Synchronizer{
		timeline: tl,
		sources:  NewRegistry(),
		interval: DefaultTickInterval,
		rate:     1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the registry holding this synchronizer's
// clip-to-source bindings.
func (s *Synchronizer) Sources() *Registry { return s.sources }

// State returns the current transport state.
func (s *Synchronizer) State() State { return State(s.state.Load()) }

// Position returns the playhead position in timeline seconds.
func (s *Synchronizer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Seconds()
}

// Rate returns the playback rate multiplier.
func (s *Synchronizer) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetRate sets the playback rate multiplier. Non-positive rates are
// ignored.
func (s *Synchronizer) SetRate(r float64) {
	if r <= 0 {
		return
	}
	s.mu.Lock()
	s.rate = r
	s.mu.Unlock()
}

// SetLoop controls end-of-timeline behavior: looping restarts playback
// from zero instead of stopping.
func (s *Synchronizer) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

// OnTick installs a callback invoked after every tick with the playhead
// position. The callback runs on the ticking goroutine; keep it fast.
func (s *Synchronizer) OnTick(fn func(t float64)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// OnEnded installs a callback invoked once when playback reaches the
// timeline end without looping.
func (s *Synchronizer) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// Play starts (or resumes) playback. Every source is force-resynced on
// the next tick so positions converge immediately rather than waiting
// for drift to accumulate.
func (s *Synchronizer) Play() {
	if State(s.state.Swap(int32(Playing))) == Playing {
		return
	}
	s.mu.Lock()
	s.forceSync = true
	s.lastTick = time.Time{}
	s.mu.Unlock()
	reel.Logger().Info("playback playing", "position", s.Position())
}

// Pause holds the playhead and pauses every source. Safe at any time.
func (s *Synchronizer) Pause() {
	if State(s.state.Load()) != Playing {
		return
	}
	s.state.Store(int32(Paused))
	s.pauseAll()
	reel.Logger().Info("playback paused", "position", s.Position())
}

// Stop halts playback, rewinds the playhead to zero, and pauses every
// source. No ended callback fires.
func (s *Synchronizer) Stop() {
	s.state.Store(int32(Stopped))
	s.mu.Lock()
	s.clock.Set(0)
	s.mu.Unlock()
	s.pauseAll()
}

// Seek moves the playhead to t (clamped to the timeline) and forces an
// immediate reconcile pass so scrubbing updates without waiting for the
// next tick. The transport state is preserved.
func (s *Synchronizer) Seek(t float64) {
	if dur := s.timeline.Duration(); t > dur {
		t = dur
	}
	s.mu.Lock()
	s.clock.Set(t)
	pos := s.clock.Seconds()
	s.mu.Unlock()
	s.reconcile(pos, s.State(), true)
	reel.Logger().Debug("playback seek", "position", pos)
}

// Tick advances the synchronizer by one step at wall time now: the
// clock moves by the wall delta scaled by rate (while playing), every
// source is reconciled, and the end of the timeline stops or loops
// playback. Tick with synthetic times is the unit-test entry point.
func (s *Synchronizer) Tick(now time.Time) {
	st := s.State()
	if st == Stopped {
		return
	}

	s.mu.Lock()
	var delta time.Duration
	if !s.lastTick.IsZero() && now.After(s.lastTick) {
		delta = now.Sub(s.lastTick)
	}
	s.lastTick = now
	if st == Playing {
		s.clock.Advance(delta, s.rate)
	}
	t := s.clock.Seconds()
	force := s.forceSync
	s.forceSync = false
	loop := s.loop
	onTick := s.onTick
	onEnded := s.onEnded
	s.mu.Unlock()

	s.reconcile(t, st, force)

	if onTick != nil {
		onTick(t)
	}

	dur := s.timeline.Duration()
	if st != Playing || dur <= 0 || t < dur-endEpsilon {
		return
	}
	if loop {
		s.mu.Lock()
		s.clock.Set(0)
		s.forceSync = true
		s.mu.Unlock()
		reel.Logger().Debug("playback looped")
		return
	}
	s.state.Store(int32(Stopped))
	s.mu.Lock()
	s.clock.Set(0)
	s.mu.Unlock()
	s.pauseAll()
	reel.Logger().Info("playback ended")
	if onEnded != nil {
		onEnded()
	}
}

// Run drives Tick on a ticker until ctx is cancelled or the transport
// reaches Stopped (end of timeline, or an explicit Stop). Call Play
// before Run; a finished run must be restarted for the next playback.
// A second concurrent Run returns immediately.
func (s *Synchronizer) Run(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	defer s.running.Store(false)

	reel.Logger().Info("synchronizer loop started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			reel.Logger().Info("synchronizer loop stopping", "reason", "context")
			return
		case now := <-ticker.C:
			s.Tick(now)
			if s.State() == Stopped {
				reel.Logger().Info("synchronizer loop stopping", "reason", "stopped")
				return
			}
		}
	}
}

// reconcile brings every bound source toward its target media time for
// playhead position t. Inactive clips are paused; active clips are
// reseeked when forced or when drift exceeds the state's threshold,
// then told to play or pause to match the transport.
func (s *Synchronizer) reconcile(t float64, st State, force bool) {
	threshold := DriftPlaying
	if st != Playing {
		threshold = DriftPaused
	}

	bindings := s.sources.beginTick()
	defer s.sources.endTick()

	for _, b := range bindings {
		if !b.clip.Contains(t) {
			b.src.Pause()
			continue
		}

		target := b.clip.MediaTime(t)
		if target < 0 {
			target = 0
		}
		if d := b.src.Duration(); d > 0 && target > d {
			target = d
		}

		switch {
		case force:
			b.src.SeekTo(target)
		case !b.src.Ready():
			// Position is not meaningful until decode catches up;
			// the drift check picks the source up once it is ready.
		case math.Abs(b.src.Position()-target) > threshold:
			reel.Logger().Debug("drift reseek",
				"clip", b.clip.ID,
				"position", b.src.Position(),
				"target", target,
			)
			b.src.SeekTo(target)
		}

		if st == Playing {
			b.src.Play()
		} else {
			b.src.Pause()
		}
	}
}

// pauseAll pauses every bound source.
func (s *Synchronizer) pauseAll() {
	bindings := s.sources.beginTick()
	defer s.sources.endTick()
	for _, b := range bindings {
		b.src.Pause()
	}
}
