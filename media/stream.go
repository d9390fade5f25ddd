// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/gogpu/reel"
)

// streamBuffer is how many decoded frames queue ahead of display. The
// pipe buffer behind it gives ffmpeg a little more slack.
const streamBuffer = 16

// StreamPlayer decodes one video asset continuously for live preview.
// It satisfies the playback synchronizer's media source contract;
// Position reports where decode actually is, so it drifts under load
// and the synchronizer reseeks when the drift grows past its threshold.
//
// A background goroutine reads rawvideo frames from ffmpeg into a
// bounded queue; a pacer consumes one frame per frame interval while
// playing. SeekTo tears the stream down and restarts it at the target.
type StreamPlayer struct {
	exec *Executor
	ref  string
	path string
	info *Info

	// open starts an unbounded rawvideo stream at media time.
	// Swapped in tests to decode without ffmpeg.
	open func(ctx context.Context, at float64) (io.ReadCloser, error)

	mu      sync.Mutex
	playing bool
	closed  bool
	base    float64 // media time of the first frame after the last seek
	shown   int     // frames advanced past the primed frame
	current *image.NRGBA
	ready   bool
	frames  chan *image.NRGBA
	stop    context.CancelFunc
}

// NewStreamPlayer probes ref through store and prepares a streaming
// player positioned at media time zero. Decode starts on the first Play
// or SeekTo.
func NewStreamPlayer(ctx context.Context, exec *Executor, store Store, ref string) (*StreamPlayer, error) {
	if exec == nil {
		return nil, fmt.Errorf("%w: ffmpeg", ErrToolNotFound)
	}
	path, err := store.Path(ref)
	if err != nil {
		return nil, err
	}
	info, err := exec.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("%w: %q", ErrNoVideo, ref)
	}
	if info.FPS <= 0 {
		reel.Logger().Warn("source reports no frame rate, assuming 30", "ref", ref)
		info.FPS = 30
	}

	p := &StreamPlayer{exec: exec, ref: ref, path: path, info: info}
	p.open = p.spawn
	return p, nil
}

// Play starts or resumes real-time decode.
func (p *StreamPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.playing = true
	if p.stop == nil {
		p.startLocked(p.positionLocked())
	}
}

// Pause holds the current position. The decode goroutine keeps filling
// the queue until it is full, so resume is instant.
func (p *StreamPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// SeekTo restarts decode at mediaTime. The player reports not ready
// until the first frame at the new position arrives.
func (p *StreamPlayer) SeekTo(mediaTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if mediaTime < 0 {
		mediaTime = 0
	}
	if p.info.Duration > 0 && mediaTime > p.info.Duration {
		mediaTime = p.info.Duration
	}
	p.stopLocked()
	p.base = mediaTime
	p.shown = 0
	p.ready = false
	p.startLocked(mediaTime)
}

// Position returns the media time of the displayed frame.
func (p *StreamPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *StreamPlayer) positionLocked() float64 {
	return p.base + float64(p.shown)/p.info.FPS
}

// Duration returns the asset duration in seconds.
func (p *StreamPlayer) Duration() float64 { return p.info.Duration }

// Ready reports whether a frame for the current position is available.
func (p *StreamPlayer) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// CurrentFrame returns the frame at the current position, or nil before
// the first frame arrives. The image is reused read-only by callers.
func (p *StreamPlayer) CurrentFrame() *image.NRGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close stops decode and releases the stream. The player cannot be
// reused afterwards.
func (p *StreamPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.playing = false
	p.closed = true
	return nil
}

// startLocked launches the decode and pacer goroutines at media time
// at. Caller holds p.mu.
func (p *StreamPlayer) startLocked(at float64) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan *image.NRGBA, streamBuffer)
	p.frames = frames
	p.stop = cancel

	go p.decodeLoop(ctx, at, frames)
	go p.paceLoop(ctx, frames)
}

// stopLocked cancels the running stream, if any. The goroutines notice
// the cancel and exit; the old frame channel is abandoned to them.
// Caller holds p.mu.
func (p *StreamPlayer) stopLocked() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.frames = nil
}

// decodeLoop reads rawvideo frames into the queue until the stream ends
// or the context is cancelled. The channel close tells the pacer that
// the asset ran out.
func (p *StreamPlayer) decodeLoop(ctx context.Context, at float64, frames chan<- *image.NRGBA) {
	rc, err := p.open(ctx, at)
	if err != nil {
		reel.Logger().Warn("stream decode failed to start", "ref", p.ref, "error", err)
		close(frames)
		return
	}
	defer rc.Close()
	defer close(frames)

	if p.info.Width <= 0 || p.info.Height <= 0 {
		return
	}
	for {
		img := image.NewNRGBA(image.Rect(0, 0, p.info.Width, p.info.Height))
		if _, err := io.ReadFull(rc, img.Pix); err != nil {
			return
		}
		select {
		case frames <- img:
		case <-ctx.Done():
			return
		}
	}
}

// paceLoop advances the display one frame per frame interval while
// playing. The first frame primes the display without advancing, so
// Position stays at the seek target until playback really moves.
func (p *StreamPlayer) paceLoop(ctx context.Context, frames <-chan *image.NRGBA) {
	interval := time.Duration(float64(time.Second) / p.info.FPS)
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.step(frames)
		}
	}
}

// step consumes at most one queued frame: the priming frame whenever
// unready, the next frame when playing. An empty queue means decode is
// behind; the position simply does not advance, which the synchronizer
// sees as drift.
func (p *StreamPlayer) step(frames <-chan *image.NRGBA) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A seek swapped the queue; this pacer is stale and its context
	// cancel will arrive shortly.
	if frames != p.frames {
		return
	}

	if !p.ready {
		select {
		case img, ok := <-frames:
			if ok && img != nil {
				p.current = img
				p.ready = true
			}
		default:
		}
		return
	}

	if !p.playing {
		return
	}

	select {
	case img, ok := <-frames:
		if !ok {
			// End of stream. Hold the last frame; the synchronizer
			// deactivates the clip once the timeline moves on.
			return
		}
		p.current = img
		p.shown++
	default:
	}
}

// spawn starts ffmpeg decoding rawvideo frames from media time at until
// end of stream.
func (p *StreamPlayer) spawn(ctx context.Context, at float64) (io.ReadCloser, error) {
	args := []string{
		"-ss", fmtSeconds(at),
		"-i", p.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := p.exec.Command(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &cmdReader{rc: stdout, cmd: cmd}, nil
}
