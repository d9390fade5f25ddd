// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/cache"
)

// FrameKey identifies one decoded frame of one source.
type FrameKey struct {
	Source string
	Index  int
}

// HashFrameKey hashes a frame key for shard selection.
func HashFrameKey(k FrameKey) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.Source))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k.Index >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// FrameCache caches decoded frames by source and frame index, budgeted
// by pixel bytes.
type FrameCache = cache.ShardedCache[FrameKey, *image.NRGBA]

// NewFrameCache creates a frame cache holding at most budget bytes of
// decoded pixels. budget <= 0 selects the cache package default.
func NewFrameCache(budget int64) *FrameCache {
	return cache.NewSharded(budget, HashFrameKey, frameCost)
}

func frameCost(img *image.NRGBA) int64 {
	if img == nil {
		return 0
	}
	return int64(len(img.Pix))
}

// defaultReadAhead is the decode window in frames. Export walks frames
// in order, so decoding a short run per seek amortizes process startup.
const defaultReadAhead = 8

// VideoReader decodes exact frames from one video asset. FrameAt blocks
// until the frame is decoded, which suits export; live preview uses
// StreamPlayer instead.
//
// Each cache miss spawns one short-lived ffmpeg that seeks to the frame
// and emits a read-ahead window of rawvideo RGBA frames. Safe for
// concurrent use.
type VideoReader struct {
	exec  *Executor
	ref   string
	path  string
	info  *Info
	cache *FrameCache
	ahead int

	// open starts a rawvideo stream of n frames at media time. Swapped
	// in tests to decode without ffmpeg.
	open func(ctx context.Context, at float64, n int) (io.ReadCloser, error)

	mu sync.Mutex
}

// VideoReaderOption configures a VideoReader.
type VideoReaderOption func(*VideoReader)

// WithReadAhead sets how many consecutive frames one decode burst
// produces.
func WithReadAhead(n int) VideoReaderOption {
	return func(r *VideoReader) {
		if n > 0 {
			r.ahead = n
		}
	}
}

// WithFrameCache shares a frame cache across readers. Without it each
// reader owns a default-budget cache.
func WithFrameCache(c *FrameCache) VideoReaderOption {
	return func(r *VideoReader) {
		if c != nil {
			r.cache = c
		}
	}
}

// NewVideoReader probes ref through store and prepares a frame-exact
// reader for it.
func NewVideoReader(ctx context.Context, exec *Executor, store Store, ref string, opts ...VideoReaderOption) (*VideoReader, error) {
	// A missing asset is a missing asset even when ffmpeg is absent,
	// so the store is consulted first.
	path, err := store.Path(ref)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: ffmpeg", ErrToolNotFound)
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

	r := &VideoReader{
		exec:  exec,
		ref:   ref,
		path:  path,
		info:  info,
		ahead: defaultReadAhead,
	}
	r.open = r.spawn
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewFrameCache(0)
	}
	return r, nil
}

// Info returns the probed metadata.
func (r *VideoReader) Info() *Info { return r.info }

// FrameIndex maps a media time to a frame index, clamped to the asset's
// real frame range.
func (r *VideoReader) FrameIndex(mediaTime float64) int {
	idx := int(math.Floor(mediaTime*r.info.FPS + 1e-6))
	if idx < 0 {
		return 0
	}
	if r.info.Duration > 0 {
		if last := int(math.Ceil(r.info.Duration*r.info.FPS)) - 1; idx > last && last >= 0 {
			return last
		}
	}
	return idx
}

// FrameAt returns the frame covering mediaTime. Out-of-range times
// clamp to the first or last frame.
func (r *VideoReader) FrameAt(ctx context.Context, mediaTime float64) (*image.NRGBA, error) {
	idx := r.FrameIndex(mediaTime)
	key := FrameKey{Source: r.ref, Index: idx}

	if img, ok := r.cache.Get(key); ok {
		return img, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A concurrent burst may have decoded it while we waited.
	if img, ok := r.cache.Get(key); ok {
		return img, nil
	}
	if err := r.decodeWindow(ctx, idx); err != nil {
		return nil, err
	}
	img, ok := r.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q frame %d", ErrDecode, r.ref, idx)
	}
	return img, nil
}

// decodeWindow decodes r.ahead consecutive frames starting at index
// start into the cache. Short windows at end of stream are fine as long
// as at least one frame arrives. Caller holds r.mu.
func (r *VideoReader) decodeWindow(ctx context.Context, start int) error {
	at := float64(start) / r.info.FPS
	rc, err := r.open(ctx, at, r.ahead)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrDecode, r.ref, err)
	}
	defer rc.Close()

	decoded := 0
	for i := 0; i < r.ahead; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, r.info.Width, r.info.Height))
		if _, err := io.ReadFull(rc, img.Pix); err != nil {
			if decoded > 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("%w: %q at %s: %v", ErrDecode, r.ref, fmtSeconds(at), err)
		}
		r.cache.Set(FrameKey{Source: r.ref, Index: start + i}, img)
		decoded++
	}
	if decoded == 0 {
		return fmt.Errorf("%w: %q produced no frames at %s", ErrDecode, r.ref, fmtSeconds(at))
	}
	return nil
}

// spawn starts ffmpeg decoding n rawvideo frames at media time at.
func (r *VideoReader) spawn(ctx context.Context, at float64, n int) (io.ReadCloser, error) {
	args := []string{
		"-ss", fmtSeconds(at),
		"-i", r.path,
		"-frames:v", strconv.Itoa(n),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := r.exec.Command(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &cmdReader{rc: stdout, cmd: cmd}, nil
}

// cmdReader ties a pipe to its process so Close reaps it. A broken pipe
// exit is expected when the consumer stops early, so Wait errors are
// dropped.
type cmdReader struct {
	rc  io.ReadCloser
	cmd *exec.Cmd
}

func (c *cmdReader) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cmdReader) Close() error {
	c.rc.Close()
	_ = c.cmd.Wait()
	return nil
}
