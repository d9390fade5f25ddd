// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/compositor"
	"github.com/gogpu/reel/media"
)

// Result is a finished export.
type Result struct {
	// Path is the file written. It lives in the job's output
	// directory and is the caller's to move or delete.
	Path string

	// Bytes is the whole file, loaded so hosts can hand the result
	// straight to a save dialog or an upload.
	Bytes []byte

	Stats Stats
}

// Stats describes how the export ran.
type Stats struct {
	Frames  int
	Width   int
	Height  int
	FPS     float64
	Encoder string
	Backend string
	Audio   bool
	Elapsed time.Duration
}

// Job is one export run over a timeline. Create it with NewJob, start
// it with Run; a job runs once. Cancel is safe from any goroutine.
//
// The job owns its whole pipeline: a private frame cache, a private
// compositor session, the encoder. Nothing is shared with a preview
// running in the same process, so exporting while previewing is safe.
type Job struct {
	tl    *reel.Timeline
	store media.Store
	cfg   Config

	exec       *media.Executor
	execSet    bool
	client     *Client
	enc        Encoder
	outDir     string
	budget     int64
	onProgress ProgressFunc

	cancelled atomic.Bool
	mu        sync.Mutex
	cancelRun context.CancelFunc
	ran       bool
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithProgress sets the progress callback. Reports arrive on the Run
// goroutine.
func WithProgress(fn ProgressFunc) JobOption {
	return func(j *Job) { j.onProgress = fn }
}

// WithExecutor pins the ffmpeg executor instead of probing the
// environment at Run. Explicitly passing nil forces the ffmpeg-free
// paths.
func WithExecutor(e *media.Executor) JobOption {
	return func(j *Job) { j.exec = e; j.execSet = true }
}

// WithRemote delegates the render to a server when reachable, falling
// back to a local render when not.
func WithRemote(c *Client) JobOption {
	return func(j *Job) { j.client = c }
}

// WithEncoder bypasses the encoder chain entirely. The job begins and
// finishes enc itself.
func WithEncoder(enc Encoder) JobOption {
	return func(j *Job) { j.enc = enc }
}

// WithOutputDir sets where the output file lands. Defaults to the
// system temp directory.
func WithOutputDir(dir string) JobOption {
	return func(j *Job) { j.outDir = dir }
}

// WithCacheBudget bounds the job's decoded-frame cache in bytes.
func WithCacheBudget(n int64) JobOption {
	return func(j *Job) { j.budget = n }
}

// NewJob prepares an export of tl reading media from store.
func NewJob(tl *reel.Timeline, store media.Store, cfg Config, opts ...JobOption) (*Job, error) {
	if tl == nil {
		return nil, fmt.Errorf("export: nil timeline")
	}
	if store == nil {
		return nil, fmt.Errorf("export: nil media store")
	}
	j := &Job{tl: tl, store: store, cfg: cfg}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Cancel stops the job at the next frame boundary. Blocking work in
// flight, a decode or an upload, is interrupted through the run
// context. Safe to call before Run and more than once.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
	j.mu.Lock()
	cancel := j.cancelRun
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the export. It returns ErrCancelled after Cancel or
// context cancellation; any other error is fatal for the run. Caches
// and backend resources are released on every path out.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	j.mu.Lock()
	if j.ran {
		j.mu.Unlock()
		return nil, fmt.Errorf("export: job already ran")
	}
	j.ran = true
	ctx, cancel := context.WithCancel(ctx)
	j.cancelRun = cancel
	j.mu.Unlock()
	defer cancel()
	if j.cancelled.Load() {
		cancel()
	}

	start := time.Now()
	cfg := j.cfg.normalize()
	rep := newReporter(j.onProgress)

	res, err := j.run(ctx, cfg, rep)
	if err != nil {
		if isCancel(err) {
			reel.Logger().Info("export: cancelled")
			rep.report(Progress{Phase: PhaseCancelled, Percent: rep.percent()})
			return nil, ErrCancelled
		}
		reel.Logger().Error("export: failed", "error", err)
		rep.report(Progress{Phase: PhaseError, Percent: rep.percent(), Err: err.Error()})
		return nil, err
	}

	res.Stats.Elapsed = time.Since(start)
	rep.report(Progress{
		Phase:        PhaseComplete,
		Percent:      100,
		CurrentFrame: res.Stats.Frames,
		TotalFrames:  res.Stats.Frames,
	})
	reel.Logger().Info("export: complete",
		"path", res.Path, "frames", res.Stats.Frames,
		"encoder", res.Stats.Encoder, "elapsed", res.Stats.Elapsed)
	return res, nil
}

func (j *Job) run(ctx context.Context, cfg Config, rep *reporter) (*Result, error) {
	// The timeline is snapshotted up front: edits made while the job
	// runs cannot leak into the output.
	tl, err := snapshotTimeline(j.tl)
	if err != nil {
		return nil, err
	}

	dur := tl.Duration()
	fps := cfg.FPS
	total := frameCount(dur, fps)
	if total == 0 {
		return nil, fmt.Errorf("export: timeline is empty")
	}
	rep.report(Progress{Phase: PhasePreparing, Percent: 0, TotalFrames: total})

	exec := j.exec
	if !j.execSet {
		e, err := media.NewExecutor()
		if err != nil {
			reel.Logger().Info("export: ffmpeg not found, media decoding disabled", "error", err)
		} else {
			exec = e
		}
	}

	outPath := filepath.Join(j.outputDir(), outputName(cfg.Format))

	if j.client != nil {
		res, err := j.runRemote(ctx, tl, cfg, rep, outPath, total)
		if err == nil {
			return res, nil
		}
		if isCancel(err) {
			return nil, err
		}
		reel.Logger().Warn("export: delegated render failed, rendering locally", "error", err)
	}

	return j.runLocal(ctx, tl, cfg, rep, exec, outPath, total)
}

// runRemote hands the whole job to the render server.
func (j *Job) runRemote(ctx context.Context, tl *reel.Timeline, cfg Config, rep *reporter, outPath string, total int) (*Result, error) {
	path, err := NewRemoteEncoder(j.client).Render(ctx, tl, cfg, j.store, outPath, func(pct float64) {
		rep.report(Progress{
			Phase:        PhaseRendering,
			Percent:      5 + pct*0.9,
			CurrentFrame: int(pct / 100 * float64(total)),
			TotalFrames:  total,
		})
	})
	if err != nil {
		return nil, err
	}
	rep.report(Progress{Phase: PhaseFinalizing, Percent: 97, CurrentFrame: total, TotalFrames: total})
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Result{
		Path:  path,
		Bytes: data,
		Stats: Stats{
			Frames: total, Width: cfg.Resolution.Width, Height: cfg.Resolution.Height,
			FPS: cfg.FPS, Encoder: "remote", Backend: "remote",
		},
	}, nil
}

// runLocal renders every frame in process and feeds the encoder chain.
func (j *Job) runLocal(ctx context.Context, tl *reel.Timeline, cfg Config, rep *reporter, exec *media.Executor, outPath string, total int) (*Result, error) {
	w, h := cfg.Resolution.Width, cfg.Resolution.Height
	fps := cfg.FPS

	cache := media.NewFrameCache(j.budget)
	sources := compositor.NewSourceSet()
	video := media.RegisterExportSources(sources, exec, j.store, cache)
	defer video.Release()

	copts := []compositor.Option{compositor.WithSources(sources)}
	if !cfg.UseGPU {
		copts = append(copts, compositor.WithBackendName(compositor.BackendSoftware))
	}
	comp, err := compositor.New(w, h, copts...)
	if err != nil {
		return nil, err
	}
	defer comp.Close()

	j.preload(ctx, tl, comp, rep, total)
	if err := j.checkCancel(ctx); err != nil {
		return nil, err
	}

	// GIF has no sound and mixing needs ffmpeg; everything else gets
	// the soundtrack rendered before the encoder starts, since the
	// encoder takes it at Begin.
	var audio *media.PCM
	if cfg.Format != FormatGIF && exec != nil {
		audio, err = NewMixer(exec, j.store).Mix(ctx, tl)
		if err != nil {
			return nil, err
		}
	}
	rep.report(Progress{Phase: PhasePreparing, Percent: 5, TotalFrames: total})

	info := StreamInfo{Width: w, Height: h, FPS: fps, Path: outPath, Config: cfg, Audio: audio}
	enc, err := j.openEncoder(ctx, cfg, exec, info)
	if err != nil {
		return nil, err
	}

	dst := comp.NewFrame()
	releaseEvery := cacheReleaseInterval(h)
	for i := 0; i < total; i++ {
		if err := j.checkCancel(ctx); err != nil {
			enc.Abort()
			return nil, err
		}
		t := float64(i) / fps
		if err := comp.RenderFrame(ctx, tl, t, dst); err != nil {
			enc.Abort()
			return nil, fmt.Errorf("export: frame %d: %w", i, err)
		}
		if err := enc.WriteFrame(ctx, dst, ptsMicros(i, fps), i%keyframeInterval == 0); err != nil {
			enc.Abort()
			return nil, err
		}
		if (i+1)%releaseEvery == 0 {
			cache.Clear()
		}
		rep.report(Progress{
			Phase:        PhaseRendering,
			Percent:      5 + 80*float64(i+1)/float64(total),
			CurrentFrame: i + 1,
			TotalFrames:  total,
		})
	}

	rep.report(Progress{Phase: PhaseEncoding, Percent: 85, CurrentFrame: total, TotalFrames: total})
	if err := j.checkCancel(ctx); err != nil {
		enc.Abort()
		return nil, err
	}
	path, err := enc.Finish(ctx)
	if err != nil {
		return nil, err
	}

	rep.report(Progress{Phase: PhaseFinalizing, Percent: 97, CurrentFrame: total, TotalFrames: total})
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read output: %w", err)
	}

	return &Result{
		Path:  path,
		Bytes: data,
		Stats: Stats{
			Frames: total, Width: w, Height: h, FPS: fps,
			Encoder: enc.Name(), Backend: comp.BackendName(), Audio: audio != nil,
		},
	}, nil
}

// preload touches every visual clip's first frame so probes run,
// caches warm and missing assets surface during Preparing instead of
// mid-render. Failures only log; the failing layer degrades at render
// time.
func (j *Job) preload(ctx context.Context, tl *reel.Timeline, comp *compositor.Compositor, rep *reporter, total int) {
	w, h := comp.Size()
	sources := comp.Sources()
	seen := make(map[string]bool)
	var clips []*reel.Clip
	for _, tr := range tl.Tracks {
		for _, c := range tr.Clips {
			switch c.Kind {
			case reel.MediaAudio:
				continue
			case reel.MediaVideo, reel.MediaImage:
				if seen[c.Source] {
					continue
				}
				seen[c.Source] = true
			}
			clips = append(clips, c)
		}
	}

	for n, c := range clips {
		if j.cancelled.Load() || ctx.Err() != nil {
			return
		}
		_, err := sources.Frame(ctx, compositor.Request{
			Clip:      c,
			MediaTime: c.MediaTime(c.Start),
			CanvasW:   w,
			CanvasH:   h,
		})
		if err != nil {
			reel.Logger().Warn("export: source preload failed, layer will be skipped",
				"clip", c.ID, "source", c.Source, "error", err)
		}
		rep.report(Progress{
			Phase:       PhasePreparing,
			Percent:     4 * float64(n+1) / float64(len(clips)),
			TotalFrames: total,
		})
	}
}

// openEncoder begins the first encoder that can run here, in fidelity
// order. A forced encoder skips the chain.
func (j *Job) openEncoder(ctx context.Context, cfg Config, exec *media.Executor, info StreamInfo) (Encoder, error) {
	if j.enc != nil {
		if err := j.enc.Begin(ctx, info); err != nil {
			return nil, err
		}
		return j.enc, nil
	}

	var chain []Encoder
	if cfg.Format == FormatGIF {
		chain = []Encoder{NewGIFEncoder()}
	} else {
		chain = []Encoder{NewFFmpegEncoder(exec), NewMJPEGEncoder()}
	}

	var last error
	for _, e := range chain {
		err := e.Begin(ctx, info)
		if err == nil {
			reel.Logger().Info("export: encoder selected", "encoder", e.Name())
			return e, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		reel.Logger().Warn("export: encoder unavailable", "encoder", e.Name(), "error", err)
		last = err
	}
	return nil, fmt.Errorf("export: no encoder available: %w", last)
}

func (j *Job) checkCancel(ctx context.Context) error {
	if j.cancelled.Load() || ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func (j *Job) outputDir() string {
	if j.outDir != "" {
		return j.outDir
	}
	return os.TempDir()
}

// cacheReleaseInterval is how many frames run between forced cache
// releases. High resolutions hold more bytes per entry, so they flush
// more often.
func cacheReleaseInterval(height int) int {
	if height >= 1080 {
		return 120
	}
	return 300
}

// snapshotTimeline deep-copies through the document form and
// normalizes the copy.
func snapshotTimeline(tl *reel.Timeline) (*reel.Timeline, error) {
	data, err := reel.EncodeTimeline(tl)
	if err != nil {
		return nil, err
	}
	return reel.DecodeTimeline(data)
}

func isCancel(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func outputName(f Format) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("reel-%x%s", b, f.Ext())
}
