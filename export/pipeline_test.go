// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// stubEncoder records everything the pipeline feeds it and writes a
// marker file at Finish so the job has bytes to load.
type stubEncoder struct {
	began    bool
	info     StreamInfo
	pts      []int64
	keys     []bool
	sums     [][32]byte
	finished bool
	aborted  bool

	beginErr error
	failAt   int // fail WriteFrame at this index, -1 for never
}

func newStubEncoder() *stubEncoder { return &stubEncoder{failAt: -1} }

func (s *stubEncoder) Name() string { return "stub" }

func (s *stubEncoder) Begin(ctx context.Context, info StreamInfo) error {
	if s.beginErr != nil {
		return s.beginErr
	}
	s.began = true
	s.info = info
	return nil
}

func (s *stubEncoder) WriteFrame(ctx context.Context, frame *image.NRGBA, pts int64, keyframe bool) error {
	if s.failAt >= 0 && len(s.pts) == s.failAt {
		return fmt.Errorf("%w: disk full", ErrEncoder)
	}
	s.pts = append(s.pts, pts)
	s.keys = append(s.keys, keyframe)
	s.sums = append(s.sums, sha256.Sum256(frame.Pix))
	return nil
}

func (s *stubEncoder) Finish(ctx context.Context) (string, error) {
	s.finished = true
	if err := os.WriteFile(s.info.Path, []byte("stub-output"), 0o644); err != nil {
		return "", err
	}
	return s.info.Path, nil
}

func (s *stubEncoder) Abort() { s.aborted = true }

// colorTimeline is one video track, red for the first half and blue
// for the second.
func colorTimeline(dur float64) *reel.Timeline {
	red := reel.NewClip(reel.MediaColor, "", 0, dur/2)
	red.ID = "red"
	red.Fill = reel.RGB(1, 0, 0)
	blue := reel.NewClip(reel.MediaColor, "", dur/2, dur/2)
	blue.ID = "blue"
	blue.Fill = reel.RGB(0, 0, 1)
	return &reel.Timeline{Tracks: []*reel.Track{
		{ID: "v1", Kind: reel.TrackVideo, Clips: []*reel.Clip{red, blue}},
	}}
}

func testConfig(fps float64) Config {
	return Config{
		Resolution: Resolution{Width: 64, Height: 36},
		FPS:        fps,
		Quality:    QualityMedium,
		Format:     FormatMP4,
	}
}

func TestJobRendersExactFrameCount(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	enc := newStubEncoder()
	job, err := NewJob(colorTimeline(2.0), store, testConfig(30),
		WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Two seconds at 30 fps is exactly 60 frames, no more, no fewer.
	if len(enc.pts) != 60 {
		t.Fatalf("encoded %d frames, want 60", len(enc.pts))
	}
	for i, pts := range enc.pts {
		if want := ptsMicros(i, 30); pts != want {
			t.Fatalf("frame %d pts = %d, want %d", i, pts, want)
		}
		if i > 0 {
			gap := pts - enc.pts[i-1]
			if gap != 33333 && gap != 33334 {
				t.Fatalf("frame %d pts gap = %d, want 33333 or 33334", i, gap)
			}
		}
	}
	for i, key := range enc.keys {
		if want := i%15 == 0; key != want {
			t.Errorf("frame %d keyframe = %v, want %v", i, key, want)
		}
	}

	if !enc.finished || enc.aborted {
		t.Errorf("finished=%v aborted=%v, want finished only", enc.finished, enc.aborted)
	}
	if res.Stats.Frames != 60 || res.Stats.Encoder != "stub" {
		t.Errorf("stats = %+v", res.Stats)
	}
	if string(res.Bytes) != "stub-output" {
		t.Errorf("bytes = %q, want stub-output", res.Bytes)
	}
	if enc.info.Width != 64 || enc.info.Height != 36 || enc.info.FPS != 30 {
		t.Errorf("stream info = %+v", enc.info)
	}
	if enc.info.Audio != nil {
		t.Error("color timeline produced audio")
	}

	// The two halves of the timeline must actually differ on screen.
	if enc.sums[0] == enc.sums[59] {
		t.Error("first and last frames identical, expected red then blue")
	}
	if enc.sums[0] != enc.sums[29] || enc.sums[30] != enc.sums[59] {
		t.Error("frames within one clip should be identical")
	}
}

func TestJobCancelMidRender(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	enc := newStubEncoder()

	var job *Job
	var phases []Phase
	job, err := NewJob(colorTimeline(2.0), store, testConfig(30),
		WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()),
		WithProgress(func(p Progress) {
			phases = append(phases, p.Phase)
			if p.Phase == PhaseRendering && p.CurrentFrame >= 10 {
				job.Cancel()
			}
		}))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	_, err = job.Run(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run = %v, want ErrCancelled", err)
	}

	// Cancellation lands at a frame boundary: a few frames may slip
	// in after the triggering report, but nothing close to the full
	// render, and the encoder must be aborted, not finished.
	if len(enc.pts) >= 30 {
		t.Errorf("encoded %d frames after cancel at 10", len(enc.pts))
	}
	if !enc.aborted || enc.finished {
		t.Errorf("aborted=%v finished=%v, want aborted only", enc.aborted, enc.finished)
	}
	if last := phases[len(phases)-1]; last != PhaseCancelled {
		t.Errorf("last phase = %v, want cancelled", last)
	}
	for _, p := range phases {
		if p == PhaseComplete || p == PhaseError {
			t.Errorf("unexpected phase %v in cancelled run", p)
		}
	}
}

func TestJobCancelBeforeRun(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	enc := newStubEncoder()
	job, err := NewJob(colorTimeline(1.0), store, testConfig(30),
		WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	job.Cancel()
	if _, err := job.Run(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run = %v, want ErrCancelled", err)
	}
	if enc.began {
		t.Error("encoder began despite pre-run cancel")
	}
}

func TestJobDeterministicRender(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()

	render := func() *stubEncoder {
		enc := newStubEncoder()
		job, err := NewJob(colorTimeline(2.0), store, testConfig(30),
			WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()))
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}
		if _, err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return enc
	}

	a, b := render(), render()
	if len(a.sums) != len(b.sums) {
		t.Fatalf("frame counts differ: %d vs %d", len(a.sums), len(b.sums))
	}
	for i := range a.sums {
		if a.sums[i] != b.sums[i] {
			t.Fatalf("frame %d differs between identical renders", i)
		}
		if a.pts[i] != b.pts[i] {
			t.Fatalf("frame %d pts differs between identical renders", i)
		}
	}
}

func TestJobProgressPhases(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()

	var reports []Progress
	job, err := NewJob(colorTimeline(1.0), store, testConfig(30),
		WithEncoder(newStubEncoder()), WithExecutor(nil), WithOutputDir(t.TempDir()),
		WithProgress(func(p Progress) { reports = append(reports, p) }))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(reports) < 4 {
		t.Fatalf("got %d reports, want at least preparing through complete", len(reports))
	}
	if reports[0].Phase != PhasePreparing {
		t.Errorf("first phase = %v, want preparing", reports[0].Phase)
	}
	last := reports[len(reports)-1]
	if last.Phase != PhaseComplete || last.Percent != 100 {
		t.Errorf("last report = %+v, want complete at 100", last)
	}

	seen := make(map[Phase]bool)
	order := []Phase{PhasePreparing, PhaseRendering, PhaseEncoding, PhaseFinalizing, PhaseComplete}
	idx := 0
	for i, p := range reports {
		seen[p.Phase] = true
		if i > 0 && p.Percent < reports[i-1].Percent {
			t.Errorf("report %d percent %v went backwards", i, p.Percent)
		}
		for idx < len(order) && order[idx] != p.Phase {
			idx++
		}
		if idx == len(order) {
			t.Fatalf("phase %v out of order at report %d", p.Phase, i)
		}
		if p.TotalFrames != 30 {
			t.Errorf("report %d total frames = %d, want 30", i, p.TotalFrames)
		}
	}
	for _, ph := range order {
		if !seen[ph] {
			t.Errorf("phase %v never reported", ph)
		}
	}
}

func TestJobEncoderFailureIsFatal(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	enc := newStubEncoder()
	enc.failAt = 5

	var last Progress
	job, err := NewJob(colorTimeline(1.0), store, testConfig(30),
		WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()),
		WithProgress(func(p Progress) { last = p }))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	_, err = job.Run(context.Background())
	if !errors.Is(err, ErrEncoder) {
		t.Fatalf("Run = %v, want ErrEncoder", err)
	}
	if !enc.aborted {
		t.Error("encoder not aborted after write failure")
	}
	if last.Phase != PhaseError || !strings.Contains(last.Err, "disk full") {
		t.Errorf("last report = %+v, want error phase carrying the cause", last)
	}
}

func TestJobEmptyTimeline(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	job, err := NewJob(&reel.Timeline{}, store, testConfig(30),
		WithEncoder(newStubEncoder()), WithExecutor(nil))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := job.Run(context.Background()); err == nil {
		t.Error("Run of empty timeline succeeded")
	}
}

func TestJobRunsOnce(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	job, err := NewJob(colorTimeline(0.5), store, testConfig(10),
		WithEncoder(newStubEncoder()), WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := job.Run(context.Background()); err == nil {
		t.Error("second Run succeeded")
	}
}

func TestNewJobValidation(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	if _, err := NewJob(nil, store, testConfig(30)); err == nil {
		t.Error("NewJob with nil timeline succeeded")
	}
	if _, err := NewJob(colorTimeline(1), nil, testConfig(30)); err == nil {
		t.Error("NewJob with nil store succeeded")
	}
}

func TestJobMissingAssetDegrades(t *testing.T) {
	// A video layer whose source does not exist is skipped; the color
	// clip underneath still renders and the export completes.
	tl := colorTimeline(1.0)
	missing := reel.NewClip(reel.MediaVideo, "nope.mp4", 0, 1)
	missing.ID = "missing"
	tl.Tracks = append(tl.Tracks, &reel.Track{
		ID: "v2", Kind: reel.TrackVideo, Clips: []*reel.Clip{missing},
	})

	store := media.NewMemStore()
	defer store.Close()
	enc := newStubEncoder()
	job, err := NewJob(tl, store, testConfig(30),
		WithEncoder(enc), WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Frames != 30 || len(enc.pts) != 30 {
		t.Errorf("frames = %d/%d, want 30", res.Stats.Frames, len(enc.pts))
	}
}

func TestJobFallsBackToMJPEG(t *testing.T) {
	// No ffmpeg and no forced encoder: the chain lands on motion
	// JPEG and still produces a playable file.
	store := media.NewMemStore()
	defer store.Close()
	job, err := NewJob(colorTimeline(0.5), store, testConfig(10),
		WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Encoder != "mjpeg" {
		t.Errorf("encoder = %q, want mjpeg", res.Stats.Encoder)
	}
	if filepath.Ext(res.Path) != ".avi" {
		t.Errorf("path = %q, want .avi", res.Path)
	}
	if len(res.Bytes) == 0 {
		t.Error("output is empty")
	}
}

func TestJobGIFEndToEnd(t *testing.T) {
	store := media.NewMemStore()
	defer store.Close()
	cfg := testConfig(10)
	cfg.Format = FormatGIF
	cfg.Resolution = Resolution{Width: 32, Height: 32}

	job, err := NewJob(colorTimeline(0.5), store, cfg,
		WithExecutor(nil), WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Encoder != "gif" {
		t.Errorf("encoder = %q, want gif", res.Stats.Encoder)
	}

	g, err := gif.DecodeAll(bytes.NewReader(res.Bytes))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(g.Image) != 5 {
		t.Errorf("gif has %d frames, want 5", len(g.Image))
	}
}

func TestCacheReleaseInterval(t *testing.T) {
	if got := cacheReleaseInterval(720); got != 300 {
		t.Errorf("720p interval = %d, want 300", got)
	}
	if got := cacheReleaseInterval(1080); got != 120 {
		t.Errorf("1080p interval = %d, want 120", got)
	}
	if got := cacheReleaseInterval(2160); got != 120 {
		t.Errorf("4K interval = %d, want 120", got)
	}
}

func TestSnapshotTimeline(t *testing.T) {
	tl := colorTimeline(2.0)
	tl.Tracks[0].Clips[1].Speed = 0 // Normalize must repair this

	snap, err := snapshotTimeline(tl)
	if err != nil {
		t.Fatalf("snapshotTimeline: %v", err)
	}
	if snap.Tracks[0].Clips[1].Speed != 1 {
		t.Errorf("snapshot speed = %v, want normalized 1", snap.Tracks[0].Clips[1].Speed)
	}

	// Mutating the original must not reach the snapshot.
	tl.Tracks[0].Clips[0].Fill = reel.RGB(0, 1, 0)
	if snap.Tracks[0].Clips[0].Fill != (reel.RGBA{R: 1, A: 1}) {
		t.Errorf("snapshot fill = %+v, mutated through", snap.Tracks[0].Clips[0].Fill)
	}
}
