// Command reelexport renders a timeline project file to a video.
//
// The project is the JSON produced by reel.EncodeTimeline; asset
// references inside it are resolved against the assets directory.
// Rendering uses the GPU when one is available and falls back to the
// software rasterizer otherwise. With -remote the frames are rendered
// by a render server instead of locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/export"
	"github.com/gogpu/reel/media"

	_ "github.com/gogpu/reel/compositor/wgpu" // register the GPU backend
)

func main() {
	var (
		timeline = flag.String("timeline", "", "timeline project file (JSON)")
		assets   = flag.String("assets", ".", "directory asset references resolve against")
		outDir   = flag.String("o", ".", "output directory")
		size     = flag.String("size", "1080p", "preset (480p, 720p, 1080p, 4K, Square, Vertical) or WIDTHxHEIGHT")
		fps      = flag.Float64("fps", 30, "output frame rate")
		quality  = flag.String("quality", "high", "low, medium, high or best")
		format   = flag.String("format", "mp4", "mp4, webm, mov, avi or gif")
		gpu      = flag.Bool("gpu", true, "render on the GPU when available")
		remote   = flag.String("remote", "", "render server URL (renders locally when empty)")
		token    = flag.String("token", "", "render server bearer token")
		verbose  = flag.Bool("v", false, "log engine internals to stderr")
	)
	flag.Parse()

	if *timeline == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		reel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	data, err := os.ReadFile(*timeline)
	if err != nil {
		log.Fatalf("read timeline: %v", err)
	}
	tl, err := reel.DecodeTimeline(data)
	if err != nil {
		log.Fatalf("parse timeline: %v", err)
	}
	if problems := tl.Validate(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(os.Stderr, "warning:", p)
		}
	}

	cfg := export.DefaultConfig()
	cfg.FPS = *fps
	cfg.Format = export.Format(strings.ToLower(*format))
	cfg.UseGPU = *gpu
	cfg.Resolution, err = parseSize(*size)
	if err != nil {
		log.Fatalf("bad -size: %v", err)
	}
	cfg.Quality, err = parseQuality(*quality)
	if err != nil {
		log.Fatalf("bad -quality: %v", err)
	}

	opts := []export.JobOption{
		export.WithOutputDir(*outDir),
		export.WithProgress(printProgress),
	}
	if *remote != "" {
		var copts []export.ClientOption
		if *token != "" {
			copts = append(copts, export.WithToken(*token))
		}
		opts = append(opts, export.WithRemote(export.NewClient(*remote, copts...)))
	}

	job, err := export.NewJob(tl, media.NewDirStore(*assets), cfg, opts...)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := job.Run(ctx)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		if errors.Is(err, export.ErrCancelled) {
			log.Fatal("export cancelled")
		}
		log.Fatalf("export: %v", err)
	}

	log.Printf("wrote %s (%d frames, %dx%d, %s via %s, %.1fs)",
		res.Path, res.Stats.Frames, res.Stats.Width, res.Stats.Height,
		res.Stats.Encoder, res.Stats.Backend, res.Stats.Elapsed.Seconds())
}

func printProgress(p export.Progress) {
	fmt.Fprintf(os.Stderr, "\r%-10s %3.0f%%", p.Phase, p.Percent)
	if p.Phase == export.PhaseRendering {
		fmt.Fprintf(os.Stderr, "  frame %d/%d", p.CurrentFrame, p.TotalFrames)
	}
	fmt.Fprint(os.Stderr, "        ")
}

func parseSize(s string) (export.Resolution, error) {
	for _, p := range export.Presets() {
		if strings.EqualFold(p.Label, s) {
			return p, nil
		}
	}
	var w, h int
	if n, err := fmt.Sscanf(strings.ToLower(s), "%dx%d", &w, &h); err != nil || n != 2 {
		return export.Resolution{}, fmt.Errorf("%q is not a preset or WIDTHxHEIGHT", s)
	}
	if w <= 0 || h <= 0 {
		return export.Resolution{}, fmt.Errorf("size %q must be positive", s)
	}
	return export.Resolution{Width: w, Height: h, Label: "Custom"}, nil
}

func parseQuality(s string) (export.Quality, error) {
	switch strings.ToLower(s) {
	case "low":
		return export.QualityLow, nil
	case "medium":
		return export.QualityMedium, nil
	case "high":
		return export.QualityHigh, nil
	case "best":
		return export.QualityBest, nil
	}
	return 0, fmt.Errorf("unknown quality %q", s)
}
