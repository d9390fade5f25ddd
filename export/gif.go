// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// GIFEncoder produces an animated GIF. Frames are quantized to the
// Plan 9 palette with Floyd-Steinberg dithering and buffered in memory
// until Finish, one byte per pixel, so very long timelines at high
// resolution get expensive. GIF has no sound.
type GIFEncoder struct {
	path   string
	w, h   int
	images []*image.Paletted
	delays []int
	audio  *media.PCM

	// delayAcc carries the fractional centisecond between frames so
	// the sum of integer delays tracks the true frame rate.
	delayAcc float64
	perFrame float64
}

func NewGIFEncoder() *GIFEncoder { return &GIFEncoder{} }

func (e *GIFEncoder) Name() string { return "gif" }

func (e *GIFEncoder) Begin(ctx context.Context, info StreamInfo) error {
	path := info.Path
	if !strings.EqualFold(filepath.Ext(path), ".gif") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".gif"
	}
	e.path = path
	e.w = info.Width
	e.h = info.Height
	e.perFrame = 100 / info.FPS
	e.delayAcc = 0
	e.audio = info.Audio
	return nil
}

func (e *GIFEncoder) WriteFrame(ctx context.Context, frame *image.NRGBA, pts int64, keyframe bool) error {
	b := frame.Bounds()
	pal := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(pal, b, frame, image.Point{})
	e.images = append(e.images, pal)

	e.delayAcc += e.perFrame
	d := int(e.delayAcc)
	e.delayAcc -= float64(d)
	e.delays = append(e.delays, d)
	return nil
}

func (e *GIFEncoder) Finish(ctx context.Context) (string, error) {
	if len(e.images) == 0 {
		return "", fmt.Errorf("%w: no frames written", ErrEncoder)
	}
	if e.audio != nil && len(e.audio.Data) > 0 {
		reel.Logger().Warn("export: GIF has no audio, track dropped", "path", e.path)
	}

	f, err := os.Create(e.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	err = gif.EncodeAll(f, &gif.GIF{
		Image: e.images,
		Delay: e.delays,
		Config: image.Config{
			ColorModel: e.images[0].Palette,
			Width:      e.w,
			Height:     e.h,
		},
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(e.path)
		return "", fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	e.images = nil
	return e.path, nil
}

func (e *GIFEncoder) Abort() {
	e.images = nil
	e.delays = nil
}
