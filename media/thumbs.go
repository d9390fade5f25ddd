// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Thumbnailer produces the small previews host UIs draw on clip tiles:
// filmstrip frames for video, peak buckets for audio waveforms.
type Thumbnailer struct {
	exec  *Executor
	store Store
}

// NewThumbnailer creates a thumbnailer over store.
func NewThumbnailer(exec *Executor, store Store) *Thumbnailer {
	return &Thumbnailer{exec: exec, store: store}
}

// Filmstrip returns count frames sampled evenly across ref, each scaled
// to fit within w by h. Sample points sit at interval midpoints so a
// single-frame strip shows the middle of the asset, not a black lead-in.
func (t *Thumbnailer) Filmstrip(ctx context.Context, ref string, count, w, h int) ([]*image.NRGBA, error) {
	if count <= 0 || w <= 0 || h <= 0 {
		return nil, fmt.Errorf("media: filmstrip: bad geometry %dx%dx%d", count, w, h)
	}

	reader, err := NewVideoReader(ctx, t.exec, t.store, ref, WithReadAhead(1))
	if err != nil {
		return nil, err
	}
	dur := reader.Info().Duration

	frames := make([]*image.NRGBA, 0, count)
	for i := 0; i < count; i++ {
		at := dur * (float64(i) + 0.5) / float64(count)
		frame, err := reader.FrameAt(ctx, at)
		if err != nil {
			return nil, err
		}
		frames = append(frames, ScaleToFit(frame, w, h))
	}
	return frames, nil
}

// ScaleToFit scales src to fit within w by h preserving aspect ratio.
// An image already inside the box is returned as is.
func ScaleToFit(src *image.NRGBA, w, h int) *image.NRGBA {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw <= 0 || sh <= 0 {
		return src
	}
	if sw <= w && sh <= h {
		return src
	}

	scale := float64(w) / float64(sw)
	if s := float64(h) / float64(sh); s < scale {
		scale = s
	}
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// waveformRate is plenty for peak extraction; decoding at delivery rate
// would cost 6x the samples for identical buckets.
const waveformRate = 8000

// WaveformPeaks returns buckets of peak amplitude in [0, 1] across
// ref's audio track, mono-mixed.
func (t *Thumbnailer) WaveformPeaks(ctx context.Context, ref string, buckets int) ([]float64, error) {
	if buckets <= 0 {
		return nil, fmt.Errorf("media: waveform: bad bucket count %d", buckets)
	}
	pcm, err := ReadPCM(ctx, t.exec, t.store, ref, waveformRate, 1)
	if err != nil {
		return nil, err
	}
	return Peaks(pcm, buckets), nil
}

// Peaks reduces interleaved samples to per-bucket peak amplitudes in
// [0, 1]. Buckets beyond the audio end stay at zero.
func Peaks(p *PCM, buckets int) []float64 {
	peaks := make([]float64, buckets)
	frames := p.Frames()
	if frames == 0 {
		return peaks
	}

	perBucket := frames / buckets
	if perBucket < 1 {
		perBucket = 1
	}

	for b := range peaks {
		lo := b * perBucket
		hi := lo + perBucket
		if b == buckets-1 || hi > frames {
			hi = frames
		}
		if lo >= frames {
			break
		}

		var peak int
		for f := lo; f < hi; f++ {
			for c := 0; c < p.Channels; c++ {
				v := int(p.Data[f*p.Channels+c])
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
		}
		peaks[b] = float64(peak) / 32768
	}
	return peaks
}
