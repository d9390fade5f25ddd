// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"context"
	"math"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// Mixer renders a timeline's audible clips into one PCM track. Audio
// and video clips contribute unless the clip or its track is muted;
// hidden tracks still sound, hiding is a visual switch. Each clip is
// decoded through ffmpeg at the mix rate, placed at its timeline
// offset, resampled linearly for its speed, scaled by its volume, and
// summed with int16 saturation.
type Mixer struct {
	exec     *media.Executor
	store    media.Store
	rate     int
	channels int
}

// NewMixer returns a mixer producing 48 kHz stereo.
func NewMixer(exec *media.Executor, store media.Store) *Mixer {
	return &Mixer{
		exec:     exec,
		store:    store,
		rate:     media.DefaultSampleRate,
		channels: media.DefaultChannels,
	}
}

// Mix renders the soundtrack. A nil PCM with nil error means the
// timeline is silent: no audible clips, or every source failed. A
// failing source is skipped with a warning, same as a missing visual
// degrades its layer.
func (m *Mixer) Mix(ctx context.Context, tl *reel.Timeline) (*media.PCM, error) {
	clips := audibleClips(tl)
	if len(clips) == 0 {
		return nil, nil
	}
	frames := int(math.Ceil(tl.Duration() * float64(m.rate)))
	if frames <= 0 {
		return nil, nil
	}

	out := make([]int16, frames*m.channels)
	mixed := 0
	for _, c := range clips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pcm, err := media.ReadPCM(ctx, m.exec, m.store, c.Source, m.rate, m.channels)
		if err != nil {
			reel.Logger().Warn("export: audio source failed, clip skipped",
				"clip", c.ID, "source", c.Source, "error", err)
			continue
		}
		mixInto(out, pcm, c, m.rate, m.channels)
		mixed++
	}
	if mixed == 0 {
		return nil, nil
	}
	return &media.PCM{Data: out, SampleRate: m.rate, Channels: m.channels}, nil
}

// audibleClips collects the clips that contribute sound, in timeline
// order.
func audibleClips(tl *reel.Timeline) []*reel.Clip {
	var clips []*reel.Clip
	for _, tr := range tl.Tracks {
		if tr.Muted {
			continue
		}
		for _, c := range tr.Clips {
			if c.Kind != reel.MediaAudio && c.Kind != reel.MediaVideo {
				continue
			}
			if c.Muted || c.Volume <= 0 || c.Duration <= 0 {
				continue
			}
			clips = append(clips, c)
		}
	}
	return clips
}

// mixInto sums one clip's samples into out. For each output frame
// inside the clip's window the source position comes from the clip's
// media-time mapping, so speed works as linear resampling and a
// trimmed clip starts at its offset.
func mixInto(out []int16, pcm *media.PCM, c *reel.Clip, rate, channels int) {
	frames := len(out) / channels
	start := int(math.Round(c.Start * float64(rate)))
	end := int(math.Round(c.End() * float64(rate)))
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}

	srcFrames := pcm.Frames()
	srcRate := float64(pcm.SampleRate)
	for f := start; f < end; f++ {
		t := float64(f) / float64(rate)
		pos := c.MediaTime(t) * srcRate
		if pos < 0 {
			continue
		}
		i0 := int(pos)
		if i0 >= srcFrames {
			break
		}
		frac := pos - float64(i0)
		for ch := 0; ch < channels; ch++ {
			s0 := sampleAt(pcm, i0, ch)
			s1 := sampleAt(pcm, i0+1, ch)
			v := ((1-frac)*float64(s0) + frac*float64(s1)) * c.Volume
			idx := f*channels + ch
			out[idx] = saturate(int32(out[idx]) + int32(math.Round(v)))
		}
	}
}

// sampleAt reads one sample, clamping the frame index into range so
// interpolation at the clip edge stays defined.
func sampleAt(p *media.PCM, frame, ch int) int16 {
	n := p.Frames()
	if n == 0 {
		return 0
	}
	if frame >= n {
		frame = n - 1
	}
	if frame < 0 {
		frame = 0
	}
	if ch >= p.Channels {
		ch = p.Channels - 1
	}
	return p.Data[frame*p.Channels+ch]
}

func saturate(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
