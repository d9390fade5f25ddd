// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Info holds the container metadata decoders plan around.
type Info struct {
	Path     string
	Duration float64 // seconds

	HasVideo   bool
	Width      int
	Height     int
	FPS        float64
	VideoCodec string

	HasAudio   bool
	AudioCodec string
	SampleRate int
	Channels   int

	Bitrate int64
}

// Probe extracts metadata from an asset file via ffprobe.
func (e *Executor) Probe(ctx context.Context, path string) (*Info, error) {
	if path == "" {
		return nil, fmt.Errorf("media: probe: empty path")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe %q: %v", ErrDecode, path, err)
	}
	return parseProbe(output, path)
}

// probeResult matches the ffprobe JSON shape. Numeric fields arrive as
// strings in format and mixed in streams.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(data []byte, path string) (*Info, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", ErrDecode, err)
	}

	info := &Info{Path: path}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = dur
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			// First video stream wins. Cover art streams report no
			// frame rate and are skipped.
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			info.FPS = parseFrameRate(stream.RFrameRate)
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			info.Channels = stream.Channels
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
		}
		// Some containers report duration only per stream.
		if info.Duration == 0 {
			if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = dur
			}
		}
	}

	if !info.HasVideo && !info.HasAudio {
		return nil, fmt.Errorf("%w: %q has no decodable streams", ErrDecode, path)
	}
	return info, nil
}

// parseFrameRate parses an ffprobe rational like "30000/1001".
func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// Prober memoizes probe results per path. Export jobs probe every video
// clip's asset; memoizing keeps that one subprocess per asset.
type Prober struct {
	exec *Executor

	mu   sync.Mutex
	info map[string]*Info
}

// NewProber creates a memoizing prober over exec.
func NewProber(exec *Executor) *Prober {
	return &Prober{exec: exec, info: make(map[string]*Info)}
}

// Probe returns the metadata for path, probing at most once per path.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	p.mu.Lock()
	if info, ok := p.info[path]; ok {
		p.mu.Unlock()
		return info, nil
	}
	p.mu.Unlock()

	// Probe outside the lock; duplicate probes for the same path are
	// harmless and last-write-wins.
	info, err := p.exec.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.info[path] = info
	p.mu.Unlock()
	return info, nil
}
