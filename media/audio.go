// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Default decode format for mixing. 48 kHz stereo matches what most
// delivery targets expect.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

// PCM holds decoded audio as interleaved signed 16-bit samples.
type PCM struct {
	Data       []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (one sample per channel).
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / p.Channels
}

// Duration returns the audio length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// Window returns the interleaved samples covering [from, to) seconds,
// clamped to the decoded range. The slice aliases the PCM data.
func (p *PCM) Window(from, to float64) []int16 {
	if p.SampleRate <= 0 || p.Channels <= 0 || to <= from {
		return nil
	}
	frames := p.Frames()
	lo := int(from * float64(p.SampleRate))
	hi := int(to * float64(p.SampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > frames {
		hi = frames
	}
	if lo >= hi {
		return nil
	}
	return p.Data[lo*p.Channels : hi*p.Channels]
}

// PCMReader streams an asset's audio as s16le samples through ffmpeg.
type PCMReader struct {
	rc         io.ReadCloser
	sampleRate int
	channels   int
	scratch    []byte
}

// NewPCMReader starts decoding ref's audio to interleaved s16le at the
// given rate and channel count. Rate or channels <= 0 select the
// package defaults.
func NewPCMReader(ctx context.Context, exec *Executor, store Store, ref string, sampleRate, channels int) (*PCMReader, error) {
	if exec == nil {
		return nil, fmt.Errorf("%w: ffmpeg", ErrToolNotFound)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	path, err := store.Path(ref)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-",
	}
	cmd := exec.Command(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDecode, ref, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDecode, ref, err)
	}

	return &PCMReader{
		rc:         &cmdReader{rc: stdout, cmd: cmd},
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// SampleRate returns the decode sample rate in Hz.
func (r *PCMReader) SampleRate() int { return r.sampleRate }

// Channels returns the decode channel count.
func (r *PCMReader) Channels() int { return r.channels }

// Read fills dst with decoded samples. A short count with a nil error
// means the stream is draining; the next call returns io.EOF.
func (r *PCMReader) Read(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := len(dst) * 2
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	buf := r.scratch[:need]

	n, err := io.ReadFull(r.rc, buf)
	samples := decodeS16LE(buf[:n&^1], dst)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if samples > 0 && err == io.EOF {
			return samples, nil
		}
		if err != io.EOF {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return samples, err
	}
	return samples, nil
}

// ReadAll drains the stream into one PCM buffer and closes the reader.
func (r *PCMReader) ReadAll() (*PCM, error) {
	defer r.Close()

	var data []int16
	chunk := make([]int16, 8192)
	for {
		n, err := r.Read(chunk)
		data = append(data, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	return &PCM{Data: data, SampleRate: r.sampleRate, Channels: r.channels}, nil
}

// Close stops the decode.
func (r *PCMReader) Close() error {
	return r.rc.Close()
}

// decodeS16LE decodes little-endian 16-bit samples from raw into dst
// and returns how many samples were written.
func decodeS16LE(raw []byte, dst []int16) int {
	n := len(raw) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return n
}

// ReadPCM decodes ref's full audio track in one call.
func ReadPCM(ctx context.Context, exec *Executor, store Store, ref string, sampleRate, channels int) (*PCM, error) {
	r, err := NewPCMReader(ctx, exec, store, ref, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}
