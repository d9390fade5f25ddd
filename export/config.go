// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"encoding/json"
	"fmt"
)

// Quality selects the rate/quality tradeoff of the encoded stream.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityBest
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityBest:
		return "best"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// MarshalJSON writes the tier name, the form the render server expects.
func (q Quality) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

func (q *Quality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*q = QualityLow
	case "medium":
		*q = QualityMedium
	case "high":
		*q = QualityHigh
	case "best":
		*q = QualityBest
	default:
		return fmt.Errorf("export: unknown quality %q", s)
	}
	return nil
}

// crf maps the tier onto the libx264 scale, 0 to 51 with lower better.
func (q Quality) crf() int {
	switch q {
	case QualityLow:
		return 33
	case QualityMedium:
		return 26
	case QualityBest:
		return 15
	default:
		return 20
	}
}

// jpegQuality maps the tier onto the 1 to 100 JPEG scale used by the
// motion JPEG writer.
func (q Quality) jpegQuality() int {
	switch q {
	case QualityLow:
		return 60
	case QualityMedium:
		return 75
	case QualityBest:
		return 95
	default:
		return 85
	}
}

// Format is the output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMOV  Format = "mov"
	FormatAVI  Format = "avi"
	FormatGIF  Format = "gif"
)

// Ext returns the file extension for the container, dot included.
func (f Format) Ext() string { return "." + string(f) }

// Resolution is an output canvas size. Label is cosmetic, carried so
// hosts can show preset names in a picker.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label,omitempty"`
}

// Presets returns the standard output sizes, landscape broadcast sizes
// first, then the social crops.
func Presets() []Resolution {
	return []Resolution{
		{Width: 854, Height: 480, Label: "480p"},
		{Width: 1280, Height: 720, Label: "720p"},
		{Width: 1920, Height: 1080, Label: "1080p"},
		{Width: 3840, Height: 2160, Label: "4K"},
		{Width: 1080, Height: 1080, Label: "Square"},
		{Width: 1080, Height: 1920, Label: "Vertical"},
	}
}

// Config is an export request. The zero value is unusable; start from
// DefaultConfig or normalize fills the gaps at Run time.
type Config struct {
	Resolution Resolution `json:"resolution"`
	FPS        float64    `json:"fps"`
	Quality    Quality    `json:"quality"`
	Format     Format     `json:"format"`

	// UseGPU lets the compositor probe for a hardware backend. Off
	// forces the software rasterizer, which some hosts prefer for
	// reproducible byte-exact renders across machines.
	UseGPU bool `json:"use_gpu"`
}

// DefaultConfig is 1080p at 30 fps, high quality MP4, hardware allowed.
func DefaultConfig() Config {
	return Config{
		Resolution: Resolution{Width: 1920, Height: 1080, Label: "1080p"},
		FPS:        30,
		Quality:    QualityHigh,
		Format:     FormatMP4,
		UseGPU:     true,
	}
}

// normalize repairs a partial config. Dimensions are rounded down to
// even values since yuv420p subsampling cannot represent odd sizes.
func (c Config) normalize() Config {
	if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
		def := DefaultConfig()
		c.Resolution = def.Resolution
	}
	c.Resolution.Width = evenDim(c.Resolution.Width)
	c.Resolution.Height = evenDim(c.Resolution.Height)
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.FPS > 240 {
		c.FPS = 240
	}
	if c.Format == "" {
		c.Format = FormatMP4
	}
	if c.Quality < QualityLow || c.Quality > QualityBest {
		c.Quality = QualityHigh
	}
	return c
}

func evenDim(d int) int {
	if d < 2 {
		return 2
	}
	return d &^ 1
}
