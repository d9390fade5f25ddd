// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"fmt"
	"image"
)

func init() {
	Register(BackendSoftware, func() Backend { return NewSoftware() })
}

// Software is the pure-Go raster backend. It implements every layer
// feature and serves as the permanent fallback when no hardware
// backend is usable.
type Software struct {
	width  int
	height int
	inited bool
}

// NewSoftware returns an uninitialized software backend.
func NewSoftware() *Software {
	return &Software{}
}

// Name implements Backend.
func (s *Software) Name() string { return BackendSoftware }

// Caps implements Backend. The software path supports everything.
func (s *Software) Caps() Caps {
	return Caps{
		Device:      "cpu",
		ColorMatrix: true,
		Blur:        true,
		Masks:       true,
		Blends:      true,
	}
}

// Init implements Backend.
func (s *Software) Init(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("compositor: bad canvas size %dx%d", width, height)
	}
	s.width = width
	s.height = height
	s.inited = true
	return nil
}

// Draw implements Backend.
func (s *Software) Draw(dst *image.NRGBA, layers []RenderLayer) error {
	if !s.inited {
		return ErrNotInitialized
	}
	if dst.Bounds().Dx() != s.width || dst.Bounds().Dy() != s.height {
		return fmt.Errorf("compositor: frame is %dx%d, backend initialized for %dx%d",
			dst.Bounds().Dx(), dst.Bounds().Dy(), s.width, s.height)
	}

	for i := range layers {
		drawLayer(dst, &layers[i])
	}
	return nil
}

// Close implements Backend.
func (s *Software) Close() error {
	s.inited = false
	return nil
}
