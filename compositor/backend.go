// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compositor renders resolved timeline layers into frames.
//
// The package separates deciding from drawing. A Compositor session
// resolves each layer's source pixels and style into a concrete
// RenderLayer, then hands the whole frame to a Backend. Backends
// register themselves through the factory registry; a hardware backend
// is probed once per session and the software backend is the permanent
// fallback when the probe or a later frame fails.
//
// Frames use straight (non-premultiplied) alpha throughout, matching
// image.NRGBA and the rgba pixel layout the export encoders consume.
package compositor

import (
	"errors"
	"image"

	"github.com/gogpu/reel"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is
	// not registered or cannot run on this machine.
	ErrBackendNotAvailable = errors.New("compositor: backend not available")

	// ErrNotInitialized is returned when a backend is used before Init.
	ErrNotInitialized = errors.New("compositor: backend not initialized")

	// ErrFallbackToCPU is returned by hardware backends when a frame
	// needs features only the software path implements. The session
	// redraws the frame in software and keeps the hardware backend for
	// later frames.
	ErrFallbackToCPU = errors.New("compositor: fallback to CPU")
)

// BlendMode selects how a layer's pixels combine with those beneath it.
type BlendMode int

const (
	// BlendNormal is standard source-over alpha compositing.
	BlendNormal BlendMode = iota
	// BlendMultiply darkens by multiplying channel values.
	BlendMultiply
	// BlendScreen lightens by inverting, multiplying, inverting back.
	BlendScreen
	// BlendOverlay multiplies dark regions and screens light ones.
	BlendOverlay
)

// String returns the blend mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "normal"
	case BlendMultiply:
		return "multiply"
	case BlendScreen:
		return "screen"
	case BlendOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// blendModeFor maps a clip's blend name onto a BlendMode. Empty and
// unknown names composite normally.
func blendModeFor(name string) BlendMode {
	switch name {
	case "multiply":
		return BlendMultiply
	case "screen":
		return BlendScreen
	case "overlay":
		return BlendOverlay
	default:
		return BlendNormal
	}
}

// Interp selects the sampling filter used when a layer is resampled.
type Interp int

const (
	// InterpBilinear samples the four nearest texels and blends them.
	InterpBilinear Interp = iota
	// InterpNearest samples the single nearest texel.
	InterpNearest
)

// RenderLayer is one fully prepared draw operation. The session has
// already resolved all style semantics into raster parameters: a source
// image, an affine transform into canvas pixels, and optional filter
// stages. Backends only execute.
type RenderLayer struct {
	// Image holds the source pixels. Never nil for a layer handed to a
	// backend.
	Image *image.NRGBA

	// SrcRect is the region of Image to draw. A zero rect means the
	// full image bounds.
	SrcRect image.Rectangle

	// Transform maps SrcRect-local pixel coordinates onto the canvas.
	Transform reel.Matrix

	// Opacity scales the layer's alpha, in [0, 1].
	Opacity float64

	// Blend selects the compositing operator against the canvas.
	Blend BlendMode

	// Interp selects the resampling filter.
	Interp Interp

	// Color is an optional 4x5 color matrix applied to sampled pixels,
	// row-major, channel values in [0, 255]. Nil when the layer needs
	// no color pass.
	Color *[20]float32

	// BlurX and BlurY are Gaussian blur radii in canvas pixels.
	BlurX float64
	BlurY float64

	// Mask is an optional geometric reveal evaluated in normalized
	// layer coordinates. Nil when the layer is unmasked.
	Mask *reel.MaskSpec
}

// srcBounds returns the effective source rectangle.
func (l *RenderLayer) srcBounds() image.Rectangle {
	if l.SrcRect.Empty() {
		return l.Image.Bounds()
	}
	return l.SrcRect
}

// needs reports which optional features the layer exercises, for
// capability routing.
func (l *RenderLayer) needs() (colorPass, blur, mask, blend bool) {
	return l.Color != nil,
		l.BlurX > 0 || l.BlurY > 0,
		l.Mask != nil,
		l.Blend != BlendNormal
}

// Caps describes what a backend can draw. The session routes frames
// whose layers need unsupported features to the software path.
type Caps struct {
	// Device identifies the implementation or adapter behind the
	// backend, for logs.
	Device string

	// MaxDim is the largest canvas edge the backend accepts, in
	// pixels. Zero means unlimited.
	MaxDim int

	// ColorMatrix reports whether the backend applies RenderLayer.Color.
	ColorMatrix bool

	// Blur reports whether the backend applies Gaussian blur.
	Blur bool

	// Masks reports whether the backend evaluates geometric masks.
	Masks bool

	// Blends reports whether the backend supports modes beyond
	// BlendNormal.
	Blends bool
}

// supports reports whether a frame made of layers fits within the caps.
func (c Caps) supports(layers []RenderLayer) bool {
	for i := range layers {
		colorPass, blur, mask, blend := layers[i].needs()
		if colorPass && !c.ColorMatrix {
			return false
		}
		if blur && !c.Blur {
			return false
		}
		if mask && !c.Masks {
			return false
		}
		if blend && !c.Blends {
			return false
		}
	}
	return true
}

// Backend rasterizes prepared layers into a frame. Implementations
// register themselves with Register; the session picks one via the
// priority order in Default.
//
// Init is called once with the canvas size before any Draw. The session
// serializes all calls; backends need not be safe for concurrent use.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Caps reports the backend's drawing capabilities. Valid after
	// Init.
	Caps() Caps

	// Init prepares the backend for frames of the given size.
	Init(width, height int) error

	// Draw composites layers bottom to top into dst, whose bounds
	// match the Init size. Hardware backends return ErrFallbackToCPU
	// when the frame needs an unsupported feature.
	Draw(dst *image.NRGBA, layers []RenderLayer) error

	// Close releases backend resources.
	Close() error
}
