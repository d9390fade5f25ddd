// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	_ "embed"
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/naga"
	"github.com/gogpu/reel"
	"github.com/gogpu/reel/compositor"
)

//go:embed shaders/composite.wgsl
var compositeShaderSource string

// layerParams is the uniform block for one compute pass. The layout
// mirrors the LayerParams struct in composite.wgsl: nine vec4 slots,
// 144 bytes, every field 16-byte aligned.
type layerParams struct {
	InvX [4]float32
	InvY [4]float32
	ColR [4]float32
	ColG [4]float32
	ColB [4]float32
	ColA [4]float32
	Bias [4]float32
	Size [4]uint32
	Opts [4]float32
}

// makeLayerParams builds the uniform block for a layer. The color
// matrix is transposed from the row-major [20]float32 into per-channel
// contribution columns, which is what the shader's mat-vec form wants.
func makeLayerParams(l *compositor.RenderLayer, inv reel.Matrix, frameW, frameH, srcW, srcH int) layerParams {
	p := layerParams{
		InvX: [4]float32{float32(inv.A), float32(inv.B), float32(inv.C), 0},
		InvY: [4]float32{float32(inv.D), float32(inv.E), float32(inv.F), 0},
		Size: [4]uint32{uint32(frameW), uint32(frameH), uint32(srcW), uint32(srcH)},
	}
	p.Opts[0] = float32(l.Opacity)
	if l.Color != nil {
		p.Opts[1] = 1
		m := l.Color
		p.ColR = [4]float32{m[0], m[5], m[10], m[15]}
		p.ColG = [4]float32{m[1], m[6], m[11], m[16]}
		p.ColB = [4]float32{m[2], m[7], m[12], m[17]}
		p.ColA = [4]float32{m[3], m[8], m[13], m[18]}
		p.Bias = [4]float32{m[4], m[9], m[14], m[19]}
	}
	if l.Interp == compositor.InterpNearest {
		p.Opts[2] = 1
	}
	return p
}

// bytes serializes the params for buffer upload.
func (p *layerParams) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p)) //nolint:gosec // fixed-layout struct
}

// layerParamsSize is the uniform buffer size in bytes.
const layerParamsSize = uint64(unsafe.Sizeof(layerParams{}))

// compileShader compiles WGSL source to SPIR-V words for the HAL
// shader module. SPIR-V is little-endian 32-bit words.
func compileShader(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// packRegion copies a rectangular region of img into a tight RGBA byte
// slice. Buffer words on the GPU side are little-endian u32, which
// matches NRGBA byte order, so rows copy straight across.
func packRegion(img *image.NRGBA, r image.Rectangle) []byte {
	w, h := r.Dx(), r.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		o := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[o:o+w*4])
	}
	return out
}

// unpackFrame copies a tight RGBA byte slice back into img.
func unpackFrame(raw []byte, img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		o := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(img.Pix[o:o+w*4], raw[y*w*4:(y+1)*w*4])
	}
}
