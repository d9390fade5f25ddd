// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/reel"
)

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBlendNormal(t *testing.T) {
	tests := []struct {
		name           string
		sr, sg, sb, sa uint8
		dr, dg, db, da uint8
		want           color.NRGBA
	}{
		{
			name: "opaque source replaces",
			sr:   10, sg: 20, sb: 30, sa: 255,
			dr: 200, dg: 200, db: 200, da: 255,
			want: color.NRGBA{R: 10, G: 20, B: 30, A: 255},
		},
		{
			name: "source over transparent keeps straight color",
			sr:   10, sg: 20, sb: 30, sa: 128,
			dr: 0, dg: 0, db: 0, da: 0,
			want: color.NRGBA{R: 10, G: 20, B: 30, A: 128},
		},
		{
			name: "half red over opaque black",
			sr:   255, sg: 0, sb: 0, sa: 128,
			dr: 0, dg: 0, db: 0, da: 255,
			want: color.NRGBA{R: 128, G: 0, B: 0, A: 255},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, a := blendNormal(tt.sr, tt.sg, tt.sb, tt.sa, tt.dr, tt.dg, tt.db, tt.da)
			got := color.NRGBA{R: r, G: g, B: b, A: a}
			if got != tt.want {
				t.Errorf("blendNormal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlendPixelZeroSourceAlpha(t *testing.T) {
	r, g, b, a := blendPixel(255, 255, 255, 0, 9, 8, 7, 6, BlendNormal)
	if r != 9 || g != 8 || b != 7 || a != 6 {
		t.Errorf("transparent source changed destination: (%d, %d, %d, %d)", r, g, b, a)
	}
}

func TestBlendModes(t *testing.T) {
	tests := []struct {
		name string
		mode BlendMode
		src  uint8
		dst  uint8
		want uint8
	}{
		{"multiply halves", BlendMultiply, 128, 128, 64},
		{"multiply by white keeps", BlendMultiply, 200, 255, 200},
		{"multiply by black clears", BlendMultiply, 200, 0, 0},
		{"screen of black keeps", BlendScreen, 200, 0, 200},
		{"screen of white saturates", BlendScreen, 10, 255, 255},
		{"overlay dark doubles", BlendOverlay, 100, 64, 50},
		{"overlay light screens", BlendOverlay, 100, 200, 189},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Opaque source over opaque destination isolates the
			// color operator from the alpha composite.
			r, _, _, a := blendPixel(tt.src, 0, 0, 255, tt.dst, 0, 0, 255, tt.mode)
			if a != 255 {
				t.Fatalf("alpha = %d, want 255", a)
			}
			if r != tt.want {
				t.Errorf("channel = %d, want %d", r, tt.want)
			}
		})
	}
}

func TestOverlayChannelBranches(t *testing.T) {
	// Below mid-gray the operator multiplies, above it screens.
	if got := overlayChannel(255, 127); got != 254 {
		t.Errorf("dark branch = %d, want 254", got)
	}
	if got := overlayChannel(0, 128); got != 1 {
		t.Errorf("light branch = %d, want 1", got)
	}
}

func TestClearFrame(t *testing.T) {
	// Non-zero origin exercises the stride math.
	img := image.NewNRGBA(image.Rect(2, 3, 10, 9))
	clearFrame(img, reel.RGBA{R: 1, G: 0.5, B: 0, A: 1})

	want := color.NRGBA{R: 255, G: 128, B: 0, A: 255}
	for y := 3; y < 9; y++ {
		for x := 2; x < 10; x++ {
			if got := img.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDrawTransformedPlacement(t *testing.T) {
	src := solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	l := RenderLayer{
		Image:     src,
		Transform: reel.Translate(2, 2),
		Opacity:   1,
	}
	drawLayer(dst, &l)

	if got := dst.NRGBAAt(4, 4); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("inside layer = %v, want opaque red", got)
	}
	if got := dst.NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("outside layer = %v, want untouched", got)
	}
	if got := dst.NRGBAAt(7, 7); got.A != 0 {
		t.Errorf("past layer = %v, want untouched", got)
	}
}

func TestDrawTransformedOpacity(t *testing.T) {
	src := solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	l := RenderLayer{
		Image:     src,
		Transform: reel.Identity(),
		Opacity:   0.5,
	}
	drawLayer(dst, &l)

	got := dst.NRGBAAt(2, 2)
	if got.R != 255 {
		t.Errorf("red = %d, want straight 255", got.R)
	}
	if got.A < 126 || got.A > 130 {
		t.Errorf("alpha = %d, want about 128", got.A)
	}
}

func TestDrawTransformedSkipsDegenerate(t *testing.T) {
	src := solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	l := RenderLayer{
		Image:     src,
		Transform: reel.Scale(0, 1),
		Opacity:   1,
	}
	drawLayer(dst, &l)

	for i := 3; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 0 {
			t.Fatal("zero-scale layer drew pixels")
		}
	}
}

func TestDrawTransformedScale(t *testing.T) {
	src := solidNRGBA(2, 2, color.NRGBA{G: 255, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	// Scale the 2x2 source to cover the full canvas.
	l := RenderLayer{
		Image:     src,
		Transform: reel.Scale(4, 4),
		Opacity:   1,
	}
	drawLayer(dst, &l)

	for _, p := range [][2]int{{0, 0}, {7, 0}, {3, 4}, {7, 7}} {
		if got := dst.NRGBAAt(p[0], p[1]); got.G != 255 || got.A != 255 {
			t.Errorf("pixel (%d, %d) = %v, want opaque green", p[0], p[1], got)
		}
	}
}

func TestDrawTransformedSrcRect(t *testing.T) {
	// Left half red, right half blue; draw only the right half.
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				src.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				src.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	l := RenderLayer{
		Image:     src,
		SrcRect:   image.Rect(4, 0, 8, 4),
		Transform: reel.Identity(),
		Opacity:   1,
		Interp:    InterpNearest,
	}
	drawLayer(dst, &l)

	if got := dst.NRGBAAt(2, 2); got.B != 255 || got.R != 0 {
		t.Errorf("cropped draw = %v, want blue half only", got)
	}
}

func TestDrawTransformedMask(t *testing.T) {
	src := solidNRGBA(8, 8, color.NRGBA{R: 255, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	// Right wipe at half coverage: left half visible, right half not.
	l := RenderLayer{
		Image:     src,
		Transform: reel.Identity(),
		Opacity:   1,
		Mask:      &reel.MaskSpec{Shape: reel.MaskLinear, Dir: reel.DirRight, Coverage: 0.5},
	}
	drawLayer(dst, &l)

	if got := dst.NRGBAAt(1, 4); got.A != 255 {
		t.Errorf("revealed side = %v, want opaque", got)
	}
	if got := dst.NRGBAAt(6, 4); got.A != 0 {
		t.Errorf("concealed side = %v, want transparent", got)
	}
}

func TestSampleBilinearUniform(t *testing.T) {
	src := solidNRGBA(4, 4, color.NRGBA{R: 40, G: 80, B: 120, A: 255})
	r, g, b, a := sampleBilinear(src, src.Bounds(), 1.7, 2.3)
	if r != 40 || g != 80 || b != 120 || a != 255 {
		t.Errorf("uniform sample = (%d, %d, %d, %d), want (40, 80, 120, 255)", r, g, b, a)
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	// x=1.0 sits exactly between the two texel centers.
	r, _, _, a := sampleBilinear(src, src.Bounds(), 1.0, 0.5)
	if a != 255 {
		t.Fatalf("alpha = %d, want 255", a)
	}
	if r < 127 || r > 128 {
		t.Errorf("midpoint red = %d, want 127 or 128", r)
	}
}

func TestCompositeFullOpacity(t *testing.T) {
	dst := solidNRGBA(4, 4, color.NRGBA{A: 255})
	src := solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255})

	compositeFull(dst, src, 0.5, BlendNormal)

	got := dst.NRGBAAt(1, 1)
	if got.R < 126 || got.R > 130 || got.A != 255 {
		t.Errorf("half composite = %v, want about half red over black", got)
	}
}

func TestCompositeFullBoundsMismatch(t *testing.T) {
	dst := solidNRGBA(4, 4, color.NRGBA{A: 255})
	src := solidNRGBA(2, 2, color.NRGBA{R: 255, A: 255})

	compositeFull(dst, src, 1, BlendNormal)

	if got := dst.NRGBAAt(1, 1); got.R != 0 {
		t.Errorf("mismatched bounds composited: %v", got)
	}
}

func TestBlendModeFor(t *testing.T) {
	tests := []struct {
		name string
		want BlendMode
	}{
		{"", BlendNormal},
		{"normal", BlendNormal},
		{"multiply", BlendMultiply},
		{"screen", BlendScreen},
		{"overlay", BlendOverlay},
		{"no-such-mode", BlendNormal},
	}
	for _, tt := range tests {
		if got := blendModeFor(tt.name); got != tt.want {
			t.Errorf("blendModeFor(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCapsSupports(t *testing.T) {
	var m [20]float32
	full := Caps{ColorMatrix: true, Blur: true, Masks: true, Blends: true}
	plain := Caps{}

	layers := []RenderLayer{{Opacity: 1}}
	if !plain.supports(layers) {
		t.Error("plain caps should support plain layers")
	}

	layers[0].Color = &m
	if plain.supports(layers) {
		t.Error("plain caps accepted a color pass")
	}
	if !full.supports(layers) {
		t.Error("full caps rejected a color pass")
	}

	layers[0].Color = nil
	layers[0].BlurX = 2
	if plain.supports(layers) {
		t.Error("plain caps accepted blur")
	}

	layers[0].BlurX = 0
	layers[0].Blend = BlendScreen
	if plain.supports(layers) {
		t.Error("plain caps accepted a blend mode")
	}
}

func BenchmarkDrawTransformed(b *testing.B) {
	src := solidNRGBA(256, 256, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	dst := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	l := RenderLayer{
		Image:     src,
		Transform: reel.Translate(128, 128).Multiply(reel.RotateDegrees(15)),
		Opacity:   0.9,
	}
	b.ReportAllocs()
	for b.Loop() {
		drawLayer(dst, &l)
	}
}
